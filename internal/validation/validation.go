// Package validation checks inbound request bodies against embedded JSON schemas.
package validation

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = errors.New("invalid request")

//go:embed chat_request.schema.json
var chatRequestSchemaJSON []byte

var chatRequestSchema = mustSchema(chatRequestSchemaJSON)

func mustSchema(raw []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("validation: bad embedded schema: %v", err))
	}
	return s
}

// ValidateChatRequest validates a raw /chat body. Malformed JSON and schema
// violations both return an error wrapping ErrInvalidRequest.
func ValidateChatRequest(body []byte) error {
	return validate(chatRequestSchema, body)
}

func validate(schema *gojsonschema.Schema, body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: malformed JSON: %v", ErrInvalidRequest, err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(errs, "; "))
	}
	return nil
}
