package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateChatRequest(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"minimal", `{"message":"merhaba","chatbotId":"edu-widget"}`, ""},
		{"all fields", `{"message":"hi","chatbotId":"x","conversationId":"8d1f6a52-3b7c-4c0e-9a55-2f8f0b1d9e11","mode":"document","visitorId":"v_1"}`, ""},
		{"null optionals", `{"message":"hi","chatbotId":"x","conversationId":null,"mode":null}`, ""},
		{"missing message", `{"chatbotId":"x"}`, "message"},
		{"missing chatbot", `{"message":"hi"}`, "chatbotId"},
		{"empty message", `{"message":"","chatbotId":"x"}`, "message"},
		{"message not a string", `{"message":42,"chatbotId":"x"}`, "message"},
		{"conversation id not a string", `{"message":"hi","chatbotId":"x","conversationId":7}`, "conversationId"},
		{"array body", `[]`, "object"},
		{"malformed", `{"message":`, "malformed JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChatRequest([]byte(tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateChatRequest_MessageTooLong(t *testing.T) {
	body := `{"message":"` + strings.Repeat("a", 10001) + `","chatbotId":"x"}`
	assert.ErrorIs(t, ValidateChatRequest([]byte(body)), ErrInvalidRequest)
}
