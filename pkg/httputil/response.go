package httputil

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	api_models "widgetchat-backend/internal/models"
)

// RespondJSON writes a JSON response with the given status code and payload.
func RespondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Can't write header again here, just log the error
		zap.L().Warn("error encoding JSON response", zap.Error(err))
	}
}

// RespondError writes a JSON error response with the given status code and message.
func RespondError(w http.ResponseWriter, statusCode int, message string) {
	RespondErrorDetails(w, statusCode, message, "")
}

// RespondErrorDetails is RespondError with an optional details field; empty details are omitted.
func RespondErrorDetails(w http.ResponseWriter, statusCode int, message, details string) {
	resp := api_models.ErrorResponse{Error: message, Details: details}
	RespondJSON(w, statusCode, resp)
}
