package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"widgetchat-backend/internal/metrics"
	"widgetchat-backend/internal/models"
	"widgetchat-backend/internal/services"
	"widgetchat-backend/internal/validation"
	"widgetchat-backend/pkg/httputil"
)

const maxChatBodyBytes = 64 << 10

// MessageHandler is the service behind POST /chat.
type MessageHandler interface {
	HandleMessage(ctx context.Context, in services.ChatInput) (*services.ChatResult, error)
}

// ChatHandlers handles the public widget chat endpoint.
type ChatHandlers struct {
	chatService        MessageHandler
	exposeErrorDetails bool
	logger             *zap.Logger
}

// NewChatHandlers creates a new ChatHandlers instance. When exposeErrorDetails is
// set, 500 responses carry the underlying error text in "details".
func NewChatHandlers(chatService MessageHandler, exposeErrorDetails bool, logger *zap.Logger) *ChatHandlers {
	return &ChatHandlers{
		chatService:        chatService,
		exposeErrorDetails: exposeErrorDetails,
		logger:             logger.With(zap.String("component", "chat_handler")),
	}
}

// HandleChat handles POST /chat.
func (h *ChatHandlers) HandleChat(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if err := validation.ValidateChatRequest(body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	var req models.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}

	res, err := h.chatService.HandleMessage(r.Context(), services.ChatInput{
		Message:        req.Message,
		ChatbotIdent:   req.ChatbotID,
		ConversationID: deref(req.ConversationID),
		Mode:           deref(req.Mode),
		VisitorID:      deref(req.VisitorID),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			h.respondError(w, http.StatusBadRequest, "Invalid request", err.Error())
		case errors.Is(err, services.ErrChatbotInactive):
			h.respondError(w, http.StatusBadRequest, "Chatbot is not active", "")
		case errors.Is(err, services.ErrChatbotNotFound):
			h.respondError(w, http.StatusNotFound, "Chatbot not found", "")
		default:
			h.logger.Error("chat request failed", zap.Error(err))
			details := ""
			if h.exposeErrorDetails {
				details = err.Error()
			}
			h.respondError(w, http.StatusInternalServerError, "Failed to save conversation", details)
		}
		return
	}

	sources := res.Sources
	if sources == nil {
		sources = []models.Source{}
	}
	metrics.ChatRequests.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	httputil.RespondJSON(w, http.StatusOK, models.ChatResponse{
		Success:        true,
		Response:       res.Response,
		ConversationID: res.ConversationID.String(),
		Sources:        sources,
		Confidence:     res.Confidence,
		Mode:           string(res.Mode),
	})
}

func (h *ChatHandlers) respondError(w http.ResponseWriter, status int, message, details string) {
	metrics.ChatRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	httputil.RespondErrorDetails(w, status, message, details)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
