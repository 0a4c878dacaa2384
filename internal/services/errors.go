package services

import "errors"

// Errors returned by ChatService. Handlers map them to status codes with errors.Is.
// Upstream failures (grounding store, generative backend) never leave the service.
var (
	ErrValidation      = errors.New("invalid request")
	ErrChatbotNotFound = errors.New("chatbot not found")
	ErrChatbotInactive = errors.New("chatbot is inactive")
	ErrPersistence     = errors.New("failed to save conversation")
)
