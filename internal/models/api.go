package models

// --- Request Structs ---

// ChatRequest defines the body accepted by POST /chat.
type ChatRequest struct {
	Message        string  `json:"message"`
	ChatbotID      string  `json:"chatbotId"`      // Chatbot id or external widget key
	ConversationID *string `json:"conversationId"` // Optional; absent starts a new conversation
	Mode           *string `json:"mode,omitempty"` // Optional vertical override
	VisitorID      *string `json:"visitorId,omitempty"`
}

// --- Response Structs ---

// ChatResponse is returned on a successful exchange.
type ChatResponse struct {
	Success        bool     `json:"success"`
	Response       string   `json:"response"`
	ConversationID string   `json:"conversationId"`
	Sources        []Source `json:"sources"`
	Confidence     int      `json:"confidence"`
	Mode           string   `json:"mode"`
}

// ErrorResponse defines the standard structure for API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
