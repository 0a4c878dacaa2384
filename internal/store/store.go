package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"widgetchat-backend/internal/models"
)

// ErrNotFound is returned when a specific record is not found.
var ErrNotFound = errors.New("record not found")

// SearchParams filters scholarship and university lookups. A row matches when its
// title/name, description or country contains any of Terms (case-insensitive).
// Empty Terms returns the top rows unfiltered.
type SearchParams struct {
	Terms []string
	Limit int
}

// VisaSearchParams filters visa lookups by country and, optionally, visa type.
type VisaSearchParams struct {
	CountryTerms []string
	VisaType     *string
	Limit        int
}

// AssistantReply is the generated half of an exchange.
type AssistantReply struct {
	Content    string
	Model      *string
	Confidence int
	Sources    []models.Source
	Intent     string
	Language   string
}

// PersistExchangeParams contains everything needed to record one user/assistant pair.
type PersistExchangeParams struct {
	ChatbotID      uuid.UUID
	ConversationID *uuid.UUID // nil starts a new conversation
	VisitorID      string     // used only when a conversation is created
	UserContent    string
	Assistant      AssistantReply
}

// PersistExchangeResult reports where the pair was written.
type PersistExchangeResult struct {
	ConversationID      uuid.UUID
	CreatedConversation bool
	UserMessageID       uuid.UUID
	AssistantMessageID  uuid.UUID
}

// ChatbotReader resolves the chatbot a widget request addresses.
type ChatbotReader interface {
	// GetChatbotByIDOrExternalID matches ident against the chatbot id first and the
	// external widget key second. Returns ErrNotFound when neither matches.
	GetChatbotByIDOrExternalID(ctx context.Context, ident string) (models.Chatbot, error)
}

// GroundingReader exposes the read-only grounding tables.
type GroundingReader interface {
	SearchScholarships(ctx context.Context, arg SearchParams) ([]models.Scholarship, error)
	SearchUniversities(ctx context.Context, arg SearchParams) ([]models.University, error)
	SearchVisaInfo(ctx context.Context, arg VisaSearchParams) ([]models.VisaInfo, error)
}

// ConversationWriter records exchanges.
type ConversationWriter interface {
	// PersistExchange reuses or creates the conversation and writes the user and
	// assistant messages in a single transaction. Either both messages exist afterwards
	// or neither does.
	PersistExchange(ctx context.Context, arg PersistExchangeParams) (PersistExchangeResult, error)
}

// Store defines the interface for database operations.
// This allows for mocking in tests and potential DB backend switching.
type Store interface {
	ChatbotReader
	GroundingReader
	ConversationWriter
}
