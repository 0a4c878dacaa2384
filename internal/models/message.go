package models

import (
	"time"

	"github.com/google/uuid"
)

// Message roles. The messages table enforces these with a CHECK constraint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Source is one grounding citation attached to an assistant message.
type Source struct {
	Label     string `json:"label"`
	Relevance string `json:"relevance"` // high, medium or low
}

// Message represents a single persisted message in a conversation.
type Message struct {
	ID             uuid.UUID `db:"id"`
	ConversationID uuid.UUID `db:"conversation_id"`
	Role           string    `db:"role"`
	Content        string    `db:"content"`
	AIModel        *string   `db:"ai_model"`
	Confidence     *int      `db:"confidence"`
	Sources        []Source  `db:"sources"` // Stored as JSONB
	Intent         *string   `db:"intent"`
	Language       *string   `db:"language"`
	CreatedAt      time.Time `db:"created_at"`
}
