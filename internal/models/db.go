package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatbotMode selects the vertical a chatbot serves.
type ChatbotMode string

const (
	ModeEducation ChatbotMode = "education"
	ModeDocument  ChatbotMode = "document"
)

// Valid reports whether m is a known mode.
func (m ChatbotMode) Valid() bool {
	return m == ModeEducation || m == ModeDocument
}

// Chatbot represents a tenant-owned widget configuration. Read-only to the chat pipeline.
type Chatbot struct {
	ID              uuid.UUID   `db:"id"`
	OrganizationID  uuid.UUID   `db:"organization_id"`
	ExternalID      *string     `db:"external_id"` // Widget key embedded on tenant sites
	Name            string      `db:"name"`
	Mode            ChatbotMode `db:"mode"`
	IsActive        bool        `db:"is_active"`
	FallbackMessage *string     `db:"fallback_message"`
	SystemPrompt    *string     `db:"system_prompt"`
	LLMModel        *string     `db:"llm_model"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

const ConversationStatusActive = "active"

// Conversation groups the messages exchanged with one visitor.
type Conversation struct {
	ID        uuid.UUID `db:"id"`
	ChatbotID uuid.UUID `db:"chatbot_id"`
	VisitorID string    `db:"visitor_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Scholarship is a read-only grounding row.
type Scholarship struct {
	ID             uuid.UUID  `db:"id"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	Country        string     `db:"country"`
	Amount         *string    `db:"amount"`
	ApplicationURL *string    `db:"application_url"`
	Deadline       *time.Time `db:"deadline"`
}

// University is a read-only grounding row.
type University struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Country     string    `db:"country"`
	City        *string   `db:"city"`
	Ranking     *int      `db:"ranking"`
	Website     *string   `db:"website"`
}

// VisaInfo is a read-only grounding row describing one visa type for one country.
type VisaInfo struct {
	ID             uuid.UUID `db:"id"`
	Country        string    `db:"country"`
	VisaType       string    `db:"visa_type"`
	Duration       *string   `db:"duration"`
	Cost           *string   `db:"cost"`
	ProcessingTime *string   `db:"processing_time"`
	Requirements   []string  `db:"requirements"`
	ReferenceURL   *string   `db:"reference_url"`
}
