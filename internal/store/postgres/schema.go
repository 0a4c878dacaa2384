package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent; Migrate may run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS chatbots (
		id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		organization_id  UUID NOT NULL,
		external_id      TEXT UNIQUE,
		name             TEXT NOT NULL,
		mode             TEXT NOT NULL DEFAULT 'education' CHECK (mode IN ('education', 'document')),
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		fallback_message TEXT,
		system_prompt    TEXT,
		llm_model        TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		chatbot_id UUID NOT NULL REFERENCES chatbots(id) ON DELETE CASCADE,
		visitor_id TEXT NOT NULL,
		status     TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_chatbot ON conversations (chatbot_id)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content         TEXT NOT NULL,
		ai_model        TEXT,
		confidence      INTEGER CHECK (confidence BETWEEN 0 AND 100),
		sources         JSONB,
		intent          TEXT,
		language        TEXT,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS scholarships (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		country         TEXT NOT NULL,
		amount          TEXT,
		application_url TEXT,
		deadline        DATE
	)`,
	`CREATE TABLE IF NOT EXISTS universities (
		id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		country     TEXT NOT NULL,
		city        TEXT,
		ranking     INTEGER,
		website     TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS visa_info (
		id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		country         TEXT NOT NULL,
		visa_type       TEXT NOT NULL,
		duration        TEXT,
		cost            TEXT,
		processing_time TEXT,
		requirements    TEXT[] NOT NULL DEFAULT '{}',
		reference_url   TEXT
	)`,
}

// Migrate creates the tables the chat pipeline reads and writes.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("error applying schema: %w", err)
		}
	}
	return nil
}
