package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"widgetchat-backend/internal/models"
	"widgetchat-backend/internal/store"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

const defaultSearchLimit = 3

type PostgresStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresStore(db *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, logger: logger.With(zap.String("component", "postgres"))}
}

// --- Chatbot Methods ---

const getChatbotByIDOrExternalID = `-- name: GetChatbotByIDOrExternalID :one
SELECT id, organization_id, external_id, name, mode, is_active, fallback_message, system_prompt, llm_model, created_at, updated_at
FROM chatbots
WHERE id = $1 OR external_id = $2
ORDER BY (id = $1) IS TRUE DESC
LIMIT 1;
`

// GetChatbotByIDOrExternalID resolves a widget's chatbot. Returns store.ErrNotFound
// if neither the id nor the external key matches.
func (s *PostgresStore) GetChatbotByIDOrExternalID(ctx context.Context, ident string) (models.Chatbot, error) {
	var id *uuid.UUID
	if parsed, err := uuid.Parse(ident); err == nil {
		id = &parsed
	}

	row := s.db.QueryRow(ctx, getChatbotByIDOrExternalID, id, ident)
	var i models.Chatbot
	err := row.Scan(
		&i.ID,
		&i.OrganizationID,
		&i.ExternalID,
		&i.Name,
		&i.Mode,
		&i.IsActive,
		&i.FallbackMessage,
		&i.SystemPrompt,
		&i.LLMModel,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Chatbot{}, store.ErrNotFound
		}
		return models.Chatbot{}, fmt.Errorf("error scanning chatbot: %w", err)
	}
	return i, nil
}

// --- Grounding Methods ---

const searchScholarships = `-- name: SearchScholarships :many
SELECT id, title, description, country, amount, application_url, deadline
FROM scholarships
WHERE cardinality($1::text[]) = 0
   OR title ILIKE ANY($1::text[])
   OR description ILIKE ANY($1::text[])
   OR country ILIKE ANY($1::text[])
ORDER BY deadline ASC NULLS LAST, title
LIMIT $2;
`

func (s *PostgresStore) SearchScholarships(ctx context.Context, arg store.SearchParams) ([]models.Scholarship, error) {
	rows, err := s.db.Query(ctx, searchScholarships, likePatterns(arg.Terms), searchLimit(arg.Limit))
	if err != nil {
		return nil, fmt.Errorf("error querying scholarships: %w", err)
	}
	defer rows.Close()

	var items []models.Scholarship
	for rows.Next() {
		var i models.Scholarship
		if err := rows.Scan(
			&i.ID,
			&i.Title,
			&i.Description,
			&i.Country,
			&i.Amount,
			&i.ApplicationURL,
			&i.Deadline,
		); err != nil {
			return nil, fmt.Errorf("error scanning scholarship row: %w", err)
		}
		items = append(items, i)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scholarship rows: %w", err)
	}
	return items, nil
}

const searchUniversities = `-- name: SearchUniversities :many
SELECT id, name, description, country, city, ranking, website
FROM universities
WHERE cardinality($1::text[]) = 0
   OR name ILIKE ANY($1::text[])
   OR description ILIKE ANY($1::text[])
   OR country ILIKE ANY($1::text[])
ORDER BY ranking ASC NULLS LAST, name
LIMIT $2;
`

func (s *PostgresStore) SearchUniversities(ctx context.Context, arg store.SearchParams) ([]models.University, error) {
	rows, err := s.db.Query(ctx, searchUniversities, likePatterns(arg.Terms), searchLimit(arg.Limit))
	if err != nil {
		return nil, fmt.Errorf("error querying universities: %w", err)
	}
	defer rows.Close()

	var items []models.University
	for rows.Next() {
		var i models.University
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Description,
			&i.Country,
			&i.City,
			&i.Ranking,
			&i.Website,
		); err != nil {
			return nil, fmt.Errorf("error scanning university row: %w", err)
		}
		items = append(items, i)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating university rows: %w", err)
	}
	return items, nil
}

const searchVisaInfo = `-- name: SearchVisaInfo :many
SELECT id, country, visa_type, duration, cost, processing_time, requirements, reference_url
FROM visa_info
WHERE country ILIKE ANY($1::text[])
  AND ($2::text IS NULL OR visa_type = $2)
ORDER BY country, visa_type
LIMIT $3;
`

func (s *PostgresStore) SearchVisaInfo(ctx context.Context, arg store.VisaSearchParams) ([]models.VisaInfo, error) {
	rows, err := s.db.Query(ctx, searchVisaInfo, likePatterns(arg.CountryTerms), arg.VisaType, searchLimit(arg.Limit))
	if err != nil {
		return nil, fmt.Errorf("error querying visa info: %w", err)
	}
	defer rows.Close()

	var items []models.VisaInfo
	for rows.Next() {
		var i models.VisaInfo
		if err := rows.Scan(
			&i.ID,
			&i.Country,
			&i.VisaType,
			&i.Duration,
			&i.Cost,
			&i.ProcessingTime,
			&i.Requirements,
			&i.ReferenceURL,
		); err != nil {
			return nil, fmt.Errorf("error scanning visa row: %w", err)
		}
		items = append(items, i)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visa rows: %w", err)
	}
	return items, nil
}

// --- Conversation Methods ---

const lockConversation = `-- name: LockConversation :one
SELECT id FROM conversations
WHERE id = $1 AND chatbot_id = $2
FOR UPDATE;
`

const createConversation = `-- name: CreateConversation :one
INSERT INTO conversations (chatbot_id, visitor_id, status)
VALUES ($1, $2, 'active')
RETURNING id;
`

const touchConversation = `-- name: TouchConversation :exec
UPDATE conversations SET updated_at = NOW() WHERE id = $1;
`

const insertMessage = `-- name: InsertMessage :one
INSERT INTO messages (conversation_id, role, content, ai_model, confidence, sources, intent, language)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)
RETURNING id;
`

// PersistExchange writes the user/assistant pair in one transaction. A reused
// conversation row is locked FOR UPDATE so concurrent pairs on it commit one after the other.
func (s *PostgresStore) PersistExchange(ctx context.Context, arg store.PersistExchangeParams) (store.PersistExchangeResult, error) {
	var res store.PersistExchangeResult

	sources := arg.Assistant.Sources
	if sources == nil {
		sources = []models.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return res, fmt.Errorf("error marshalling sources: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	found := false
	if arg.ConversationID != nil {
		err := tx.QueryRow(ctx, lockConversation, *arg.ConversationID, arg.ChatbotID).Scan(&res.ConversationID)
		switch {
		case err == nil:
			found = true
		case errors.Is(err, pgx.ErrNoRows):
			s.logger.Debug("conversation not found, starting a new one",
				zap.String("conversation_id", arg.ConversationID.String()))
		default:
			return store.PersistExchangeResult{}, s.wrapPgError("locking conversation", err)
		}
	}

	if found {
		if _, err := tx.Exec(ctx, touchConversation, res.ConversationID); err != nil {
			return store.PersistExchangeResult{}, s.wrapPgError("touching conversation", err)
		}
	} else {
		if err := tx.QueryRow(ctx, createConversation, arg.ChatbotID, arg.VisitorID).Scan(&res.ConversationID); err != nil {
			return store.PersistExchangeResult{}, s.wrapPgError("creating conversation", err)
		}
		res.CreatedConversation = true
	}

	if err := tx.QueryRow(ctx, insertMessage,
		res.ConversationID,
		models.RoleUser,
		arg.UserContent,
		nil,
		nil,
		nil,
		nil,
		nil,
	).Scan(&res.UserMessageID); err != nil {
		return store.PersistExchangeResult{}, s.wrapPgError("inserting user message", err)
	}

	a := arg.Assistant
	if err := tx.QueryRow(ctx, insertMessage,
		res.ConversationID,
		models.RoleAssistant,
		a.Content,
		a.Model,
		a.Confidence,
		string(sourcesJSON),
		nullIfEmpty(a.Intent),
		nullIfEmpty(a.Language),
	).Scan(&res.AssistantMessageID); err != nil {
		return store.PersistExchangeResult{}, s.wrapPgError("inserting assistant message", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return store.PersistExchangeResult{}, s.wrapPgError("committing exchange", err)
	}
	return res, nil
}

func (s *PostgresStore) wrapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		s.logger.Error("postgres error",
			zap.String("op", op),
			zap.String("code", pgErr.Code),
			zap.String("message", pgErr.Message),
			zap.String("detail", pgErr.Detail),
		)
	}
	return fmt.Errorf("database error %s: %w", op, err)
}

// likePatterns turns search terms into ILIKE patterns. The result is never nil so
// it encodes as an empty array rather than NULL.
func likePatterns(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		t = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(t)
		out = append(out, "%"+t+"%")
	}
	return out
}

func searchLimit(n int) int {
	if n <= 0 {
		return defaultSearchLimit
	}
	return n
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
