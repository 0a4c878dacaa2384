package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"widgetchat-backend/internal/models"
	"widgetchat-backend/internal/store"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("chat_test"),
		tcpostgres.WithUsername("test_user"),
		tcpostgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()), "Failed to terminate PostgreSQL container")
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// a second run must be a no-op
	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func insertChatbot(t *testing.T, pool *pgxpool.Pool, externalID *string, active bool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := pool.QueryRow(context.Background(),
		`INSERT INTO chatbots (organization_id, external_id, name, mode, is_active) VALUES ($1, $2, 'Edu Bot', 'education', $3) RETURNING id`,
		uuid.New(), externalID, active,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

// listMessages returns a conversation's messages oldest first.
func listMessages(t *testing.T, pool *pgxpool.Pool, conversationID uuid.UUID) []models.Message {
	t.Helper()
	rows, err := pool.Query(context.Background(), `
		SELECT id, conversation_id, role, content, ai_model, confidence, sources, intent, language, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at, id`, conversationID)
	require.NoError(t, err)
	defer rows.Close()

	var items []models.Message
	for rows.Next() {
		var i models.Message
		var sources []byte
		require.NoError(t, rows.Scan(
			&i.ID,
			&i.ConversationID,
			&i.Role,
			&i.Content,
			&i.AIModel,
			&i.Confidence,
			&sources,
			&i.Intent,
			&i.Language,
			&i.CreatedAt,
		))
		if len(sources) > 0 {
			require.NoError(t, json.Unmarshal(sources, &i.Sources))
		}
		items = append(items, i)
	}
	require.NoError(t, rows.Err())
	return items
}

func reply(content string, confidence int) store.AssistantReply {
	model := "gpt-4o-mini"
	return store.AssistantReply{
		Content:    content,
		Model:      &model,
		Confidence: confidence,
		Sources:    []models.Source{{Label: "TU Berlin (Germany)", Relevance: "high"}},
		Intent:     "university",
		Language:   "tr",
	}
}

func TestPostgresStore(t *testing.T) {
	pool := setupPostgres(t)
	s := NewPostgresStore(pool, zaptest.NewLogger(t))
	ctx := context.Background()

	external := "edu-widget"
	chatbotID := insertChatbot(t, pool, &external, true)

	t.Run("chatbot lookup", func(t *testing.T) {
		cb, err := s.GetChatbotByIDOrExternalID(ctx, chatbotID.String())
		require.NoError(t, err)
		assert.Equal(t, chatbotID, cb.ID)
		assert.Equal(t, models.ModeEducation, cb.Mode)
		assert.True(t, cb.IsActive)

		cb, err = s.GetChatbotByIDOrExternalID(ctx, "edu-widget")
		require.NoError(t, err)
		assert.Equal(t, chatbotID, cb.ID)

		_, err = s.GetChatbotByIDOrExternalID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.GetChatbotByIDOrExternalID(ctx, "missing-widget")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("new conversation then reuse", func(t *testing.T) {
		first, err := s.PersistExchange(ctx, store.PersistExchangeParams{
			ChatbotID:   chatbotID,
			VisitorID:   "v_test",
			UserContent: "Almanya'da üniversite okumak istiyorum",
			Assistant:   reply("TU Berlin iyi bir seçenek.", 85),
		})
		require.NoError(t, err)
		assert.True(t, first.CreatedConversation)

		second, err := s.PersistExchange(ctx, store.PersistExchangeParams{
			ChatbotID:      chatbotID,
			ConversationID: &first.ConversationID,
			UserContent:    "teşekkürler",
			Assistant:      reply("Rica ederim.", 70),
		})
		require.NoError(t, err)
		assert.False(t, second.CreatedConversation)
		assert.Equal(t, first.ConversationID, second.ConversationID)

		msgs := listMessages(t, pool, first.ConversationID)
		require.Len(t, msgs, 4)
		assert.Equal(t, models.RoleUser, msgs[0].Role)
		assert.Nil(t, msgs[0].Confidence)
		assert.Equal(t, models.RoleAssistant, msgs[1].Role)
		require.NotNil(t, msgs[1].Confidence)
		assert.Equal(t, 85, *msgs[1].Confidence)
		assert.Equal(t, []models.Source{{Label: "TU Berlin (Germany)", Relevance: "high"}}, msgs[1].Sources)
		require.NotNil(t, msgs[1].AIModel)
		assert.Equal(t, "gpt-4o-mini", *msgs[1].AIModel)
	})

	t.Run("unknown or foreign conversation starts a new one", func(t *testing.T) {
		unknown := uuid.New()
		res, err := s.PersistExchange(ctx, store.PersistExchangeParams{
			ChatbotID:      chatbotID,
			ConversationID: &unknown,
			VisitorID:      "v_test",
			UserContent:    "merhaba",
			Assistant:      reply("Merhaba!", 95),
		})
		require.NoError(t, err)
		assert.True(t, res.CreatedConversation)
		assert.NotEqual(t, unknown, res.ConversationID)

		otherBot := insertChatbot(t, pool, nil, true)
		foreign, err := s.PersistExchange(ctx, store.PersistExchangeParams{
			ChatbotID:      otherBot,
			ConversationID: &res.ConversationID,
			VisitorID:      "v_other",
			UserContent:    "merhaba",
			Assistant:      reply("Merhaba!", 95),
		})
		require.NoError(t, err)
		assert.True(t, foreign.CreatedConversation)
		assert.NotEqual(t, res.ConversationID, foreign.ConversationID)
	})

	t.Run("failed assistant insert rolls back the pair", func(t *testing.T) {
		conversations := countRows(t, pool, "conversations")
		messages := countRows(t, pool, "messages")

		_, err := s.PersistExchange(ctx, store.PersistExchangeParams{
			ChatbotID:   chatbotID,
			VisitorID:   "v_test",
			UserContent: "merhaba",
			Assistant:   reply("Merhaba!", 101),
		})
		require.Error(t, err)

		assert.Equal(t, conversations, countRows(t, pool, "conversations"))
		assert.Equal(t, messages, countRows(t, pool, "messages"))
	})

	t.Run("concurrent exchanges on one conversation stay paired", func(t *testing.T) {
		start, err := s.PersistExchange(ctx, store.PersistExchangeParams{
			ChatbotID:   chatbotID,
			VisitorID:   "v_test",
			UserContent: "merhaba",
			Assistant:   reply("Merhaba!", 95),
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := s.PersistExchange(ctx, store.PersistExchangeParams{
					ChatbotID:      chatbotID,
					ConversationID: &start.ConversationID,
					UserContent:    fmt.Sprintf("soru %d", i),
					Assistant:      reply(fmt.Sprintf("cevap %d", i), 70),
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		msgs := listMessages(t, pool, start.ConversationID)
		require.Len(t, msgs, 18)
		for i := 0; i < len(msgs); i += 2 {
			assert.Equal(t, models.RoleUser, msgs[i].Role)
			assert.Equal(t, models.RoleAssistant, msgs[i+1].Role)
		}
	})

	t.Run("grounding searches are bounded and filtered", func(t *testing.T) {
		for i := 1; i <= 6; i++ {
			_, err := pool.Exec(ctx,
				`INSERT INTO universities (name, description, country, city, ranking) VALUES ($1, 'Public university', 'Germany', 'Berlin', $2)`,
				fmt.Sprintf("Berlin University %d", i), i)
			require.NoError(t, err)
		}
		_, err := pool.Exec(ctx, `INSERT INTO universities (name, country) VALUES ('Sorbonne', 'France')`)
		require.NoError(t, err)

		unis, err := s.SearchUniversities(ctx, store.SearchParams{Terms: []string{"Germany", "Almanya"}, Limit: 3})
		require.NoError(t, err)
		require.Len(t, unis, 3)
		assert.Equal(t, "Berlin University 1", unis[0].Name)
		require.NotNil(t, unis[0].Ranking)
		assert.Equal(t, 1, *unis[0].Ranking)

		unis, err = s.SearchUniversities(ctx, store.SearchParams{Terms: []string{"sorbonne"}})
		require.NoError(t, err)
		require.Len(t, unis, 1)
		assert.Equal(t, "France", unis[0].Country)

		unis, err = s.SearchUniversities(ctx, store.SearchParams{Terms: []string{"100%"}})
		require.NoError(t, err)
		assert.Empty(t, unis)

		unis, err = s.SearchUniversities(ctx, store.SearchParams{})
		require.NoError(t, err)
		assert.Len(t, unis, 3)

		_, err = pool.Exec(ctx, `INSERT INTO scholarships (title, description, country, amount, deadline) VALUES ('DAAD Grant', 'Graduate funding', 'Germany', '934 EUR', '2027-01-15')`)
		require.NoError(t, err)
		schols, err := s.SearchScholarships(ctx, store.SearchParams{Terms: []string{"graduate"}, Limit: 3})
		require.NoError(t, err)
		require.Len(t, schols, 1)
		require.NotNil(t, schols[0].Deadline)
		assert.Equal(t, 2027, schols[0].Deadline.Year())
	})

	t.Run("visa search filters by country and type", func(t *testing.T) {
		_, err := pool.Exec(ctx, `
			INSERT INTO visa_info (country, visa_type, duration, requirements) VALUES
				('Germany', 'student', '1 year', ARRAY['passport', 'admission letter']),
				('Germany', 'work', '2 years', ARRAY['job offer']),
				('Canada', 'student', '4 years', ARRAY['study permit'])`)
		require.NoError(t, err)

		student := "student"
		visas, err := s.SearchVisaInfo(ctx, store.VisaSearchParams{CountryTerms: []string{"Germany", "Almanya"}, VisaType: &student, Limit: 3})
		require.NoError(t, err)
		require.Len(t, visas, 1)
		assert.Equal(t, []string{"passport", "admission letter"}, visas[0].Requirements)

		visas, err = s.SearchVisaInfo(ctx, store.VisaSearchParams{CountryTerms: []string{"germany"}, Limit: 3})
		require.NoError(t, err)
		assert.Len(t, visas, 2)

		visas, err = s.SearchVisaInfo(ctx, store.VisaSearchParams{})
		require.NoError(t, err)
		assert.Empty(t, visas)
	})
}

func TestLikePatterns(t *testing.T) {
	assert.Equal(t, []string{"%Germany%", `%100\%%`, `%a\_b%`}, likePatterns([]string{"Germany", " ", "100%", "a_b"}))
	assert.NotNil(t, likePatterns(nil))
	assert.Empty(t, likePatterns(nil))
}
