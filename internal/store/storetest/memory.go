// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"widgetchat-backend/internal/models"
	"widgetchat-backend/internal/store"
)

var _ store.Store = (*MemoryStore)(nil)

// MemoryStore keeps rows in maps. PersistExchange stages its writes and applies them
// only when every step succeeds, mirroring the transactional contract of the
// Postgres store.
type MemoryStore struct {
	mu sync.Mutex

	Chatbots      []models.Chatbot
	Scholarships  []models.Scholarship
	Universities  []models.University
	Visas         []models.VisaInfo
	conversations map[uuid.UUID]models.Conversation
	messages      []models.Message

	// FailAssistantInsert, when set, makes the assistant-message write fail after the
	// user message has been staged.
	FailAssistantInsert error
	// FailLookup, when set, is returned by GetChatbotByIDOrExternalID.
	FailLookup error
	// FailSearch, when set, is returned by every grounding search.
	FailSearch error

	GroundingQueries int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[uuid.UUID]models.Conversation)}
}

// AddChatbot registers a chatbot and returns it with defaults filled in.
func (m *MemoryStore) AddChatbot(cb models.Chatbot) models.Chatbot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb.ID == uuid.Nil {
		cb.ID = uuid.New()
	}
	if cb.Mode == "" {
		cb.Mode = models.ModeEducation
	}
	m.Chatbots = append(m.Chatbots, cb)
	return cb
}

// AddConversation inserts an existing conversation.
func (m *MemoryStore) AddConversation(chatbotID uuid.UUID) models.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := models.Conversation{
		ID:        uuid.New(),
		ChatbotID: chatbotID,
		VisitorID: "v_existing",
		Status:    models.ConversationStatusActive,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.conversations[c.ID] = c
	return c
}

func (m *MemoryStore) ConversationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conversations)
}

func (m *MemoryStore) Conversation(id uuid.UUID) (models.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	return c, ok
}

// Messages returns a copy of the messages of one conversation, in insertion order.
func (m *MemoryStore) Messages(conversationID uuid.UUID) []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	return out
}

func (m *MemoryStore) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *MemoryStore) GetChatbotByIDOrExternalID(_ context.Context, ident string) (models.Chatbot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLookup != nil {
		return models.Chatbot{}, m.FailLookup
	}
	if id, err := uuid.Parse(ident); err == nil {
		for _, cb := range m.Chatbots {
			if cb.ID == id {
				return cb, nil
			}
		}
	}
	for _, cb := range m.Chatbots {
		if cb.ExternalID != nil && *cb.ExternalID == ident {
			return cb, nil
		}
	}
	return models.Chatbot{}, store.ErrNotFound
}

func (m *MemoryStore) SearchScholarships(_ context.Context, arg store.SearchParams) ([]models.Scholarship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroundingQueries++
	if m.FailSearch != nil {
		return nil, m.FailSearch
	}
	var out []models.Scholarship
	for _, s := range m.Scholarships {
		if matchesAny(arg.Terms, s.Title, s.Description, s.Country) {
			out = append(out, s)
		}
	}
	return limit(out, arg.Limit), nil
}

func (m *MemoryStore) SearchUniversities(_ context.Context, arg store.SearchParams) ([]models.University, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroundingQueries++
	if m.FailSearch != nil {
		return nil, m.FailSearch
	}
	var out []models.University
	for _, u := range m.Universities {
		if matchesAny(arg.Terms, u.Name, u.Description, u.Country) {
			out = append(out, u)
		}
	}
	return limit(out, arg.Limit), nil
}

func (m *MemoryStore) SearchVisaInfo(_ context.Context, arg store.VisaSearchParams) ([]models.VisaInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GroundingQueries++
	if m.FailSearch != nil {
		return nil, m.FailSearch
	}
	var out []models.VisaInfo
	for _, v := range m.Visas {
		if !matchesAny(arg.CountryTerms, v.Country) {
			continue
		}
		if arg.VisaType != nil && !strings.EqualFold(v.VisaType, *arg.VisaType) {
			continue
		}
		out = append(out, v)
	}
	return limit(out, arg.Limit), nil
}

func (m *MemoryStore) PersistExchange(_ context.Context, arg store.PersistExchangeParams) (store.PersistExchangeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res store.PersistExchangeResult
	now := time.Now()

	var conv models.Conversation
	found := false
	if arg.ConversationID != nil {
		conv, found = m.conversations[*arg.ConversationID]
		found = found && conv.ChatbotID == arg.ChatbotID
	}
	if !found {
		conv = models.Conversation{
			ID:        uuid.New(),
			ChatbotID: arg.ChatbotID,
			VisitorID: arg.VisitorID,
			Status:    models.ConversationStatusActive,
			CreatedAt: now,
		}
		res.CreatedConversation = true
	}
	conv.UpdatedAt = now

	user := models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           models.RoleUser,
		Content:        arg.UserContent,
		CreatedAt:      now,
	}
	if m.FailAssistantInsert != nil {
		// staged rows are discarded
		return store.PersistExchangeResult{}, m.FailAssistantInsert
	}
	confidence := arg.Assistant.Confidence
	intent, lang := arg.Assistant.Intent, arg.Assistant.Language
	assistant := models.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		Role:           models.RoleAssistant,
		Content:        arg.Assistant.Content,
		AIModel:        arg.Assistant.Model,
		Confidence:     &confidence,
		Sources:        arg.Assistant.Sources,
		Intent:         &intent,
		Language:       &lang,
		CreatedAt:      now,
	}

	m.conversations[conv.ID] = conv
	m.messages = append(m.messages, user, assistant)

	res.ConversationID = conv.ID
	res.UserMessageID = user.ID
	res.AssistantMessageID = assistant.ID
	return res, nil
}

func matchesAny(terms []string, fields ...string) bool {
	if len(terms) == 0 {
		return true
	}
	for _, t := range terms {
		t = strings.ToLower(t)
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), t) {
				return true
			}
		}
	}
	return false
}

func limit[T any](rows []T, n int) []T {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}
