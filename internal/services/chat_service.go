package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"widgetchat-backend/internal/grounding"
	"widgetchat-backend/internal/metrics"
	"widgetchat-backend/internal/models"
	"widgetchat-backend/internal/nlu"
	"widgetchat-backend/internal/store"
)

// ChatInput is the validated shape of an inbound widget message.
type ChatInput struct {
	Message        string
	ChatbotIdent   string // chatbot id or external widget key
	ConversationID string // raw client value; "", "null" and "undefined" mean absent
	Mode           string // optional override of the chatbot's mode
	VisitorID      string
}

// ChatResult is the outcome of one exchange.
type ChatResult struct {
	Response       string
	ConversationID uuid.UUID
	Sources        []models.Source
	Confidence     int
	Mode           models.ChatbotMode
	Intent         nlu.IntentCategory
	Language       nlu.Language
	Path           Path
}

// ChatConfig holds request-level limits.
type ChatConfig struct {
	MaxMessageChars int
}

// ChatService runs the intent routing and grounding pipeline for widget messages.
type ChatService struct {
	store     store.Store
	analyzer  *nlu.Analyzer
	assembler *grounding.Assembler
	generator *ResponseGenerator
	cfg       ChatConfig
	logger    *zap.Logger
}

// NewChatService creates a new ChatService.
func NewChatService(
	st store.Store,
	analyzer *nlu.Analyzer,
	assembler *grounding.Assembler,
	generator *ResponseGenerator,
	cfg ChatConfig,
	logger *zap.Logger,
) *ChatService {
	if cfg.MaxMessageChars <= 0 {
		cfg.MaxMessageChars = 2000
	}
	return &ChatService{
		store:     st,
		analyzer:  analyzer,
		assembler: assembler,
		generator: generator,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "chat")),
	}
}

// HandleMessage classifies, grounds, answers and persists one message.
// Only ErrValidation, ErrChatbotNotFound, ErrChatbotInactive and ErrPersistence are returned.
func (s *ChatService) HandleMessage(ctx context.Context, in ChatInput) (*ChatResult, error) {
	message := strings.TrimSpace(in.Message)
	ident := strings.TrimSpace(in.ChatbotIdent)
	if message == "" || ident == "" {
		return nil, fmt.Errorf("%w: message and chatbotId are required", ErrValidation)
	}
	if utf8.RuneCountInString(message) > s.cfg.MaxMessageChars {
		return nil, fmt.Errorf("%w: message exceeds %d characters", ErrValidation, s.cfg.MaxMessageChars)
	}
	override, err := parseMode(in.Mode)
	if err != nil {
		return nil, err
	}

	chatbot, err := s.store.GetChatbotByIDOrExternalID(ctx, ident)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrChatbotNotFound, ident)
		}
		return nil, fmt.Errorf("%w: looking up chatbot: %w", ErrPersistence, err)
	}
	if !chatbot.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrChatbotInactive, chatbot.ID)
	}

	mode := chatbot.Mode
	if override != "" {
		mode = override
	}
	if !mode.Valid() {
		mode = models.ModeEducation
	}

	analysis := s.analyzer.Analyze(message, mode)
	metrics.IntentsClassified.WithLabelValues(string(analysis.Intent), string(mode)).Inc()

	block := s.assembler.Assemble(ctx, grounding.Request{
		Intent:      analysis.Intent,
		Countries:   analysis.Entities.Countries,
		VisaType:    analysis.Entities.VisaType,
		HasVisaType: analysis.Entities.HasVisaType,
		Keyword:     analysis.Entities.Keyword,
	})

	reply := s.generator.Generate(ctx, GenerateInput{
		Persona:   PersonaFromChatbot(chatbot, mode),
		Intent:    analysis.Intent,
		Language:  analysis.Language,
		Block:     block,
		Message:   message,
		Countries: len(analysis.Entities.Countries),
	})

	params := store.PersistExchangeParams{
		ChatbotID:      chatbot.ID,
		ConversationID: parseConversationID(in.ConversationID),
		VisitorID:      strings.TrimSpace(in.VisitorID),
		UserContent:    message,
		Assistant: store.AssistantReply{
			Content:    reply.Text,
			Confidence: reply.Confidence,
			Sources:    reply.Sources,
			Intent:     string(analysis.Intent),
			Language:   string(analysis.Language),
		},
	}
	if reply.Model != "" {
		params.Assistant.Model = &reply.Model
	}
	if params.VisitorID == "" {
		params.VisitorID = newVisitorID()
	}

	res, err := s.store.PersistExchange(ctx, params)
	if err != nil {
		metrics.PersistenceFailures.Inc()
		s.logger.Error("failed to persist exchange",
			zap.String("chatbot_id", chatbot.ID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Info("chat message handled",
		zap.String("chatbot_id", chatbot.ID.String()),
		zap.String("conversation_id", res.ConversationID.String()),
		zap.Bool("new_conversation", res.CreatedConversation),
		zap.String("intent", string(analysis.Intent)),
		zap.String("language", string(analysis.Language)),
		zap.String("path", string(reply.Path)),
		zap.Int("sources", len(reply.Sources)),
	)

	return &ChatResult{
		Response:       reply.Text,
		ConversationID: res.ConversationID,
		Sources:        reply.Sources,
		Confidence:     reply.Confidence,
		Mode:           mode,
		Intent:         analysis.Intent,
		Language:       analysis.Language,
		Path:           reply.Path,
	}, nil
}

func parseMode(raw string) (models.ChatbotMode, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "null" {
		return "", nil
	}
	mode := models.ChatbotMode(raw)
	if !mode.Valid() {
		return "", fmt.Errorf("%w: unknown mode %q", ErrValidation, raw)
	}
	return mode, nil
}

// parseConversationID treats empty, null-sentinel and malformed ids as absent, which
// starts a new conversation.
func parseConversationID(raw string) *uuid.UUID {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "null", "undefined":
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func newVisitorID() string {
	id, err := gonanoid.New(21)
	if err != nil {
		return "v_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return "v_" + id
}
