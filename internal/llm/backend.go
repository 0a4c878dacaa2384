package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCompletion is returned when the backend answers without usable text.
	ErrEmptyCompletion = errors.New("empty completion")
	// ErrTimeout is returned when the call exceeds its deadline.
	ErrTimeout = errors.New("generation timed out")
)

// Request is one chat-completion call.
type Request struct {
	SystemPrompt string
	UserMessage  string
	Model        string // empty uses the backend default
	MaxTokens    int
	Temperature  float64
}

// Backend produces bounded text from a prompt.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAIBackend calls an OpenAI-compatible API. Retries are disabled: callers degrade
// instead of retrying.
type OpenAIBackend struct {
	client       openai.Client
	defaultModel string
	logger       *zap.Logger
}

func NewOpenAIBackend(cfg OpenAIConfig, logger *zap.Logger) *OpenAIBackend {
	opts := []option.RequestOption{
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	return &OpenAIBackend{
		client:       openai.NewClient(opts...),
		defaultModel: cfg.DefaultModel,
		logger:       logger.With(zap.String("component", "llm")),
	}
}

func (o *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = o.defaultModel
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if len(req.SystemPrompt) > 0 {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserMessage))

	params := openai.ChatCompletionNewParams{
		Messages:    messages,
		Model:       model,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	res, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %v", ErrTimeout, time.Since(start).Round(time.Millisecond), err)
		}
		return "", fmt.Errorf("openai generation failed: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	text := strings.TrimSpace(res.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	o.logger.Debug("completion received",
		zap.String("model", model),
		zap.Duration("took", time.Since(start)),
		zap.Int64("completion_tokens", res.Usage.CompletionTokens),
	)
	return text, nil
}
