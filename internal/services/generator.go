package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"widgetchat-backend/internal/grounding"
	"widgetchat-backend/internal/llm"
	"widgetchat-backend/internal/metrics"
	"widgetchat-backend/internal/models"
	"widgetchat-backend/internal/nlu"
)

// Path names the rung of the degradation ladder that produced a reply.
type Path string

const (
	PathShortcut Path = "shortcut"
	PathGrounded Path = "grounded"
	PathDegraded Path = "degraded"
)

// Reply confidences. ConfidenceDegraded is the sentinel for template fallbacks and is
// never reported for a successful generation.
const (
	ConfidenceGreeting   = 95
	ConfidenceHelp       = 90
	ConfidenceGrounded   = 85
	ConfidenceUngrounded = 70
	ConfidenceClarify    = 60
	ConfidenceDegraded   = 10
)

// Persona is the chatbot-specific framing of every reply.
type Persona struct {
	Name            string
	Mode            models.ChatbotMode
	SystemPrompt    string
	Model           string
	FallbackMessage string
}

// PersonaFromChatbot builds the persona for a chatbot, honouring a per-request mode.
func PersonaFromChatbot(cb models.Chatbot, mode models.ChatbotMode) Persona {
	p := Persona{Name: cb.Name, Mode: mode}
	if cb.SystemPrompt != nil {
		p.SystemPrompt = strings.TrimSpace(*cb.SystemPrompt)
	}
	if cb.LLMModel != nil {
		p.Model = strings.TrimSpace(*cb.LLMModel)
	}
	if cb.FallbackMessage != nil {
		p.FallbackMessage = *cb.FallbackMessage
	}
	return p
}

// GeneratorConfig bounds the generative call.
type GeneratorConfig struct {
	Timeout        time.Duration
	MaxTokens      int
	Temperature    float64
	MaxPromptChars int
	DefaultModel   string
}

// GenerateInput is everything one reply depends on.
type GenerateInput struct {
	Persona   Persona
	Intent    nlu.IntentCategory
	Language  nlu.Language
	Block     grounding.Block
	Message   string
	// Countries is how many countries were extracted from Message.
	Countries int
}

// Reply is the generator's output. Text is never empty.
type Reply struct {
	Text       string
	Confidence int
	Sources    []models.Source
	Model      string // empty unless the backend produced Text
	Path       Path
}

// ResponseGenerator runs the degradation ladder: shortcut, grounded generation, or a
// deterministic template when generation fails.
type ResponseGenerator struct {
	backend llm.Backend
	cfg     GeneratorConfig
	logger  *zap.Logger
}

func NewResponseGenerator(backend llm.Backend, cfg GeneratorConfig, logger *zap.Logger) *ResponseGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 4000
	}
	return &ResponseGenerator{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "generator")),
	}
}

// Generate always returns a usable reply; backend failures are absorbed here.
func (g *ResponseGenerator) Generate(ctx context.Context, in GenerateInput) Reply {
	reply := g.generate(ctx, in)
	metrics.GenerationPaths.WithLabelValues(string(reply.Path)).Inc()
	return reply
}

func (g *ResponseGenerator) generate(ctx context.Context, in GenerateInput) Reply {
	switch in.Intent {
	case nlu.IntentGreeting:
		return g.shortcut(in, ConfidenceGreeting)
	case nlu.IntentHelp:
		return g.shortcut(in, ConfidenceHelp)
	case nlu.IntentVisa:
		// Ask for the country with the generic visa guidance. A named country with no
		// visa rows still goes to the backend.
		if in.Countries == 0 {
			return g.shortcut(in, ConfidenceClarify)
		}
	}

	model := in.Persona.Model
	if model == "" {
		model = g.cfg.DefaultModel
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := g.backend.Complete(callCtx, llm.Request{
		SystemPrompt: g.systemPrompt(in),
		UserMessage:  in.Message,
		Model:        model,
		MaxTokens:    g.cfg.MaxTokens,
		Temperature:  g.cfg.Temperature,
	})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		outcome := "error"
		if errors.Is(err, llm.ErrTimeout) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			outcome = "timeout"
		}
		metrics.GenerationDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		g.logger.Warn("generation failed, using template",
			zap.String("intent", string(in.Intent)),
			zap.String("language", string(in.Language)),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return Reply{
			Text:       cannedReply(in.Intent, in.Language, in.Persona),
			Confidence: ConfidenceDegraded,
			Sources:    []models.Source{},
			Path:       PathDegraded,
		}
	}
	metrics.GenerationDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())

	reply := Reply{
		Text:       text,
		Confidence: ConfidenceUngrounded,
		Sources:    []models.Source{},
		Model:      model,
		Path:       PathGrounded,
	}
	if !in.Block.Empty() {
		reply.Confidence = ConfidenceGrounded
		reply.Sources = sourcesFrom(in.Block)
	}
	return reply
}

func (g *ResponseGenerator) shortcut(in GenerateInput, confidence int) Reply {
	return Reply{
		Text:       cannedReply(in.Intent, in.Language, in.Persona),
		Confidence: confidence,
		Sources:    []models.Source{},
		Path:       PathShortcut,
	}
}

var modeRoles = map[models.ChatbotMode]string{
	models.ModeEducation: "an assistant that helps students with studying abroad, universities, scholarships and visas",
	models.ModeDocument:  "an assistant that answers questions about the organisation's documents",
}

var languageInstructions = map[nlu.Language]string{
	nlu.LangTurkish: "Always answer in Turkish.",
	nlu.LangEnglish: "Always answer in English.",
}

// systemPrompt is persona + grounding + language instruction, capped at MaxPromptChars.
// The grounding block absorbs any cut so the persona and language instruction survive.
func (g *ResponseGenerator) systemPrompt(in GenerateInput) string {
	role, ok := modeRoles[in.Persona.Mode]
	if !ok {
		role = modeRoles[models.ModeEducation]
	}
	name := in.Persona.Name
	if name == "" {
		name = "the assistant"
	}

	persona := fmt.Sprintf("You are %s, %s.", name, role)
	if in.Persona.SystemPrompt != "" {
		persona += "\n" + in.Persona.SystemPrompt
	}
	persona = clip(persona, g.cfg.MaxPromptChars/2)

	lang, ok := languageInstructions[in.Language]
	if !ok {
		lang = languageInstructions[nlu.LangTurkish]
	}
	instruction := lang + " Keep the answer short and practical. If you are not sure, say so instead of guessing."

	var grounded string
	if !in.Block.Empty() {
		grounded = "\n\nUse this reference information where relevant and do not invent details beyond it:\n" + in.Block.Text
		budget := g.cfg.MaxPromptChars - utf8.RuneCountInString(persona) - utf8.RuneCountInString(instruction) - 2
		grounded = clip(grounded, budget)
	}

	return clip(persona+grounded+"\n\n"+instruction, g.cfg.MaxPromptChars)
}

func sourcesFrom(b grounding.Block) []models.Source {
	out := make([]models.Source, 0, len(b.Records))
	for _, r := range b.Records {
		label := r.Title
		if r.Country != "" && !strings.Contains(r.Title, r.Country) {
			label = fmt.Sprintf("%s (%s)", r.Title, r.Country)
		}
		out = append(out, models.Source{Label: label, Relevance: r.Relevance})
	}
	return out
}

func clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
