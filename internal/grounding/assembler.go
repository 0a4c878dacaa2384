package grounding

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"widgetchat-backend/internal/cache"
	"widgetchat-backend/internal/metrics"
	"widgetchat-backend/internal/nlu"
	"widgetchat-backend/internal/store"
)

// Coarse relevance of a grounding record. Records found through an extracted country
// rank above keyword matches, which rank above unfiltered top rows.
const (
	RelevanceHigh   = "high"
	RelevanceMedium = "medium"
	RelevanceLow    = "low"
)

// Record is one grounding row in canonical form. Lives only for one request.
type Record struct {
	Title     string `json:"title"`
	Country   string `json:"country"`
	Detail    string `json:"detail"`
	URL       string `json:"url,omitempty"`
	Relevance string `json:"relevance"`
	Snippet   string `json:"snippet"`
}

// Block is the bounded context handed to the generator.
type Block struct {
	Text    string
	Records []Record
}

// Empty reports whether the block carries no context.
func (b Block) Empty() bool {
	return strings.TrimSpace(b.Text) == ""
}

// Request is what the assembler needs from NLU.
type Request struct {
	Intent      nlu.IntentCategory
	Countries   []nlu.Country
	VisaType    nlu.VisaType
	HasVisaType bool
	Keyword     string
}

// Config bounds the block.
type Config struct {
	MaxRecords   int
	MaxChars     int
	SnippetChars int
	CacheTTL     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRecords <= 0 {
		c.MaxRecords = 3
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 1500
	}
	if c.SnippetChars <= 0 {
		c.SnippetChars = 200
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 10 * time.Minute
	}
	return c
}

// Assembler queries the structured store for context relevant to a message.
type Assembler struct {
	store  store.GroundingReader
	cache  cache.Cache
	cfg    Config
	logger *zap.Logger
}

// NewAssembler creates an assembler. A nil cache disables caching.
func NewAssembler(st store.GroundingReader, c cache.Cache, cfg Config, logger *zap.Logger) *Assembler {
	if c == nil {
		c = cache.Noop{}
	}
	return &Assembler{
		store:  st,
		cache:  c,
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("component", "grounding")),
	}
}

// Assemble builds the grounding block for one message. It never fails: store errors
// are logged and yield an empty block. Intents that need no grounding, and visa
// questions without a country, issue no query at all.
func (a *Assembler) Assemble(ctx context.Context, req Request) Block {
	intent := string(req.Intent)

	var q query
	switch req.Intent {
	case nlu.IntentScholarship, nlu.IntentUniversity:
		q = a.searchQuery(req)
	case nlu.IntentVisa:
		if len(req.Countries) == 0 {
			metrics.GroundingLookups.WithLabelValues(intent, metrics.OutcomeSkipped).Inc()
			return Block{}
		}
		q = a.visaQuery(req)
	default:
		metrics.GroundingLookups.WithLabelValues(intent, metrics.OutcomeSkipped).Inc()
		return Block{}
	}

	records, ok := a.cached(ctx, q.key)
	if ok {
		metrics.GroundingLookups.WithLabelValues(intent, metrics.OutcomeCacheHit).Inc()
	} else {
		var err error
		records, err = q.run(ctx)
		if err != nil {
			metrics.GroundingLookups.WithLabelValues(intent, metrics.OutcomeError).Inc()
			a.logger.Warn("grounding query failed, continuing without context",
				zap.String("intent", intent),
				zap.Error(err),
			)
			return Block{}
		}
		metrics.GroundingLookups.WithLabelValues(intent, metrics.OutcomeQueried).Inc()
		if len(records) > a.cfg.MaxRecords {
			records = records[:a.cfg.MaxRecords]
		}
		a.remember(ctx, q.key, records)
	}

	return a.format(q.header, records)
}

type query struct {
	key    string
	header string
	run    func(ctx context.Context) ([]Record, error)
}

func (a *Assembler) searchQuery(req Request) query {
	terms, relevance := searchTerms(req)
	params := store.SearchParams{Terms: terms, Limit: a.cfg.MaxRecords}

	q := query{key: cacheKey(req.Intent, terms, "")}
	if req.Intent == nlu.IntentScholarship {
		q.header = "Scholarships:"
		q.run = func(ctx context.Context) ([]Record, error) {
			rows, err := a.store.SearchScholarships(ctx, params)
			if err != nil {
				return nil, err
			}
			out := make([]Record, 0, len(rows))
			for _, r := range rows {
				out = append(out, scholarshipRecord(r, relevance, a.cfg.SnippetChars))
			}
			return out, nil
		}
		return q
	}
	q.header = "Universities:"
	q.run = func(ctx context.Context) ([]Record, error) {
		rows, err := a.store.SearchUniversities(ctx, params)
		if err != nil {
			return nil, err
		}
		out := make([]Record, 0, len(rows))
		for _, r := range rows {
			out = append(out, universityRecord(r, relevance, a.cfg.SnippetChars))
		}
		return out, nil
	}
	return q
}

func (a *Assembler) visaQuery(req Request) query {
	var terms []string
	for _, c := range req.Countries {
		terms = append(terms, c.SearchTerms()...)
	}
	params := store.VisaSearchParams{CountryTerms: terms, Limit: a.cfg.MaxRecords}
	vt := ""
	if req.HasVisaType {
		vt = string(req.VisaType)
		params.VisaType = &vt
	}
	return query{
		key:    cacheKey(req.Intent, terms, vt),
		header: "Visa information:",
		run: func(ctx context.Context) ([]Record, error) {
			rows, err := a.store.SearchVisaInfo(ctx, params)
			if err != nil {
				return nil, err
			}
			out := make([]Record, 0, len(rows))
			for _, r := range rows {
				out = append(out, visaRecord(r))
			}
			return out, nil
		},
	}
}

// searchTerms prefers extracted countries over the free-text keyword. Neither means
// the store returns its top rows unfiltered.
func searchTerms(req Request) ([]string, string) {
	if len(req.Countries) > 0 {
		var terms []string
		for _, c := range req.Countries {
			terms = append(terms, c.SearchTerms()...)
		}
		return terms, RelevanceHigh
	}
	if req.Keyword != "" {
		return []string{req.Keyword}, RelevanceMedium
	}
	return nil, RelevanceLow
}

func cacheKey(intent nlu.IntentCategory, terms []string, visaType string) string {
	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}
	return "grounding:" + string(intent) + ":" + strings.Join(lowered, "|") + ":" + visaType
}

func (a *Assembler) cached(ctx context.Context, key string) ([]Record, bool) {
	val, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Debug("grounding cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var records []Record
	if err := json.Unmarshal(val, &records); err != nil {
		return nil, false
	}
	return records, true
}

// remember writes records back to the cache. Failures only cost a future cache miss.
func (a *Assembler) remember(ctx context.Context, key string, records []Record) {
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, a.cfg.CacheTTL); err != nil {
		a.logger.Debug("grounding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// format renders the header and as many whole snippets as fit in MaxChars. A first
// snippet that alone exceeds the limit is cut.
func (a *Assembler) format(header string, records []Record) Block {
	if len(records) == 0 {
		return Block{}
	}
	var b strings.Builder
	b.WriteString(header)
	used := runeLen(header)

	var kept []Record
	for _, r := range records {
		if len(kept) == a.cfg.MaxRecords {
			break
		}
		piece := "\n" + r.Snippet
		n := runeLen(piece)
		if used+n > a.cfg.MaxChars {
			if len(kept) == 0 && a.cfg.MaxChars-used > 1 {
				b.WriteString(truncate(piece, a.cfg.MaxChars-used))
				kept = append(kept, r)
			}
			break
		}
		b.WriteString(piece)
		used += n
		kept = append(kept, r)
	}
	if len(kept) == 0 {
		return Block{}
	}
	return Block{Text: truncate(b.String(), a.cfg.MaxChars), Records: kept}
}
