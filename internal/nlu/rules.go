package nlu

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"widgetchat-backend/internal/models"
)

// IntentCategory is the coarse purpose of a single inbound message.
type IntentCategory string

const (
	IntentGreeting      IntentCategory = "greeting"
	IntentHelp          IntentCategory = "help"
	IntentVisa          IntentCategory = "visa"
	IntentScholarship   IntentCategory = "scholarship"
	IntentUniversity    IntentCategory = "university"
	IntentDocumentQuery IntentCategory = "document_query"
	IntentGeneric       IntentCategory = "generic"
)

// Priority lists the categories highest first. Generic is the implicit no-match result
// and has no rule of its own.
var Priority = []IntentCategory{
	IntentGreeting,
	IntentHelp,
	IntentVisa,
	IntentScholarship,
	IntentUniversity,
	IntentDocumentQuery,
	IntentGeneric,
}

func priorityOf(c IntentCategory) int {
	for i, p := range Priority {
		if p == c {
			return i
		}
	}
	return -1
}

// Language is a detected message language.
type Language string

const (
	LangTurkish Language = "tr"
	LangEnglish Language = "en"
)

// VisaType is a canonical visa category.
type VisaType string

const (
	VisaStudent VisaType = "student"
	VisaWork    VisaType = "work"
	VisaTourist VisaType = "tourist"
	VisaFamily  VisaType = "family"
)

// IntentRule is one row of the rule table. Keywords match at the start of any word so
// agglutinated forms ("vizesi", "üniversitede") are caught; Words must match whole words.
type IntentRule struct {
	Category IntentCategory       `yaml:"category"`
	Language Language             `yaml:"language"`
	Modes    []models.ChatbotMode `yaml:"modes"`
	Keywords []string             `yaml:"keywords"`
	Words    []string             `yaml:"words"`
}

func (r IntentRule) appliesTo(mode models.ChatbotMode) bool {
	if len(r.Modes) == 0 {
		return true
	}
	for _, m := range r.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// Country is a canonical country with its localized name variants.
type Country struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

// SearchTerms returns the terms the store should match for this country: the canonical
// name followed by its aliases, as written in the table.
func (c Country) SearchTerms() []string {
	return append([]string{c.Name}, c.Aliases...)
}

type visaTypeAliases struct {
	Type    VisaType `yaml:"type"`
	Aliases []string `yaml:"aliases"`
}

type languageMarkers struct {
	Language Language `yaml:"language"`
	Letters  string   `yaml:"letters"`
	Words    []string `yaml:"words"`
}

// Rules is the immutable alias and keyword configuration shared by the classifier and
// the extractor. Build it with LoadRules or DefaultRules; do not mutate it afterwards.
type Rules struct {
	DefaultLanguage Language          `yaml:"default_language"`
	Intents         []IntentRule      `yaml:"intents"`
	Countries       []Country         `yaml:"countries"`
	VisaTypes       []visaTypeAliases `yaml:"visa_types"`
	Languages       []languageMarkers `yaml:"languages"`
	Stopwords       []string          `yaml:"stopwords"`

	// folded lookups, filled by prepare
	foldedCountries [][]string
	countryWords    map[string]struct{}
	foldedVisa      [][]string
	stopwords       map[string]struct{}
	triggerPrefixes []string
	triggerWords    map[string]struct{}
}

//go:embed rules.yaml
var defaultRulesYAML []byte

// DefaultRules parses the embedded rule table.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads a rule table from path, or the embedded table when path is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule table.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	if err := r.prepare(); err != nil {
		return nil, err
	}
	return &r, nil
}

// WithDefaultLanguage returns a copy of r that falls back to lang for ambiguous input.
func (r *Rules) WithDefaultLanguage(lang Language) (*Rules, error) {
	if lang != LangTurkish && lang != LangEnglish {
		return nil, fmt.Errorf("rules: unsupported default language %q", lang)
	}
	cp := *r
	cp.DefaultLanguage = lang
	return &cp, nil
}

func (r *Rules) prepare() error {
	if r.DefaultLanguage == "" {
		r.DefaultLanguage = LangTurkish
	}
	if len(r.Intents) == 0 {
		return errors.New("rules: no intent rules defined")
	}

	last := 0
	r.triggerWords = make(map[string]struct{})
	for i := range r.Intents {
		rule := &r.Intents[i]
		p := priorityOf(rule.Category)
		if p < 0 || rule.Category == IntentGeneric {
			return fmt.Errorf("rules: intent rule %d has unknown category %q", i, rule.Category)
		}
		if p < last {
			return fmt.Errorf("rules: intent rule %d (%s) is listed after a lower-priority category", i, rule.Category)
		}
		last = p
		if len(rule.Keywords)+len(rule.Words) == 0 {
			return fmt.Errorf("rules: intent rule %d (%s) has no keywords", i, rule.Category)
		}
		rule.Keywords = foldAll(rule.Keywords)
		rule.Words = foldAll(rule.Words)
		r.triggerPrefixes = append(r.triggerPrefixes, rule.Keywords...)
		for _, w := range rule.Words {
			r.triggerWords[w] = struct{}{}
		}
	}

	r.foldedCountries = make([][]string, len(r.Countries))
	r.countryWords = make(map[string]struct{})
	for i, c := range r.Countries {
		if c.Code == "" || c.Name == "" {
			return fmt.Errorf("rules: country %d is missing code or name", i)
		}
		r.foldedCountries[i] = foldAll(c.SearchTerms())
		for _, alias := range r.foldedCountries[i] {
			for _, w := range strings.Fields(alias) {
				r.countryWords[w] = struct{}{}
			}
		}
	}
	r.foldedVisa = make([][]string, len(r.VisaTypes))
	for i, v := range r.VisaTypes {
		r.foldedVisa[i] = foldAll(v.Aliases)
	}
	for i := range r.Languages {
		r.Languages[i].Words = foldAll(r.Languages[i].Words)
	}
	r.stopwords = make(map[string]struct{}, len(r.Stopwords))
	for _, w := range foldAll(r.Stopwords) {
		r.stopwords[w] = struct{}{}
	}
	return nil
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if f := Fold(s); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// shortAlias reports whether an alias is too short to be matched as a bare substring
// ("uk", "abd", "cin") and must match a whole word instead.
func shortAlias(s string) bool {
	return utf8.RuneCountInString(s) < 4
}
