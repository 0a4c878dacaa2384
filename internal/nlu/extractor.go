package nlu

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extractor pulls canonical entities out of free text. It never fails: text without
// recognizable entities yields empty results.
type Extractor struct {
	rules *Rules
}

func NewExtractor(rules *Rules) *Extractor {
	return &Extractor{rules: rules}
}

// Entities is everything the grounding step needs from one message.
type Entities struct {
	Countries   []Country
	VisaType    VisaType
	HasVisaType bool
	Keyword     string
}

// Extract runs every extractor over a canonicalized message.
func (e *Extractor) Extract(t Text) Entities {
	vt, ok := e.visaType(t)
	return Entities{
		Countries:   e.countries(t),
		VisaType:    vt,
		HasVisaType: ok,
		Keyword:     e.keyword(t),
	}
}

// ExtractCountries returns the distinct countries mentioned in text, in order of first mention.
func (e *Extractor) ExtractCountries(text string) []Country {
	return e.countries(Canonicalize(text))
}

// ExtractVisaType returns the first visa type mentioned in text.
func (e *Extractor) ExtractVisaType(text string) (VisaType, bool) {
	return e.visaType(Canonicalize(text))
}

// SearchKeyword returns the first significant word of text, or "" if there is none.
func (e *Extractor) SearchKeyword(text string) string {
	return e.keyword(Canonicalize(text))
}

func (e *Extractor) countries(t Text) []Country {
	type hit struct {
		idx int
		pos int
	}
	var hits []hit
	for i, aliases := range e.rules.foldedCountries {
		if pos := firstIndex(t.Folded, aliases); pos >= 0 {
			hits = append(hits, hit{idx: i, pos: pos})
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].pos < hits[b].pos })
	out := make([]Country, 0, len(hits))
	for _, h := range hits {
		out = append(out, e.rules.Countries[h.idx])
	}
	return out
}

func (e *Extractor) visaType(t Text) (VisaType, bool) {
	best, bestPos := -1, -1
	for i, aliases := range e.rules.foldedVisa {
		if pos := firstIndex(t.Folded, aliases); pos >= 0 && (bestPos < 0 || pos < bestPos) {
			best, bestPos = i, pos
		}
	}
	if best < 0 {
		return "", false
	}
	return e.rules.VisaTypes[best].Type, true
}

// firstIndex returns the earliest position in folded where any alias occurs, or -1.
// Long aliases match as substrings; short ones only as whole words.
func firstIndex(folded string, aliases []string) int {
	best := -1
	for _, a := range aliases {
		var pos int
		if shortAlias(a) {
			pos = strings.Index(folded, " "+a+" ")
		} else {
			pos = strings.Index(folded, a)
		}
		if pos >= 0 && (best < 0 || pos < best) {
			best = pos
		}
	}
	return best
}

// keyword picks the first word of the lower-cased message that is not a stopword, an
// intent trigger or a country name and is at least three letters long. It is taken from
// Lower so diacritics survive into the store query.
func (e *Extractor) keyword(t Text) string {
	words := strings.FieldsFunc(t.Lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if utf8.RuneCountInString(w) < 3 {
			continue
		}
		f := Fold(w)
		if _, stop := e.rules.stopwords[f]; stop {
			continue
		}
		if e.rules.isTrigger(f) {
			continue
		}
		if firstIndex(" "+f+" ", e.allCountryAliases()) >= 0 {
			continue
		}
		return w
	}
	return ""
}

func (e *Extractor) allCountryAliases() []string {
	var all []string
	for _, a := range e.rules.foldedCountries {
		all = append(all, a...)
	}
	return all
}
