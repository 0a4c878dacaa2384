package nlu

import "widgetchat-backend/internal/models"

// Analysis is the full NLU view of one message.
type Analysis struct {
	Text     Text
	Intent   IntentCategory
	Language Language
	Entities Entities
}

// NeedsGrounding reports whether intent is answered from the structured store.
func NeedsGrounding(intent IntentCategory) bool {
	switch intent {
	case IntentVisa, IntentScholarship, IntentUniversity:
		return true
	}
	return false
}

// Analyzer bundles the classifier, extractor and language detector over one rule table.
type Analyzer struct {
	rules      *Rules
	classifier *Classifier
	extractor  *Extractor
}

func NewAnalyzer(rules *Rules) *Analyzer {
	return &Analyzer{
		rules:      rules,
		classifier: NewClassifier(rules),
		extractor:  NewExtractor(rules),
	}
}

// Analyze classifies text, detects its language and, only for intents that need
// grounding, extracts entities.
func (a *Analyzer) Analyze(text string, mode models.ChatbotMode) Analysis {
	t := Canonicalize(text)
	res := Analysis{
		Text:     t,
		Intent:   a.classifier.ClassifyText(t, mode),
		Language: a.rules.detect(t),
	}
	if NeedsGrounding(res.Intent) {
		res.Entities = a.extractor.Extract(t)
	}
	return res
}
