package nlu

import (
	"strings"

	"widgetchat-backend/internal/models"
)

// Classifier assigns exactly one IntentCategory to a message using the ordered rule table.
type Classifier struct {
	rules *Rules
}

// NewClassifier creates a classifier over an immutable rule table.
func NewClassifier(rules *Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the first category in priority order whose keywords match text.
// Rules that do not apply to mode are skipped, so a document bot never routes to the
// education categories. No match yields IntentGeneric.
func (c *Classifier) Classify(text string, mode models.ChatbotMode) IntentCategory {
	return c.ClassifyText(Canonicalize(text), mode)
}

// ClassifyText is Classify over an already canonicalized message.
func (c *Classifier) ClassifyText(t Text, mode models.ChatbotMode) IntentCategory {
	if strings.TrimSpace(t.Folded) == "" {
		return IntentGeneric
	}
	for _, rule := range c.rules.Intents {
		if !rule.appliesTo(mode) {
			continue
		}
		if matchesRule(t.Folded, rule) {
			return rule.Category
		}
	}
	return IntentGeneric
}

func matchesRule(folded string, rule IntentRule) bool {
	for _, kw := range rule.Keywords {
		if containsPhrase(folded, kw, false) {
			return true
		}
	}
	for _, w := range rule.Words {
		if containsPhrase(folded, w, true) {
			return true
		}
	}
	return false
}

// isTrigger reports whether a folded token starts with any intent keyword or equals
// any intent word.
func (r *Rules) isTrigger(token string) bool {
	if _, ok := r.triggerWords[token]; ok {
		return true
	}
	for _, kw := range r.triggerPrefixes {
		if strings.HasPrefix(token, kw) {
			return true
		}
	}
	return false
}
