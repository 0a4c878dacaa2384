package nlu

import "strings"

// DetectLanguage guesses the language of a message from common marker words, with
// language-specific letters as a tie-breaker. Letters inside country names do not count,
// so "Türkiye" in an English question stays English. Ties, including text with no
// markers at all, fall back to the table's default language.
func (r *Rules) DetectLanguage(text string) Language {
	return r.detect(Canonicalize(text))
}

func (r *Rules) detect(t Text) Language {
	best, bestScore, tie := r.DefaultLanguage, 0, false
	tokens := t.Tokens()
	words := strings.Fields(squash(t.Lower))
	for _, lm := range r.Languages {
		score := 0
		if lm.Letters != "" && r.hasLetterEvidence(words, lm.Letters) {
			score++
		}
		for _, tok := range tokens {
			for _, w := range lm.Words {
				if tok == w {
					score++
					break
				}
			}
		}
		switch {
		case score > bestScore:
			best, bestScore, tie = lm.Language, score, false
		case score == bestScore && score > 0:
			tie = true
		}
	}
	if bestScore == 0 || tie {
		return r.DefaultLanguage
	}
	return best
}

func (r *Rules) hasLetterEvidence(words []string, letters string) bool {
	for _, w := range words {
		if !strings.ContainsAny(w, letters) {
			continue
		}
		if _, ok := r.countryWords[Fold(w)]; ok {
			continue
		}
		return true
	}
	return false
}
