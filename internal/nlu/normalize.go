package nlu

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text is a message in the two canonical forms the matchers work on.
type Text struct {
	// Raw is the trimmed input.
	Raw string
	// Lower is NFC, lower-cased with Turkish dotted/dotless I handled. Diacritics are kept
	// so tokens taken from it can be sent to the store as typed.
	Lower string
	// Folded is Lower with diacritics removed and every non letter/digit run collapsed
	// to a single space, padded with one space on each side.
	Folded string
}

// Tokens returns the folded words of t.
func (t Text) Tokens() []string {
	return strings.Fields(t.Folded)
}

// Canonicalize produces the canonical forms of a raw message. It is pure.
func Canonicalize(s string) Text {
	raw := strings.TrimSpace(s)
	lower := lowerTR(norm.NFC.String(raw))
	return Text{
		Raw:    raw,
		Lower:  lower,
		Folded: " " + strings.Join(strings.Fields(squash(stripMarks(lower))), " ") + " ",
	}
}

// Fold returns the accent- and case-insensitive form of a keyword or alias,
// without padding. Keywords and messages go through the same folding.
func Fold(s string) string {
	return strings.TrimSpace(Canonicalize(s).Folded)
}

// lowerTR lower-cases s. Go maps 'İ' to "i̇" (i + combining dot), which would leave a
// stray mark after folding, so the dotted capital is mapped first.
func lowerTR(s string) string {
	s = strings.ReplaceAll(s, "İ", "i")
	return strings.ToLower(s)
}

func stripMarks(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	// Dotless i has no decomposition.
	return strings.ReplaceAll(out, "ı", "i")
}

func squash(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, s)
}

// containsPhrase reports whether folded (padded) text contains phrase starting at a word boundary.
// With whole set the phrase must also end at a word boundary.
func containsPhrase(folded, phrase string, whole bool) bool {
	if phrase == "" {
		return false
	}
	needle := " " + phrase
	if whole {
		needle += " "
	}
	return strings.Contains(folded, needle)
}
