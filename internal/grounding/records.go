package grounding

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"widgetchat-backend/internal/models"
)

const maxRequirements = 5

func scholarshipRecord(s models.Scholarship, relevance string, snippetChars int) Record {
	r := Record{
		Title:     s.Title,
		Country:   s.Country,
		Detail:    deref(s.Amount),
		URL:       deref(s.ApplicationURL),
		Relevance: relevance,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- %s (%s)", s.Title, s.Country)
	if r.Detail != "" {
		fmt.Fprintf(&b, "\n  Amount: %s", r.Detail)
	}
	if s.Deadline != nil {
		fmt.Fprintf(&b, "\n  Deadline: %s", s.Deadline.Format("2006-01-02"))
	}
	if d := oneLine(s.Description); d != "" {
		fmt.Fprintf(&b, "\n  %s", truncate(d, snippetChars))
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "\n  Apply: %s", r.URL)
	}
	r.Snippet = b.String()
	return r
}

func universityRecord(u models.University, relevance string, snippetChars int) Record {
	r := Record{
		Title:     u.Name,
		Country:   u.Country,
		URL:       deref(u.Website),
		Relevance: relevance,
	}
	if u.Ranking != nil {
		r.Detail = fmt.Sprintf("Ranking #%d", *u.Ranking)
	}

	location := u.Country
	if city := deref(u.City); city != "" {
		location = city + ", " + u.Country
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- %s (%s)", u.Name, location)
	if r.Detail != "" {
		fmt.Fprintf(&b, "\n  %s", r.Detail)
	}
	if d := oneLine(u.Description); d != "" {
		fmt.Fprintf(&b, "\n  %s", truncate(d, snippetChars))
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "\n  Website: %s", r.URL)
	}
	r.Snippet = b.String()
	return r
}

// visaRecord is always high relevance: visa rows are only fetched by country.
func visaRecord(v models.VisaInfo) Record {
	r := Record{
		Title:     fmt.Sprintf("%s %s visa", v.Country, v.VisaType),
		Country:   v.Country,
		URL:       deref(v.ReferenceURL),
		Relevance: RelevanceHigh,
	}

	var facts []string
	if d := deref(v.Duration); d != "" {
		facts = append(facts, "Duration: "+d)
	}
	if c := deref(v.Cost); c != "" {
		facts = append(facts, "Cost: "+c)
	}
	if p := deref(v.ProcessingTime); p != "" {
		facts = append(facts, "Processing time: "+p)
	}
	r.Detail = strings.Join(facts, ", ")

	var b strings.Builder
	fmt.Fprintf(&b, "- %s", r.Title)
	if r.Detail != "" {
		fmt.Fprintf(&b, "\n  %s", r.Detail)
	}
	if len(v.Requirements) > 0 {
		reqs := v.Requirements
		more := 0
		if len(reqs) > maxRequirements {
			more = len(reqs) - maxRequirements
			reqs = reqs[:maxRequirements]
		}
		fmt.Fprintf(&b, "\n  Requirements: %s", strings.Join(reqs, "; "))
		if more > 0 {
			fmt.Fprintf(&b, " (+%d more)", more)
		}
	}
	if r.URL != "" {
		fmt.Fprintf(&b, "\n  Reference: %s", r.URL)
	}
	r.Snippet = b.String()
	return r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// truncate cuts s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if runeLen(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:n])
	}
	return strings.TrimRight(string(r[:n-3]), " ") + "..."
}
