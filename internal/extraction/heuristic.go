package extraction

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"clearfocus/internal/model"
)

const (
	baseScore     = 0.3
	keywordBoost  = 0.2
	maxLineRunes  = 200
	minTaskLength = 2
)

var (
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)]|\[[ xX]?\])\s*`)
	isoDate      = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

	urgencyWords = []string{
		"urgent", "asap", "today", "tonight", "tomorrow", "deadline", "overdue",
		"must", "immediately", "now", "due", "late",
	}
	impactWords = []string{
		"client", "launch", "release", "ship", "revenue", "contract", "invoice",
		"interview", "career", "health", "doctor", "tax", "pay", "boss", "team",
	}
)

// HeuristicExtractor splits a dump into one candidate per line and scores it
// by keyword. It needs no network access and never fails.
type HeuristicExtractor struct{}

func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

func (HeuristicExtractor) Extract(_ context.Context, text, currentDate string) ([]Candidate, error) {
	var out []Candidate
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ';' }) {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if utf8.RuneCountInString(line) < minTaskLength {
			continue
		}

		lower := strings.ToLower(line)
		c := Candidate{
			Text:     canonical(line),
			Pressure: score(lower, urgencyWords),
			Leverage: score(lower, impactWords),
		}
		if strings.HasSuffix(line, "!") {
			c.Pressure = clamp(c.Pressure + keywordBoost)
		}
		if date := scheduledDate(lower, currentDate); date != "" {
			c.ScheduledDate = &date
		}
		out = append(out, c)
	}
	return out, nil
}

func score(lower string, words []string) float64 {
	s := baseScore
	tokens := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		for _, w := range words {
			if tok == w {
				s += keywordBoost
			}
		}
	}
	return clamp(s)
}

func scheduledDate(lower, currentDate string) string {
	if m := isoDate.FindStringSubmatch(lower); m != nil {
		if _, err := time.Parse(model.DateLayout, m[1]); err == nil {
			return m[1]
		}
	}
	today, err := time.Parse(model.DateLayout, currentDate)
	if err != nil {
		return ""
	}
	switch {
	case containsWord(lower, "tomorrow"):
		return today.AddDate(0, 0, 1).Format(model.DateLayout)
	case containsWord(lower, "today"), containsWord(lower, "tonight"):
		return today.Format(model.DateLayout)
	}
	return ""
}

func containsWord(lower, word string) bool {
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if tok == word {
			return true
		}
	}
	return false
}

func canonical(line string) string {
	if utf8.RuneCountInString(line) > maxLineRunes {
		line = string([]rune(line)[:maxLineRunes])
	}
	r, size := utf8.DecodeRuneInString(line)
	return string(unicode.ToUpper(r)) + line[size:]
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
