// Package extraction turns free-form dump text into task candidates.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"clearfocus/internal/config"
)

// Candidate is one task proposed by an extractor. Scores are nominally in
// [0,1]; ScheduledDate is YYYY-MM-DD when the text names a day.
type Candidate struct {
	Text          string  `json:"canonical_text"`
	Pressure      float64 `json:"pressure_score"`
	Leverage      float64 `json:"leverage_score"`
	ScheduledDate *string `json:"scheduled_date"`
}

// Extractor is the intake collaborator. currentDate (YYYY-MM-DD) anchors
// relative dates such as "tomorrow".
type Extractor interface {
	Extract(ctx context.Context, text, currentDate string) ([]Candidate, error)
}

// New returns the extractor selected by cfg.Provider.
func New(cfg config.ExtractionConfig, log *zap.Logger) (Extractor, error) {
	switch cfg.Provider {
	case "", "heuristic":
		return NewHeuristicExtractor(), nil
	case "openai":
		return NewLLMExtractor(cfg, log)
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Provider)
	}
}

// parseCandidates decodes a model reply, tolerating markdown code fences
// around the JSON array.
func parseCandidates(reply string) ([]Candidate, error) {
	cleaned := strings.ReplaceAll(reply, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var out []Candidate
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return out, nil
}
