package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"clearfocus/internal/config"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 60 * time.Second
	defaultMaxRetries  = 3
	defaultBaseBackoff = time.Second
	defaultPerMinute   = 50
	defaultBurst       = 5
)

const extractPrompt = `You are a cognitive offloading assistant. Your job is to extract actionable tasks from the following raw text.

Current Date: %s
Raw Text: %q

Rules:
1. Identify distinct tasks.
2. Ignore pure noise or journaling unless it implies a task.
3. For each task, provide:
   - canonical_text: A clear, action-oriented title (e.g., "Buy milk").
   - pressure_score: 0.0 to 1.0 (based on urgency/anxiety in text).
   - leverage_score: 0.0 to 1.0 (based on potential impact).
   - scheduled_date: YYYY-MM-DD if a specific date or deadline is mentioned, otherwise null. Resolve "tomorrow", "next Friday" based on Current Date.

Return ONLY a JSON array of objects. No markdown formatting.
Example: [{"canonical_text": "Buy milk", "pressure_score": 0.1, "leverage_score": 0.1, "scheduled_date": null}]`

type generateFunc func(ctx context.Context, prompt string) (string, error)

// LLMExtractor asks a chat model for candidates. Calls are rate limited and
// transient failures are retried with exponential backoff.
type LLMExtractor struct {
	generate    generateFunc
	limiter     *rate.Limiter
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	log         *zap.Logger
}

// NewLLMExtractor builds an extractor on an OpenAI-compatible endpoint.
func NewLLMExtractor(cfg config.ExtractionConfig, log *zap.Logger) (*LLMExtractor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts = append(opts, openai.WithHTTPClient(&http.Client{Timeout: timeout}))

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	generate := func(ctx context.Context, prompt string) (string, error) {
		return llms.GenerateFromSinglePrompt(ctx, llm, prompt, llms.WithTemperature(0.2))
	}
	return newLLMExtractor(generate, cfg.RatePerMinute, timeout, log), nil
}

func newLLMExtractor(generate generateFunc, perMinute int, timeout time.Duration, log *zap.Logger) *LLMExtractor {
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}
	return &LLMExtractor{
		generate:    generate,
		limiter:     rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), defaultBurst),
		timeout:     timeout,
		maxRetries:  defaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		log:         log.Named("extraction"),
	}
}

func (e *LLMExtractor) Extract(ctx context.Context, text, currentDate string) ([]Candidate, error) {
	prompt := fmt.Sprintf(extractPrompt, currentDate, text)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		reply, err := e.call(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			e.log.Warn("extraction request failed", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		candidates, err := parseCandidates(reply)
		if err != nil {
			// A malformed reply is not retried; the caller falls back.
			return nil, err
		}
		return candidates, nil
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (e *LLMExtractor) call(ctx context.Context, prompt string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	reply, err := e.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", errors.New("empty completion")
	}
	return reply, nil
}
