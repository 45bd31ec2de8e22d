package extraction

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clearfocus/internal/config"
	"clearfocus/internal/model"
)

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"plain", `[{"canonical_text":"Buy milk","pressure_score":0.1,"leverage_score":0.2}]`, 1},
		{"fenced", "```json\n[{\"canonical_text\":\"A\"},{\"canonical_text\":\"B\",\"scheduled_date\":\"2024-05-11\"}]\n```", 2},
		{"empty array", "[]", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCandidates(tt.reply)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	got, err := parseCandidates("```[{\"canonical_text\":\"Call\",\"scheduled_date\":\"2024-05-11\",\"pressure_score\":0.7}]```")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Call", got[0].Text)
	assert.InDelta(t, 0.7, got[0].Pressure, 1e-9)
	require.NotNil(t, got[0].ScheduledDate)
	assert.Equal(t, "2024-05-11", *got[0].ScheduledDate)

	_, err = parseCandidates("I could not find tasks")
	assert.Error(t, err)
}

func TestHeuristicExtractor(t *testing.T) {
	text := `- buy milk
* call the client about the contract tomorrow
1. pay tax 2024-06-01

journal: feeling ok; urgent: fix the sink now!`

	got, err := NewHeuristicExtractor().Extract(context.Background(), text, "2024-05-10")
	require.NoError(t, err)
	require.Len(t, got, 5)

	assert.Equal(t, "Buy milk", got[0].Text)
	assert.InDelta(t, baseScore, got[0].Pressure, 1e-9)
	assert.InDelta(t, baseScore, got[0].Leverage, 1e-9)
	assert.Nil(t, got[0].ScheduledDate)

	assert.Equal(t, "Call the client about the contract tomorrow", got[1].Text)
	assert.InDelta(t, 0.7, got[1].Leverage, 1e-9)
	require.NotNil(t, got[1].ScheduledDate)
	assert.Equal(t, "2024-05-11", *got[1].ScheduledDate)

	require.NotNil(t, got[2].ScheduledDate)
	assert.Equal(t, "2024-06-01", *got[2].ScheduledDate)

	assert.Equal(t, "Journal: feeling ok", got[3].Text)
	assert.Equal(t, "Urgent: fix the sink now!", got[4].Text)
	assert.InDelta(t, 0.9, got[4].Pressure, 1e-9)
}

func TestScheduledDate(t *testing.T) {
	assert.Equal(t, "2024-05-31", scheduledDate("pay rent tomorrow", "2024-05-30"))
	assert.Equal(t, "2024-06-01", scheduledDate("pay rent tomorrow", "2024-05-31"))
	assert.Equal(t, "2024-05-30", scheduledDate("call mom tonight", "2024-05-30"))
	assert.Equal(t, "2024-07-04", scheduledDate("party 2024-07-04 tomorrow", "2024-05-30"))
	assert.Equal(t, "2024-05-31", scheduledDate("form 2024-13-45 due tomorrow", "2024-05-30"))
	assert.Empty(t, scheduledDate("pay rent tomorrow", "30.05.2024"))
	assert.Empty(t, scheduledDate("pay rent", "2024-05-30"))

	got := scheduledDate("today", "2024-05-30")
	_, err := time.Parse(model.DateLayout, got)
	assert.NoError(t, err)
}

func TestHeuristicExtractor_Empty(t *testing.T) {
	got, err := NewHeuristicExtractor().Extract(context.Background(), "  \n\n - \n", "2024-05-10")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLLMExtractor_RetriesTransientErrors(t *testing.T) {
	var calls int32
	gen := func(ctx context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "Current Date: 2024-05-10")
		if atomic.AddInt32(&calls, 1) < 3 {
			return "", errors.New("502 bad gateway")
		}
		return `[{"canonical_text":"Renew passport","pressure_score":0.4,"leverage_score":0.6}]`, nil
	}
	e := newLLMExtractor(gen, 6000, time.Second, zap.NewNop())
	e.baseBackoff = time.Millisecond

	got, err := e.Extract(context.Background(), "passport expires soon", "2024-05-10")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Renew passport", got[0].Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLLMExtractor_GivesUp(t *testing.T) {
	var calls int32
	gen := func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("unavailable")
	}
	e := newLLMExtractor(gen, 6000, time.Second, zap.NewNop())
	e.baseBackoff = time.Millisecond

	_, err := e.Extract(context.Background(), "x", "2024-05-10")
	require.Error(t, err)
	assert.Equal(t, int32(defaultMaxRetries+1), atomic.LoadInt32(&calls))
}

func TestLLMExtractor_MalformedReplyNotRetried(t *testing.T) {
	var calls int32
	gen := func(ctx context.Context, prompt string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "sure! here are your tasks", nil
	}
	e := newLLMExtractor(gen, 6000, time.Second, zap.NewNop())

	_, err := e.Extract(context.Background(), "x", "2024-05-10")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNew(t *testing.T) {
	e, err := New(config.ExtractionConfig{Provider: "heuristic"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &HeuristicExtractor{}, e)

	_, err = New(config.ExtractionConfig{Provider: "openai"}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(config.ExtractionConfig{Provider: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)
}
