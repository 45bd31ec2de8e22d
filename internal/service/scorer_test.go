package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearfocus/internal/model"
)

func TestNeglect(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	tk := model.Task{CreatedAt: now.Add(-days(10)), LastSeenAt: now.Add(-days(4))}
	assert.InDelta(t, 1.2, Neglect(tk, now), 1e-9)

	fresh := model.Task{CreatedAt: now, LastSeenAt: now}
	assert.InDelta(t, 0, Neglect(fresh, now), 1e-9)

	unseen := model.Task{CreatedAt: now.Add(-days(2))}
	assert.InDelta(t, 0.2, Neglect(unseen, now), 1e-9)

	assert.Greater(t, Neglect(tk, now.Add(time.Hour)), Neglect(tk, now))

	future := model.Task{CreatedAt: now.Add(days(3)), LastSeenAt: now.Add(days(1))}
	assert.Zero(t, Neglect(future, now))
	skewed := model.Task{CreatedAt: now.Add(-days(10)), LastSeenAt: now.Add(days(5))}
	assert.InDelta(t, 1.0, Neglect(skewed, now), 1e-9)
}

func TestScoreUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.addTask(t, 1, "old", taskOpts{pressure: 0.7, leverage: 0.3, createdAgo: days(10), seenAgo: days(4)})
	h.addTask(t, 1, "new", taskOpts{})
	h.addTask(t, 1, "done", taskOpts{neglect: 0.42, status: model.TaskDone, createdAgo: days(30), seenAgo: days(30)})
	h.addTask(t, 2, "other", taskOpts{createdAgo: days(30)})

	res, err := h.scorer.ScoreUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ScoreResult{Scored: 2}, res)

	old := h.getTask(t, "old")
	assert.InDelta(t, 1.2, old.NeglectScore, 1e-9)
	assert.InDelta(t, 0.7, old.PressureScore, 1e-9)
	assert.InDelta(t, 0.3, old.LeverageScore, 1e-9)
	assert.InDelta(t, 0, h.getTask(t, "new").NeglectScore, 1e-9)
	assert.InDelta(t, 0.42, h.getTask(t, "done").NeglectScore, 1e-9)
	assert.InDelta(t, 0, h.getTask(t, "other").NeglectScore, 1e-9)

	// Same instant, same value.
	_, err = h.scorer.ScoreUser(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.2, h.getTask(t, "old").NeglectScore, 1e-9)

	h.now = h.now.Add(days(1))
	_, err = h.scorer.ScoreUser(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.35, h.getTask(t, "old").NeglectScore, 1e-9)
}

func TestScoreUser_ActivityResetsSeenComponent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addTask(t, 1, "a", taskOpts{createdAgo: days(10), seenAgo: days(10)})

	require.NoError(t, h.activity.Apply(ctx, 1, "a", "touched"))
	_, err := h.scorer.ScoreUser(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, h.getTask(t, "a").NeglectScore, 1e-9)
}

func TestScoreUser_IsolatesFailingTask(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addTask(t, 1, "a", taskOpts{createdAgo: days(10), seenAgo: days(4)})
	h.addTask(t, 1, "b", taskOpts{createdAgo: days(10), seenAgo: days(4)})
	h.addTask(t, 1, "c", taskOpts{createdAgo: days(10), seenAgo: days(4)})
	h.failUpdatesFor(t, "b")

	res, err := h.scorer.ScoreUser(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ScoreResult{Scored: 2, Failed: 1}, res)

	assert.InDelta(t, 1.2, h.getTask(t, "a").NeglectScore, 1e-9)
	assert.InDelta(t, 0, h.getTask(t, "b").NeglectScore, 1e-9)
	assert.InDelta(t, 1.2, h.getTask(t, "c").NeglectScore, 1e-9)

	warns := h.logs.FilterMessage("neglect update failed")
	require.Equal(t, 1, warns.Len())
	assert.Equal(t, "b", warns.All()[0].ContextMap()["task_id"])
}
