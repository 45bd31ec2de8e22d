package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearfocus/internal/metrics"
	"clearfocus/internal/model"
)

const today = "2024-05-10"

func task(id string, pressure, leverage, neglect float64) model.Task {
	return model.Task{ID: id, PressureScore: pressure, LeverageScore: leverage, NeglectScore: neglect, Status: model.TaskOpen}
}

func TestPriority(t *testing.T) {
	a := task("a", 0.2, 0.1, 0.3)
	b := task("b", 0.9, 0.8, 0.1)
	assert.InDelta(t, 0.19, Priority(a, today), 1e-9)
	assert.InDelta(t, 0.665, Priority(b, today), 1e-9)

	c := task("c", 0.1, 0.1, 0)
	date := today
	c.ScheduledDate = &date
	assert.InDelta(t, 1.075, Priority(c, today), 1e-9)

	other := "2024-05-09"
	c.ScheduledDate = &other
	assert.InDelta(t, 0.075, Priority(c, today), 1e-9)
}

func TestPriority_NeglectNeverLowers(t *testing.T) {
	base := task("x", 0.4, 0.6, 0)
	prev := Priority(base, today)
	for _, n := range []float64{0.01, 0.5, 1, 3, 10, 100} {
		base.NeglectScore = n
		p := Priority(base, today)
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
}

func TestSelect(t *testing.T) {
	t.Run("higher priority wins and rest becomes avoided", func(t *testing.T) {
		sel := Select([]model.Task{task("a", 0.2, 0.1, 0.3), task("b", 0.9, 0.8, 0.1)}, today, 1)
		require.Len(t, sel.Top, 1)
		assert.Equal(t, "b", sel.Top[0].ID)
		require.NotNil(t, sel.Avoided)
		assert.Equal(t, "a", sel.Avoided.ID)
	})

	t.Run("avoided picks neglect not priority", func(t *testing.T) {
		sel := Select([]model.Task{
			task("t1", 1, 1, 0),
			task("t2", 0.8, 0.8, 0.1),
			task("t3", 0, 0, 0.4),
		}, today, 1)
		assert.Equal(t, "t1", sel.Top[0].ID)
		assert.Equal(t, "t3", sel.Avoided.ID)
	})

	t.Run("scheduled today outranks everything", func(t *testing.T) {
		pinned := task("pinned", 0.1, 0.1, 0)
		date := today
		pinned.ScheduledDate = &date
		sel := Select([]model.Task{task("big", 1, 1, 1), pinned}, today, 1)
		assert.Equal(t, "pinned", sel.Top[0].ID)
		assert.Equal(t, "big", sel.Avoided.ID)
	})

	t.Run("ties break on id", func(t *testing.T) {
		sel := Select([]model.Task{task("c", 0.5, 0.5, 0.5), task("a", 0.5, 0.5, 0.5), task("b", 0.5, 0.5, 0.5)}, today, 2)
		assert.Equal(t, "a", sel.Top[0].ID)
		assert.Equal(t, "b", sel.Top[1].ID)
		assert.Equal(t, "c", sel.Avoided.ID)
	})

	t.Run("fewer tasks than slots", func(t *testing.T) {
		sel := Select([]model.Task{task("a", 0.1, 0.1, 0)}, today, 5)
		assert.Len(t, sel.Top, 1)
		assert.Nil(t, sel.Avoided)
	})

	t.Run("avoided never in top", func(t *testing.T) {
		candidates := []model.Task{
			task("a", 0.1, 0.9, 2), task("b", 0.7, 0.2, 0.4), task("c", 0.3, 0.3, 5),
			task("d", 0.9, 0.9, 0), task("e", 0, 0, 0), task("f", 0.6, 0.1, 1),
		}
		for n := 1; n <= 5; n++ {
			sel := Select(candidates, today, n)
			require.Len(t, sel.Top, n)
			require.NotNil(t, sel.Avoided)
			for _, top := range sel.Top {
				assert.NotEqual(t, top.ID, sel.Avoided.ID)
			}
		}
	})

	t.Run("input is not reordered", func(t *testing.T) {
		in := []model.Task{task("a", 0, 0, 0), task("b", 1, 1, 1)}
		Select(in, today, 1)
		assert.Equal(t, "a", in[0].ID)
	})
}

func TestDecide_CreatesFocusAndMarksSeen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.addTask(t, 1, "a", taskOpts{pressure: 0.2, leverage: 0.1, neglect: 0.3, seenAgo: days(5)})
	h.addTask(t, 1, "b", taskOpts{pressure: 0.9, leverage: 0.8, neglect: 0.1, seenAgo: days(5)})
	h.addTask(t, 1, "c", taskOpts{pressure: 0.1, leverage: 0.1, seenAgo: days(5)})
	h.addTask(t, 1, "future", taskOpts{pressure: 1, leverage: 1, neglect: 9, scheduled: "2024-05-11", seenAgo: days(5)})
	require.NoError(t, h.settings.Set(ctx, 1, KeyFocusCount, "1"))
	require.NoError(t, h.settings.Set(ctx, 1, KeyDirective, "One thing."))

	res, err := h.decider.Decide(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeCreated, res.Outcome)

	stored, err := h.focusRepo.Find(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, "b", *stored.TopTask1)
	assert.Nil(t, stored.TopTask2)
	assert.Equal(t, "a", *stored.AvoidedTask)
	assert.Equal(t, "One thing.", stored.DailyDirective)
	assert.False(t, stored.Accepted)
	assert.False(t, stored.OverrideUsed)

	assert.WithinDuration(t, h.now, h.getTask(t, "b").LastSeenAt, time.Second)
	assert.WithinDuration(t, h.now, h.getTask(t, "a").LastSeenAt, time.Second)
	assert.WithinDuration(t, h.now.Add(-days(5)), h.getTask(t, "c").LastSeenAt, time.Second)
	assert.WithinDuration(t, h.now.Add(-days(5)), h.getTask(t, "future").LastSeenAt, time.Second)
}

func TestDecide_IdempotentWithoutForce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addTask(t, 1, "a", taskOpts{pressure: 0.5})
	h.addTask(t, 1, "b", taskOpts{pressure: 0.2})

	_, err := h.decider.Decide(ctx, 1, false)
	require.NoError(t, err)
	first, err := h.focusRepo.Find(ctx, 1, today)
	require.NoError(t, err)

	h.addTask(t, 1, "urgent", taskOpts{pressure: 1, leverage: 1, neglect: 5})

	res, err := h.decider.Decide(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeExists, res.Outcome)

	second, err := h.focusRepo.Find(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecide_ForceReplaces(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addTask(t, 1, "a", taskOpts{pressure: 0.5})
	h.addTask(t, 1, "b", taskOpts{pressure: 0.2})

	_, err := h.decider.Decide(ctx, 1, false)
	require.NoError(t, err)

	h.addTask(t, 1, "urgent", taskOpts{pressure: 1, leverage: 1, neglect: 5})
	require.NoError(t, h.db.Model(&model.Task{}).Where("id = ?", "a").Update("status", model.TaskDone).Error)

	res, err := h.decider.Decide(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeReplaced, res.Outcome)

	stored, err := h.focusRepo.Find(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, "urgent", *stored.TopTask1)
	assert.Equal(t, "b", *stored.TopTask2)
	assert.Nil(t, stored.TopTask3)
	assert.Nil(t, stored.AvoidedTask)
	assert.Equal(t, int64(1), h.focusCount(t, 1))
}

func TestDecide_NoEligibleTasks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addTask(t, 1, "later", taskOpts{pressure: 1, scheduled: "2024-06-01"})
	h.addTask(t, 1, "gone", taskOpts{pressure: 1, status: model.TaskArchived})
	h.addTask(t, 1, "finished", taskOpts{pressure: 1, status: model.TaskDone})

	res, err := h.decider.Decide(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeEmpty, res.Outcome)
	assert.Nil(t, res.Focus)
	assert.Equal(t, int64(0), h.focusCount(t, 1))
}

func TestDecide_ForceWithNoTasksClearsToday(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addTask(t, 1, "a", taskOpts{pressure: 0.5})

	_, err := h.decider.Decide(ctx, 1, false)
	require.NoError(t, err)
	require.NoError(t, h.taskSvc.Archive(ctx, 1, "a"))

	res, err := h.decider.Decide(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeEmpty, res.Outcome)
	assert.Equal(t, int64(0), h.focusCount(t, 1))
}

func TestDecide_ConcurrentCallsKeepOneRow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addTask(t, 1, "a", taskOpts{pressure: 0.5})
	h.addTask(t, 1, "b", taskOpts{pressure: 0.4})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.decider.Decide(ctx, 1, false)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), h.focusCount(t, 1))
}

func TestDecide_UsersAreIsolated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addTask(t, 1, "mine", taskOpts{pressure: 0.1})
	h.addTask(t, 2, "theirs", taskOpts{pressure: 1, leverage: 1})

	_, err := h.decider.Decide(ctx, 1, false)
	require.NoError(t, err)

	stored, err := h.focusRepo.Find(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, stored.ReferencedIDs())
}
