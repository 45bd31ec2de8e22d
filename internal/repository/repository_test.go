package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clearfocus/internal/config"
	"clearfocus/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDB(config.DatabaseConfig{
		Driver: "sqlite",
		URL:    filepath.Join(t.TempDir(), "nested", "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func strPtr(s string) *string { return &s }

func seedTask(t *testing.T, repo *TaskRepository, userID uint, id string, mutate func(*model.Task)) model.Task {
	t.Helper()
	now := time.Now().UTC()
	task := model.Task{
		ID:            id,
		UserID:        userID,
		CanonicalText: "task " + id,
		CreatedAt:     now,
		LastSeenAt:    now,
		RepeatCount:   1,
		Status:        model.TaskOpen,
	}
	if mutate != nil {
		mutate(&task)
	}
	require.NoError(t, repo.Create(context.Background(), &task))
	return task
}

func TestTaskRepository_ListEligible(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	seedTask(t, repo, 1, "unscheduled", nil)
	seedTask(t, repo, 1, "past", func(tk *model.Task) { tk.ScheduledDate = strPtr("2024-05-01") })
	seedTask(t, repo, 1, "today", func(tk *model.Task) { tk.ScheduledDate = strPtr("2024-05-10") })
	seedTask(t, repo, 1, "future", func(tk *model.Task) { tk.ScheduledDate = strPtr("2024-05-11") })
	seedTask(t, repo, 1, "done", func(tk *model.Task) { tk.Status = model.TaskDone })
	seedTask(t, repo, 1, "archived", func(tk *model.Task) { tk.Status = model.TaskArchived })
	seedTask(t, repo, 2, "other-user", nil)

	tasks, err := repo.ListEligible(ctx, 1, "2024-05-10")
	require.NoError(t, err)

	var ids []string
	for _, tk := range tasks {
		ids = append(ids, tk.ID)
	}
	assert.ElementsMatch(t, []string{"unscheduled", "past", "today"}, ids)
}

func TestTaskRepository_ArchiveAndEdit(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	seedTask(t, repo, 1, "a", nil)

	require.ErrorIs(t, repo.UpdateText(ctx, 2, "a", "stolen"), gorm.ErrRecordNotFound)
	require.NoError(t, repo.UpdateText(ctx, 1, "a", "renamed"))

	got, err := repo.FindActive(ctx, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.CanonicalText)

	require.NoError(t, repo.Archive(ctx, 1, "a"))
	assert.ErrorIs(t, repo.Archive(ctx, 1, "a"), gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.UpdateText(ctx, 1, "a", "again"), gorm.ErrRecordNotFound)

	_, err = repo.FindActive(ctx, 1, "a")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	found, err := repo.FindActiveByIDs(ctx, 1, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestTaskRepository_UpdateNeglectScopedToOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	seedTask(t, repo, 1, "a", func(task *model.Task) { task.NeglectScore = 0.5 })

	require.ErrorIs(t, repo.UpdateNeglect(ctx, 2, "a", 9), gorm.ErrRecordNotFound)
	got, err := repo.FindActive(ctx, 1, "a")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.NeglectScore, 1e-9)

	require.ErrorIs(t, repo.UpdateNeglect(ctx, 1, "missing", 9), gorm.ErrRecordNotFound)

	require.NoError(t, repo.UpdateNeglect(ctx, 1, "a", 1.25))
	got, err = repo.FindActive(ctx, 1, "a")
	require.NoError(t, err)
	assert.InDelta(t, 1.25, got.NeglectScore, 1e-9)
}

func TestFocusRepository_InsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewFocusRepository(newTestDB(t))

	first := &model.DailyFocus{UserID: 1, Date: "2024-05-10", DailyDirective: "one"}
	first.SetSlots([]string{"a", "b"})
	created, err := repo.Insert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &model.DailyFocus{UserID: 1, Date: "2024-05-10", DailyDirective: "two"}
	second.SetSlots([]string{"c"})
	created, err = repo.Insert(ctx, second)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := repo.Find(ctx, 1, "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, "one", stored.DailyDirective)
	assert.Equal(t, "a", *stored.TopTask1)
	assert.Equal(t, "b", *stored.TopTask2)
	assert.Nil(t, stored.TopTask3)

	other := &model.DailyFocus{UserID: 2, Date: "2024-05-10"}
	created, err = repo.Insert(ctx, other)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestFocusRepository_Replace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewFocusRepository(db)

	old := &model.DailyFocus{UserID: 1, Date: "2024-05-10", AvoidedTask: strPtr("x")}
	old.SetSlots([]string{"a", "b", "c"})
	_, err := repo.Insert(ctx, old)
	require.NoError(t, err)

	fresh := &model.DailyFocus{UserID: 1, Date: "2024-05-10", DailyDirective: "fresh"}
	fresh.SetSlots([]string{"d"})
	require.NoError(t, repo.Replace(ctx, fresh))

	stored, err := repo.Find(ctx, 1, "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, "d", *stored.TopTask1)
	assert.Nil(t, stored.TopTask2)
	assert.Nil(t, stored.AvoidedTask)
	assert.Equal(t, "fresh", stored.DailyDirective)

	var count int64
	require.NoError(t, db.Model(&model.DailyFocus{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestActivityRepository_RecordAndUndo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := NewTaskRepository(db)
	repo := NewActivityRepository(db)
	seedTask(t, tasks, 1, "a", nil)

	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	done := model.TaskDone
	for i := 0; i < 2; i++ {
		entry := &model.TaskActivity{
			TaskID:       "a",
			UserID:       1,
			Date:         "2024-05-10",
			ActivityType: model.ActivityDone,
			Timestamp:    base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, repo.Record(ctx, entry, &done))
	}
	touch := &model.TaskActivity{TaskID: "a", UserID: 1, Date: "2024-05-10", ActivityType: model.ActivityTouched, Timestamp: base.Add(3 * time.Hour)}
	require.NoError(t, repo.Record(ctx, touch, nil))

	task, err := tasks.FindActive(ctx, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, model.TaskDone, task.Status)
	assert.WithinDuration(t, base.Add(3*time.Hour), task.LastSeenAt, time.Second)

	removed, err := repo.Undo(ctx, 1, "a", base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.True(t, removed)

	entries, err := repo.ListForTask(ctx, 1, "a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActivityDone, entries[0].ActivityType)
	assert.WithinDuration(t, base, entries[0].Timestamp, time.Second)
	assert.Equal(t, model.ActivityTouched, entries[1].ActivityType)

	task, err = tasks.FindActive(ctx, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, model.TaskOpen, task.Status)
	assert.WithinDuration(t, base.Add(4*time.Hour), task.LastSeenAt, time.Second)

	n, err := repo.CountDone(ctx, 1, "2024-05-10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestActivityRepository_UndoWithoutDone(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := NewTaskRepository(db)
	repo := NewActivityRepository(db)
	seedTask(t, tasks, 1, "a", func(tk *model.Task) { tk.Status = model.TaskDone })

	removed, err := repo.Undo(ctx, 1, "a", time.Now())
	require.NoError(t, err)
	assert.False(t, removed)

	task, err := tasks.FindActive(ctx, 1, "a")
	require.NoError(t, err)
	assert.Equal(t, model.TaskOpen, task.Status)
}

func TestActivityRepository_RejectsForeignAndArchived(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	tasks := NewTaskRepository(db)
	repo := NewActivityRepository(db)
	seedTask(t, tasks, 1, "mine", nil)
	seedTask(t, tasks, 1, "gone", func(tk *model.Task) { tk.Status = model.TaskArchived })

	entry := &model.TaskActivity{TaskID: "mine", UserID: 2, Date: "2024-05-10", ActivityType: model.ActivityTouched, Timestamp: time.Now()}
	assert.ErrorIs(t, repo.Record(ctx, entry, nil), gorm.ErrRecordNotFound)

	_, err := repo.Undo(ctx, 1, "gone", time.Now())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	entries, err := repo.ListForTask(ctx, 2, "mine")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDumpRepository_Complete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	dumps := NewDumpRepository(db)
	tasks := NewTaskRepository(db)

	dump := &model.DumpEntry{UserID: 1, Content: "call mom"}
	require.NoError(t, dumps.Create(ctx, dump))

	pending, err := dumps.ListUnprocessed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	now := time.Now()
	err = dumps.Complete(ctx, dump.ID, []model.Task{{
		UserID: 1, CanonicalText: "Call mom", CreatedAt: now, LastSeenAt: now, RepeatCount: 1, Status: model.TaskOpen,
	}})
	require.NoError(t, err)

	err = dumps.Complete(ctx, dump.ID, []model.Task{{UserID: 1, CanonicalText: "dup", Status: model.TaskOpen}})
	assert.True(t, errors.Is(err, ErrDumpProcessed))

	open, err := tasks.ListOpen(ctx, 1)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Call mom", open[0].CanonicalText)

	pending, err = dumps.ListUnprocessed(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSettingsRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewSettingsRepository(newTestDB(t))

	_, ok, err := repo.Get(ctx, 1, "daily_focus_count")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Upsert(ctx, 1, "daily_focus_count", "2"))
	require.NoError(t, repo.Upsert(ctx, 1, "daily_focus_count", "4"))
	require.NoError(t, repo.Upsert(ctx, 2, "daily_focus_count", "1"))

	value, ok, err := repo.Get(ctx, 1, "daily_focus_count")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "4", value)

	all, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, 1, "daily_focus_count"))
	_, ok, err = repo.Get(ctx, 1, "daily_focus_count")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	first, err := repo.UpsertFromTelegram(ctx, 42, "Ann", "ann")
	require.NoError(t, err)
	again, err := repo.UpsertFromTelegram(ctx, 42, "Anna", "ann")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "Anna", again.FirstName)

	web, err := repo.CreateWithEmail(ctx, "a@example.com", "hash")
	require.NoError(t, err)
	_, err = repo.CreateWithEmail(ctx, "a@example.com", "hash")
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	found, err := repo.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, web.ID, found.ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	linked, err := repo.ListTelegramLinked(ctx)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, first.ID, linked[0].ID)
}
