package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clearfocus/internal/model"
)

// ActivityRepository applies task interactions. Each call runs in a single
// transaction holding the task row, so a done and an undo on the same task
// never interleave.
type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Record appends entry, moves the task to status when non-nil and refreshes
// lastSeenAt to entry.Timestamp. An unknown, foreign or archived task yields
// gorm.ErrRecordNotFound.
func (r *ActivityRepository) Record(ctx context.Context, entry *model.TaskActivity, status *model.TaskStatus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTask(tx, entry.UserID, entry.TaskID); err != nil {
			return err
		}
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create activity: %w", err)
		}
		updates := map[string]interface{}{"last_seen_at": entry.Timestamp}
		if status != nil {
			updates["status"] = *status
		}
		if err := tx.Model(&model.Task{}).Where("id = ?", entry.TaskID).Updates(updates).Error; err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
}

// Undo reopens the task, refreshes lastSeenAt and drops the most recent done
// entry. It reports whether an entry was removed.
func (r *ActivityRepository) Undo(ctx context.Context, userID uint, taskID string, at time.Time) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTask(tx, userID, taskID); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"status":       model.TaskOpen,
			"last_seen_at": at,
		}
		if err := tx.Model(&model.Task{}).Where("id = ?", taskID).Updates(updates).Error; err != nil {
			return fmt.Errorf("reopen task: %w", err)
		}

		var latest model.TaskActivity
		err := tx.Where("task_id = ? AND activity_type = ?", taskID, model.ActivityDone).
			Order("timestamp DESC, id DESC").
			First(&latest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("find done activity: %w", err)
		}
		if err := tx.Delete(&model.TaskActivity{}, "id = ?", latest.ID).Error; err != nil {
			return fmt.Errorf("delete done activity: %w", err)
		}
		removed = true
		return nil
	})
	return removed, err
}

// ListForTask returns the log of one task, oldest first.
func (r *ActivityRepository) ListForTask(ctx context.Context, userID uint, taskID string) ([]model.TaskActivity, error) {
	var entries []model.TaskActivity
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Order("timestamp ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

// CountDone returns how many done entries the user logged on date.
func (r *ActivityRepository) CountDone(ctx context.Context, userID uint, date string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.TaskActivity{}).
		Where("user_id = ? AND date = ? AND activity_type = ?", userID, date, model.ActivityDone).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count done activity: %w", err)
	}
	return n, nil
}

func lockTask(tx *gorm.DB, userID uint, taskID string) error {
	q := tx.Model(&model.Task{}).Select("id").
		Where("user_id = ? AND id = ? AND status <> ?", userID, taskID, model.TaskArchived)
	if isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var task model.Task
	return q.First(&task).Error
}
