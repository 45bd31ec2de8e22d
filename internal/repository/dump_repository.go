package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"clearfocus/internal/model"
)

// ErrDumpProcessed is returned when another run already consumed the dump.
var ErrDumpProcessed = errors.New("dump already processed")

// DumpRepository stores raw intake text.
type DumpRepository struct {
	db *gorm.DB
}

func NewDumpRepository(db *gorm.DB) *DumpRepository {
	return &DumpRepository{db: db}
}

func (r *DumpRepository) Create(ctx context.Context, dump *model.DumpEntry) error {
	if dump.ID == "" {
		dump.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(dump).Error; err != nil {
		return fmt.Errorf("create dump: %w", err)
	}
	return nil
}

// ListByUser returns the user's dumps, newest first.
func (r *DumpRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]model.DumpEntry, error) {
	var dumps []model.DumpEntry
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&dumps).Error; err != nil {
		return nil, fmt.Errorf("list dumps: %w", err)
	}
	return dumps, nil
}

// ListUnprocessed returns pending dumps, oldest first.
func (r *DumpRepository) ListUnprocessed(ctx context.Context, userID uint) ([]model.DumpEntry, error) {
	var dumps []model.DumpEntry
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND processed = ?", userID, false).
		Order("created_at ASC").
		Find(&dumps).Error; err != nil {
		return nil, fmt.Errorf("list unprocessed dumps: %w", err)
	}
	return dumps, nil
}

// Complete stores the tasks extracted from a dump and flags the dump as
// processed in one transaction. If the dump was already processed nothing is
// written and ErrDumpProcessed is returned.
func (r *DumpRepository) Complete(ctx context.Context, dumpID string, tasks []model.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.DumpEntry{}).
			Where("id = ? AND processed = ?", dumpID, false).
			Update("processed", true)
		if res.Error != nil {
			return fmt.Errorf("mark dump processed: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDumpProcessed
		}
		if len(tasks) == 0 {
			return nil
		}
		for i := range tasks {
			if tasks[i].ID == "" {
				tasks[i].ID = uuid.NewString()
			}
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return fmt.Errorf("create tasks: %w", err)
		}
		return nil
	})
}
