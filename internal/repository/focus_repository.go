package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clearfocus/internal/model"
)

var focusKey = []clause.Column{{Name: "user_id"}, {Name: "date"}}

// FocusRepository persists one DailyFocus per (user, date). The composite
// unique index idx_focus_user_date enforces that at the storage level.
type FocusRepository struct {
	db *gorm.DB
}

func NewFocusRepository(db *gorm.DB) *FocusRepository {
	return &FocusRepository{db: db}
}

// Find returns the focus of the user for the date or gorm.ErrRecordNotFound.
func (r *FocusRepository) Find(ctx context.Context, userID uint, date string) (*model.DailyFocus, error) {
	var focus model.DailyFocus
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&focus).Error; err != nil {
		return nil, err
	}
	return &focus, nil
}

// Insert creates the record unless one already exists for (user, date). The
// losing writer of a race gets created=false and no error.
func (r *FocusRepository) Insert(ctx context.Context, focus *model.DailyFocus) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: focusKey, DoNothing: true}).
		Create(focus)
	if res.Error != nil {
		return false, fmt.Errorf("insert daily focus: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes the record for (user, date) if there is one.
func (r *FocusRepository) Delete(ctx context.Context, userID uint, date string) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		Delete(&model.DailyFocus{}).Error; err != nil {
		return fmt.Errorf("delete daily focus: %w", err)
	}
	return nil
}

// Replace deletes the record for (user, date), if any, and writes focus in
// its place. A concurrent forced writer that slipped in between is overwritten.
func (r *FocusRepository) Replace(ctx context.Context, focus *model.DailyFocus) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND date = ?", focus.UserID, focus.Date).
			Delete(&model.DailyFocus{}).Error; err != nil {
			return fmt.Errorf("delete daily focus: %w", err)
		}
		focus.ID = 0
		if err := tx.Clauses(clause.OnConflict{Columns: focusKey, UpdateAll: true}).
			Create(focus).Error; err != nil {
			return fmt.Errorf("insert daily focus: %w", err)
		}
		return nil
	})
}
