package model

import "time"

// ActivityType is the kind of interaction stored in the activity log.
type ActivityType string

const (
	ActivityTouched ActivityType = "touched"
	ActivityDone    ActivityType = "done"
)

// TaskActivity is an append-only log entry. Date is the calendar day of the
// interaction, Timestamp the exact instant.
type TaskActivity struct {
	ID           string       `gorm:"primaryKey;size:36" json:"id"`
	TaskID       string       `gorm:"size:36;index:idx_activity_task_time;not null" json:"taskId"`
	UserID       uint         `gorm:"index;not null" json:"userId"`
	Date         string       `gorm:"size:10;not null" json:"date"`
	ActivityType ActivityType `gorm:"size:16;not null" json:"activityType"`
	Timestamp    time.Time    `gorm:"index:idx_activity_task_time" json:"timestamp"`
}
