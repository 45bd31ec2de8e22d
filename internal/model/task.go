package model

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskOpen     TaskStatus = "open"
	TaskDone     TaskStatus = "done"
	TaskArchived TaskStatus = "archived"
)

// DateLayout is the calendar date format used for focus dates, activity
// dates and scheduled dates.
const DateLayout = "2006-01-02"

// Task is a single actionable item extracted from a dump.
type Task struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	UserID        uint       `gorm:"index;not null" json:"userId"`
	CanonicalText string     `gorm:"not null" json:"canonicalText"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastSeenAt    time.Time  `json:"lastSeenAt"`
	RepeatCount   int        `gorm:"default:1" json:"repeatCount"`
	PressureScore float64    `gorm:"default:0" json:"pressureScore"`
	LeverageScore float64    `gorm:"default:0" json:"leverageScore"`
	NeglectScore  float64    `gorm:"default:0" json:"neglectScore"`
	ScheduledDate *string    `gorm:"size:10;index" json:"scheduledDate"`
	Status        TaskStatus `gorm:"size:16;index;default:open" json:"status"`
}

// IsArchived reports whether the task left the system for good.
func (t Task) IsArchived() bool {
	return t.Status == TaskArchived
}

// ScheduledOn reports whether the task is pinned to the given date.
func (t Task) ScheduledOn(date string) bool {
	return t.ScheduledDate != nil && *t.ScheduledDate == date
}
