package service

import (
	"time"

	"clearfocus/internal/model"
)

// Calendar decides which calendar day "today" is for the whole process.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{loc: loc, now: time.Now}
}

// NewCalendarWithClock reads the current instant from now instead of the wall clock.
func NewCalendarWithClock(loc *time.Location, now func() time.Time) *Calendar {
	c := NewCalendar(loc)
	c.now = now
	return c
}

// NewFixedCalendar returns a calendar frozen at now.
func NewFixedCalendar(loc *time.Location, now time.Time) *Calendar {
	return NewCalendarWithClock(loc, func() time.Time { return now })
}

func (c *Calendar) Now() time.Time {
	return c.now()
}

// Today formats the current date as YYYY-MM-DD in the calendar's location.
func (c *Calendar) Today() string {
	return c.now().In(c.loc).Format(model.DateLayout)
}

func (c *Calendar) Location() *time.Location {
	return c.loc
}
