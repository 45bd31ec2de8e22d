package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"clearfocus/internal/model"
)

const highPressure = 0.7

// DigestService builds human-readable focus summaries for chat delivery.
type DigestService struct {
	focus    *FocusService
	calendar *Calendar
}

func NewDigestService(focus *FocusService, calendar *Calendar) *DigestService {
	return &DigestService{focus: focus, calendar: calendar}
}

// DailySummary renders today's focus of the user, generating it if needed.
func (s *DigestService) DailySummary(ctx context.Context, user model.User) (string, error) {
	view, err := s.focus.Today(ctx, user.ID)
	if err != nil {
		return "", err
	}
	return FormatFocus(view, s.calendar.Today()), nil
}

// FormatFocus renders a focus view as Telegram HTML.
func FormatFocus(view *FocusView, today string) string {
	var builder strings.Builder
	builder.WriteString("🎯 <b>Today's focus</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", today))

	if view == nil {
		builder.WriteString("— nothing to focus on yet, send me what's on your mind\n")
		return strings.TrimSpace(builder.String())
	}

	if view.DailyDirective != "" {
		builder.WriteString(fmt.Sprintf("<i>%s</i>\n\n", html.EscapeString(view.DailyDirective)))
	}

	shown := 0
	for _, task := range view.Top() {
		if task == nil {
			continue
		}
		shown++
		builder.WriteString(fmt.Sprintf("%d. %s\n", shown, formatFocusTask(*task, today)))
	}
	if shown == 0 {
		builder.WriteString("— every focus task is gone\n")
	}

	if view.AvoidedTask != nil {
		builder.WriteString("\n🙈 <b>You keep avoiding</b>\n")
		builder.WriteString(formatFocusTask(*view.AvoidedTask, today))
		builder.WriteByte('\n')
	}

	return strings.TrimSpace(builder.String())
}

// FormatTaskList renders tasks in the given order.
func FormatTaskList(tasks []model.Task, today string) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Open tasks</b>\n")
	if len(tasks) == 0 {
		builder.WriteString("— no open tasks\n")
		return strings.TrimSpace(builder.String())
	}
	for _, task := range tasks {
		builder.WriteString(formatFocusTask(task, today))
		builder.WriteByte('\n')
	}
	return strings.TrimSpace(builder.String())
}

func formatFocusTask(task model.Task, today string) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.Status == model.TaskDone:
		icon = "✅"
	case task.ScheduledOn(today):
		icon = "📌"
	case task.PressureScore >= highPressure:
		icon = "🔥"
	}

	title := html.EscapeString(strings.TrimSpace(task.CanonicalText))
	if task.Status == model.TaskDone {
		title = "<s>" + title + "</s>"
	}
	sb.WriteString(fmt.Sprintf("%s %s", icon, title))

	if task.ScheduledDate != nil && !task.ScheduledOn(today) {
		if *task.ScheduledDate < today {
			sb.WriteString(fmt.Sprintf("\n   ⏰ since %s", *task.ScheduledDate))
		} else {
			sb.WriteString(fmt.Sprintf("\n   ⏰ on %s", *task.ScheduledDate))
		}
	}
	return sb.String()
}
