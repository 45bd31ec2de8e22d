package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clearfocus/internal/model"
	"clearfocus/internal/service"
)

func focusCmd(configPath *string) *cobra.Command {
	var userID uint
	var refocus bool
	cmd := &cobra.Command{
		Use:   "focus",
		Short: "Print today's focus of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), jobTimeout)
			defer cancel()

			var view *service.FocusView
			if refocus {
				view, err = a.focus.Refocus(ctx, userID)
			} else {
				view, err = a.focus.Today(ctx, userID)
			}
			if err != nil {
				return err
			}
			printf("%s\n", renderFocus(view, a.calendar.Today()))
			return nil
		},
	}
	cmd.Flags().UintVarP(&userID, "user", "u", 0, "user id")
	cmd.Flags().BoolVar(&refocus, "refocus", false, "process dumps, rescore and regenerate first")
	return cmd
}

// renderFocus lays a focus view out as a terminal panel.
func renderFocus(view *service.FocusView, today string) string {
	lines := []string{titleStyle.Render("Today's focus") + "  " + mutedStyle.Render(today)}
	if view == nil {
		lines = append(lines, "", mutedStyle.Render("nothing to focus on yet"))
		return panelStyle.Render(strings.Join(lines, "\n"))
	}
	if view.DailyDirective != "" {
		lines = append(lines, accentStyle.Render(view.DailyDirective))
	}
	lines = append(lines, "")

	n := 0
	for _, task := range view.Top() {
		if task == nil {
			continue
		}
		n++
		lines = append(lines, fmt.Sprintf("%d. %s", n, renderTask(*task, today)))
	}
	if n == 0 {
		lines = append(lines, mutedStyle.Render("every focus task is gone"))
	}
	if view.AvoidedTask != nil {
		lines = append(lines, "", pendingStyle.Render("avoiding: ")+renderTask(*view.AvoidedTask, today))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func renderTask(task model.Task, today string) string {
	switch {
	case task.Status == model.TaskDone:
		return successStyle.Render(boxChecked) + " " + doneStyle.Render(task.CanonicalText)
	case task.ScheduledOn(today):
		return boxUnchecked + " " + task.CanonicalText + " " + accentStyle.Render("(today)")
	default:
		return boxUnchecked + " " + task.CanonicalText
	}
}
