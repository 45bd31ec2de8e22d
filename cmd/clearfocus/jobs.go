package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"clearfocus/internal/service"
)

func processCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Turn pending dumps of every user into tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), *configPath, "process", func(ctx context.Context, a *app) (service.BatchResult, error) {
				return a.jobs.RunIntake(ctx)
			})
		},
	}
}

func scoreCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Recompute neglect scores of every open task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), *configPath, "score", func(ctx context.Context, a *app) (service.BatchResult, error) {
				return a.jobs.RunScoring(ctx)
			})
		},
	}
}

func decideCmd(configPath *string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Generate today's focus for every user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd.Context(), *configPath, "decide", func(ctx context.Context, a *app) (service.BatchResult, error) {
				return a.jobs.RunDecide(ctx, force)
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace focus that already exists for today")
	return cmd
}

func runJob(ctx context.Context, configPath, name string, job func(context.Context, *app) (service.BatchResult, error)) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	res, err := job(ctx, a)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if res.Failed > 0 {
		fail(fmt.Sprintf("%s: %d of %d users failed, see logs", name, res.Failed, res.Users))
		return nil
	}
	ok(fmt.Sprintf("%s: %d users", name, res.Users))
	return nil
}
