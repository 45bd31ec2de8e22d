package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clearfocus/internal/auth"
	"clearfocus/internal/bot"
	"clearfocus/internal/httpapi"
	"clearfocus/internal/service"
)

const (
	jobTimeout      = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the scheduler and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	tokens, err := auth.NewTokens(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(a.cfg.Server, httpapi.Services{
		Auth:     service.NewAuthService(a.users, tokens, a.log),
		Intake:   a.intake,
		Focus:    a.focus,
		Tasks:    a.tasks,
		Activity: a.activity,
		Settings: a.settings,
	}, tokens, a.metrics, a.log)
	if err != nil {
		return err
	}

	var telegramBot *bot.Bot
	if a.cfg.Telegram.Token != "" {
		telegramBot, err = bot.New(a.cfg.Telegram.Token, bot.Deps{
			Users:    a.users,
			Intake:   a.intake,
			Focus:    a.focus,
			Tasks:    a.tasks,
			Activity: a.activity,
			Digest:   a.digest,
			Calendar: a.calendar,
		}, a.log)
		if err != nil {
			return err
		}
	} else {
		a.log.Info("telegram token not set, bot disabled")
	}

	if a.cfg.Scheduler.Enabled {
		scheduler, err := a.schedule(telegramBot)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if telegramBot != nil {
		g.Go(func() error {
			return telegramBot.Start(gctx)
		})
	}

	a.log.Info("clearfocus started", zap.String("addr", server.Addr()))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.log.Info("shutdown complete")
	return nil
}

// schedule registers the intake/scoring interval and the daily cycle.
func (a *app) schedule(telegramBot *bot.Bot) (*service.SchedulerService, error) {
	scheduler := service.NewSchedulerService(a.calendar.Location(), a.log)

	if _, err := scheduler.ScheduleInterval(a.cfg.Scheduler.IntakeInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if _, err := a.jobs.RunIntakeAndScoring(ctx); err != nil {
			a.log.Error("intake and scoring", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}

	if _, err := scheduler.ScheduleDaily(a.cfg.Scheduler.DailyTime, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if _, err := a.jobs.RunDailyCycle(ctx); err != nil {
			a.log.Error("daily cycle", zap.Error(err))
		}
		if telegramBot == nil || !a.cfg.Telegram.Digest {
			return
		}
		if err := telegramBot.SendDailyFocus(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("daily digest", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	return scheduler, nil
}
