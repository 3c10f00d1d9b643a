package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/unclebandit/directmail-scheduler/internal/app"
	"github.com/unclebandit/directmail-scheduler/internal/config"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", slog.String("env", cfg.Env), slog.String("tick", cfg.Scheduler.Tick))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{log}),
		cron.SkipIfStillRunning(cronLogger{log}),
	))
	if _, err := c.AddFunc(cfg.Scheduler.Tick, func() { runCycle(ctx, a.Worker, log) }); err != nil {
		log.Error("invalid scheduler tick", slog.String("tick", cfg.Scheduler.Tick), slog.String("error", err.Error()))
		os.Exit(1)
	}
	c.Start()

	<-ctx.Done()
	log.Info("shutting down, waiting for running cycle")
	<-c.Stop().Done()
}

func runCycle(ctx context.Context, w *service.Worker, log *logger.Logger) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	runs, err := w.RunCycle(ctx)
	if err != nil {
		log.Error("cycle failed", slog.String("error", err.Error()))
		return
	}
	if len(runs) > 0 {
		log.Info("cycle finished", slog.Int("campaigns", len(runs)), slog.Duration("took", time.Since(start)))
	}
}

// cronLogger routes cron's own messages through the structured logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
