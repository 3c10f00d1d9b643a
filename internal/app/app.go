// Package app wires repositories, collaborators and services from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/unclebandit/directmail-scheduler/internal/config"
	"github.com/unclebandit/directmail-scheduler/internal/db"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/queue"
	"github.com/unclebandit/directmail-scheduler/internal/render"
	"github.com/unclebandit/directmail-scheduler/internal/repository"
	"github.com/unclebandit/directmail-scheduler/internal/service"
	"github.com/unclebandit/directmail-scheduler/internal/source"
)

// App holds the wired services shared by the server and the scheduler.
type App struct {
	DB  *sql.DB
	Log *logger.Logger

	CampaignRepo *repository.CampaignRepository
	LeadRepo     *repository.LeadRepository
	HistoryRepo  *repository.PrintHistoryRepository

	Campaigns   *service.CampaignService
	Ingestion   *service.IngestionService
	Progression *service.ProgressionService
	Forecast    *service.ForecastService
	Worker      *service.Worker

	closers []func() error
}

// New connects to the database and builds every service. Optional
// collaborators (Gotenberg, MinIO, AMQP) are only wired when configured.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Log: log}

	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		a.DB = conn
		return nil
	}); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.DB.Close)

	a.CampaignRepo = &repository.CampaignRepository{DB: a.DB}
	a.LeadRepo = &repository.LeadRepository{DB: a.DB, Log: log}
	a.HistoryRepo = &repository.PrintHistoryRepository{DB: a.DB}
	ledger := service.NewLedger(a.HistoryRepo)

	catalog, err := render.LoadCatalog(cfg.TemplateCatalog)
	if err != nil {
		a.Close()
		return nil, err
	}

	printer, err := a.printer(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Progression = &service.ProgressionService{
		CampaignRepo: a.CampaignRepo,
		LeadRepo:     a.LeadRepo,
		Ledger:       ledger,
		Templates:    catalog,
		Renderer:     render.HTMLRenderer{},
		Converter:    converter(cfg, log),
		Printer:      printer,
		Log:          log,
	}
	if cfg.MinIO.Enabled() {
		archiver, err := render.NewMinIOArchiver(ctx, cfg.MinIO)
		if err != nil {
			log.Warn("artifact archive disabled", slog.String("error", err.Error()))
		} else {
			a.Progression.Archiver = archiver
		}
	}

	a.Ingestion = service.NewIngestionService(cfg.Source, a.LeadRepo, log)
	a.Campaigns = &service.CampaignService{CampaignRepo: a.CampaignRepo, LeadRepo: a.LeadRepo}
	a.Forecast = &service.ForecastService{
		CampaignRepo: a.CampaignRepo,
		LeadRepo:     a.LeadRepo,
		Ledger:       ledger,
		Log:          log,
	}
	if cfg.Source.APIKey != "" {
		a.Forecast.Counter = source.NewRadarClient(cfg.Source)
	}

	a.Worker = service.NewWorker(a.CampaignRepo, a.Ingestion, a.Progression, log, cfg.Scheduler.Concurrency)
	a.Worker.Locks = &repository.AdvisoryLocker{DB: a.DB}
	return a, nil
}

// printer picks the AMQP print station when configured and a local lp spooler otherwise.
func (a *App) printer(cfg *config.Config) (queue.Dispatcher, error) {
	if cfg.Printer.AMQPURL != "" {
		d, err := queue.NewAMQPDispatcher(cfg.Printer.AMQPURL, cfg.Printer.Queue)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, d.Close)
		a.Log.Info("print jobs routed to AMQP", slog.String("queue", cfg.Printer.Queue))
		return d, nil
	}

	q := queue.NewInMemoryQueue(a.Log)
	if err := queue.StartPrintSubscriber(q, queue.LPSpooler{}, a.Log); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { q.Wait(); return nil })
	return &queue.QueueDispatcher{Queue: q, Topic: queue.PrintTopic}, nil
}

func converter(cfg *config.Config, log *logger.Logger) service.Converter {
	if cfg.Gotenberg.Enabled() {
		return render.NewGotenbergConverter(cfg.Gotenberg.URL, cfg.Gotenberg.Username, cfg.Gotenberg.Password)
	}
	log.Warn("GOTENBERG_URL not set, rendered documents are printed without conversion")
	return render.Passthrough{}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// WithRetry runs fn up to attempts times with a quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", slog.String("operation", name), slog.Int("attempt", attempt), slog.String("error", err.Error()))
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
