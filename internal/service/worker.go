package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/repository"
)

// Ingester refreshes a campaign's lead pool.
type Ingester interface {
	IngestCampaign(ctx context.Context, c *model.Campaign) int
}

// Advancer executes a campaign's due stages.
type Advancer interface {
	AdvanceCampaign(ctx context.Context, c *model.Campaign, now time.Time) []StageOutcome
}

// CampaignRun is the result of one campaign's cycle.
type CampaignRun struct {
	CampaignID int            `json:"campaign_id"`
	Fetched    int            `json:"fetched"`
	Stages     []StageOutcome `json:"stages"`
	Error      string         `json:"error,omitempty"`
}

// Worker runs scheduling cycles over all campaigns.
type Worker struct {
	CampaignRepo repository.CampaignRepositoryInterface
	Ingestion    Ingester
	Progression  Advancer
	Log          *logger.Logger
	Now          func() time.Time

	// Locks keeps a campaign to one cycle at a time, scheduled or manual.
	Locks CampaignLocker

	// Concurrency bounds how many campaigns run at once. Each campaign is
	// handled by exactly one goroutine per cycle.
	Concurrency int
}

// Constructor
func NewWorker(campaigns repository.CampaignRepositoryInterface, ingestion Ingester, progression Advancer, log *logger.Logger, concurrency int) *Worker {
	return &Worker{
		CampaignRepo: campaigns,
		Ingestion:    ingestion,
		Progression:  progression,
		Log:          log,
		Now:          time.Now,
		Locks:        NewLocalLocker(),
		Concurrency:  concurrency,
	}
}

// RunCycle processes every campaign that should run today and has not run yet today.
// A failing campaign is logged and never stops its siblings.
func (w *Worker) RunCycle(ctx context.Context) ([]CampaignRun, error) {
	campaigns, err := w.CampaignRepo.ListCampaigns(ctx)
	if err != nil {
		w.Log.DatabaseError("list campaigns", err)
		return nil, err
	}

	now := w.now()
	due := make([]*model.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if !ShouldRunToday(c, now) {
			continue
		}
		if RanToday(c, now) {
			w.Log.Debug("campaign already ran today", slog.Int("campaign_id", c.ID))
			continue
		}
		due = append(due, c)
	}
	if len(due) == 0 {
		return nil, nil
	}

	w.Log.Info("cycle starting", slog.Int("campaigns", len(due)))

	runs := make([]CampaignRun, len(due))
	g := errgroup.Group{}
	g.SetLimit(max(w.Concurrency, 1))
	for i, c := range due {
		// Campaigns not yet started are dropped on cancellation; started ones finish.
		if ctx.Err() != nil {
			w.Log.Info("cycle cancelled", slog.Int("remaining", len(due)-i))
			break
		}
		g.Go(func() error {
			run, err := w.runLocked(ctx, c.ID, now, true)
			switch {
			case errors.Is(err, appErrors.ErrCampaignBusy):
				w.Log.Info("campaign busy, skipped", slog.Int("campaign_id", c.ID))
			case err != nil:
				w.Log.Error("campaign cycle not started", slog.Int("campaign_id", c.ID), slog.String("error", err.Error()))
			case run != nil:
				runs[i] = *run
			}
			return nil
		})
	}
	_ = g.Wait()

	out := runs[:0]
	for _, r := range runs {
		if r.CampaignID != 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// RunCampaign runs one campaign immediately, bypassing the trigger evaluator.
// Stage gating still applies. It fails with ErrCampaignBusy while another
// cycle holds the campaign.
func (w *Worker) RunCampaign(ctx context.Context, campaignID int) (*CampaignRun, error) {
	return w.runLocked(ctx, campaignID, w.now(), false)
}

// runLocked takes the campaign's lock and reloads it so stage flags written by
// the previous holder are seen. Scheduled runs that find the campaign already
// ran today return a nil run.
func (w *Worker) runLocked(ctx context.Context, campaignID int, now time.Time, scheduled bool) (*CampaignRun, error) {
	unlock, ok, err := w.Locks.TryLock(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("lock campaign %d: %w", campaignID, err)
	}
	if !ok {
		return nil, appErrors.ErrCampaignBusy
	}
	defer unlock()

	c, err := w.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if scheduled && RanToday(c, now) {
		w.Log.Debug("campaign already ran today", slog.Int("campaign_id", c.ID))
		return nil, nil
	}

	run := w.runCampaign(ctx, c, now)
	return &run, nil
}

func (w *Worker) runCampaign(ctx context.Context, c *model.Campaign, now time.Time) (run CampaignRun) {
	run.CampaignID = c.ID
	log := w.Log.WithCampaign(c.ID, c.Name)

	defer func() {
		if r := recover(); r != nil {
			log.Error("campaign cycle panicked", slog.Any("panic", r))
			run.Error = fmt.Sprint(r)
		}
	}()

	run.Fetched = w.Ingestion.IngestCampaign(ctx, c)
	run.Stages = w.Progression.AdvanceCampaign(ctx, c, now)

	log.Info("campaign cycle finished", slog.Int("fetched", run.Fetched), slog.Int("stages", len(run.Stages)))
	return run
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
