package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/repository"
	"github.com/unclebandit/directmail-scheduler/internal/source"
)

// Projection is a stage count and the letters those stages would produce.
type Projection struct {
	Stages  int `json:"stages"`
	Letters int `json:"letters"`
}

// Dashboard is the aggregate forecast across all campaigns.
type Dashboard struct {
	PendingToday     Projection `json:"pending_today"`
	DueTomorrow      Projection `json:"due_tomorrow"`
	PrintedToday     int        `json:"printed_today"`
	PrintedThisMonth int        `json:"printed_this_month"`
	EstimatedFrom    string     `json:"estimated_from"` // stored or source
}

// CampaignForecast is the per-campaign forecast.
type CampaignForecast struct {
	CampaignID         int        `json:"campaign_id"`
	PendingToday       Projection `json:"pending_today"`
	DueTomorrow        Projection `json:"due_tomorrow"`
	PrintedToday       int        `json:"printed_today"`
	PrintedThisMonth   int        `json:"printed_this_month"`
	PrintedDueTomorrow int        `json:"printed_due_tomorrow"`
}

// ForecastService answers read-only questions about pending and printed
// letters. It never writes to stages or the ledger.
type ForecastService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
	Ledger       *Ledger
	Counter      source.Counter // optional, used for source estimates
	Log          *logger.Logger
}

// PendingToday counts stages that are pending and due as of now, and the
// letters they would print. With fromSource the per-campaign letter count is
// the live match count at the source instead of stored eligible leads.
func (f *ForecastService) PendingToday(ctx context.Context, campaigns []*model.Campaign, now time.Time, fromSource bool) (Projection, error) {
	var total Projection
	for _, c := range campaigns {
		stages := 0
		for _, s := range c.Stages {
			if IsDue(c, s, now) {
				stages++
			}
		}
		if stages == 0 {
			continue
		}

		leads, err := f.leadCount(ctx, c, fromSource)
		if err != nil {
			return Projection{}, err
		}
		total.Stages += stages
		total.Letters += stages * leads
	}
	return total, nil
}

// DueTomorrow counts pending stages whose due date is exactly tomorrow, for
// campaigns whose cadence includes tomorrow.
func (f *ForecastService) DueTomorrow(ctx context.Context, campaigns []*model.Campaign, now time.Time) (Projection, error) {
	tomorrow := dateOf(now, now.Location()).AddDate(0, 0, 1)

	var total Projection
	for _, c := range campaigns {
		if !RunsOn(c, tomorrow) {
			continue
		}
		stages := 0
		for _, s := range c.Stages {
			if IsDueOn(c, s, tomorrow) {
				stages++
			}
		}
		if stages == 0 {
			continue
		}

		leads, err := f.leadCount(ctx, c, false)
		if err != nil {
			return Projection{}, err
		}
		total.Stages += stages
		total.Letters += stages * leads
	}
	return total, nil
}

// PrintedToday counts ledger rows written today. campaignID 0 means all campaigns.
func (f *ForecastService) PrintedToday(ctx context.Context, campaignID int, now time.Time) (int, error) {
	today := dateOf(now, now.Location())
	return f.Ledger.CountBetween(ctx, campaignID, 0, today, today.AddDate(0, 0, 1))
}

// PrintedThisMonth counts ledger rows written since the first of the month.
func (f *ForecastService) PrintedThisMonth(ctx context.Context, campaignID int, now time.Time) (int, error) {
	start := StartOfMonth(now)
	return f.Ledger.CountBetween(ctx, campaignID, 0, start, start.AddDate(0, 1, 0))
}

// PrintedDueTomorrow looks at the campaign's stages ordered by id and reports
// today's ledger count for the last completed one. It is zero when the
// campaign has a single stage, no completed stage, or no pending stage left.
func (f *ForecastService) PrintedDueTomorrow(ctx context.Context, c *model.Campaign, now time.Time) (int, error) {
	stages := make([]model.FollowUpStage, len(c.Stages))
	copy(stages, c.Stages)
	sort.Slice(stages, func(i, j int) bool { return stages[i].ID < stages[j].ID })

	if len(stages) <= 1 {
		return 0, nil
	}

	last := -1
	completed := 0
	for i, s := range stages {
		if s.IsRun {
			last = i
			completed++
		}
	}
	if last < 0 || completed == len(stages) {
		return 0, nil
	}

	today := dateOf(now, now.Location())
	return f.Ledger.CountBetween(ctx, c.ID, stages[last].ID, today, today.AddDate(0, 0, 1))
}

// Dashboard aggregates the forecast across every campaign.
func (f *ForecastService) Dashboard(ctx context.Context, now time.Time, fromSource bool) (*Dashboard, error) {
	campaigns, err := f.CampaignRepo.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{EstimatedFrom: "stored"}
	if fromSource && f.Counter != nil {
		d.EstimatedFrom = "source"
	}

	if d.PendingToday, err = f.PendingToday(ctx, campaigns, now, fromSource); err != nil {
		return nil, err
	}
	if d.DueTomorrow, err = f.DueTomorrow(ctx, campaigns, now); err != nil {
		return nil, err
	}
	if d.PrintedToday, err = f.PrintedToday(ctx, 0, now); err != nil {
		return nil, err
	}
	if d.PrintedThisMonth, err = f.PrintedThisMonth(ctx, 0, now); err != nil {
		return nil, err
	}
	return d, nil
}

// ForCampaign computes the forecast for one campaign.
func (f *ForecastService) ForCampaign(ctx context.Context, campaignID int, now time.Time) (*CampaignForecast, error) {
	c, err := f.CampaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	one := []*model.Campaign{c}

	out := &CampaignForecast{CampaignID: c.ID}
	if out.PendingToday, err = f.PendingToday(ctx, one, now, false); err != nil {
		return nil, err
	}
	if out.DueTomorrow, err = f.DueTomorrow(ctx, one, now); err != nil {
		return nil, err
	}
	if out.PrintedToday, err = f.PrintedToday(ctx, c.ID, now); err != nil {
		return nil, err
	}
	if out.PrintedThisMonth, err = f.PrintedThisMonth(ctx, c.ID, now); err != nil {
		return nil, err
	}
	if out.PrintedDueTomorrow, err = f.PrintedDueTomorrow(ctx, c, now); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *ForecastService) leadCount(ctx context.Context, c *model.Campaign, fromSource bool) (int, error) {
	if fromSource && f.Counter != nil {
		n, err := f.Counter.CountRecords(ctx, c.LeadSource.FiltersJSON)
		if err == nil {
			return n, nil
		}
		// Fall back to stored leads so the dashboard still renders.
		if f.Log != nil {
			f.Log.Warn("live record count failed, using stored leads",
				slog.Int("campaign_id", c.ID), slog.String("error", err.Error()))
		}
	}
	return f.LeadRepo.CountEligible(ctx, c.ID)
}
