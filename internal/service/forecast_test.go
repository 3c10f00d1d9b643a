package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/service"
)

func newForecast(history *MockHistoryRepo, leads *MockLeadRepo, cs ...*model.Campaign) *service.ForecastService {
	return &service.ForecastService{
		CampaignRepo: newCampaignRepo(cs...),
		LeadRepo:     leads,
		Ledger:       service.NewLedger(history),
		Log:          logger.Discard(),
	}
}

func printed(campaignID, stageID int, when time.Time) model.PrintHistoryEntry {
	return model.PrintHistoryEntry{CampaignID: campaignID, StageID: stageID, PrintedAt: when}
}

func TestPrintedDueTomorrow(t *testing.T) {
	now := at(2024, 3, 12, 15, 0)
	history := &MockHistoryRepo{entries: []model.PrintHistoryEntry{
		printed(1, 2, at(2024, 3, 12, 9, 0)),
		printed(1, 2, at(2024, 3, 12, 9, 1)),
		printed(1, 2, at(2024, 3, 11, 9, 0)), // yesterday
		printed(1, 1, at(2024, 3, 12, 9, 0)),
		printed(1, 9, at(2024, 3, 12, 9, 0)),
	}}
	f := newForecast(history, newLeadRepo())

	tests := []struct {
		name   string
		stages []model.FollowUpStage
		want   int
	}{
		{"single completed stage", []model.FollowUpStage{{ID: 9, IsRun: true}}, 0},
		{"single pending stage", []model.FollowUpStage{{ID: 9}}, 0},
		{"none completed", []model.FollowUpStage{{ID: 1}, {ID: 2}, {ID: 3}}, 0},
		{"all completed", []model.FollowUpStage{{ID: 1, IsRun: true}, {ID: 2, IsRun: true}}, 0},
		{"last completed by id", []model.FollowUpStage{{ID: 3}, {ID: 2, IsRun: true}, {ID: 1, IsRun: true}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &model.Campaign{ID: 1, Stages: tt.stages}
			got, err := f.PrintedDueTomorrow(context.Background(), c, now)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("PrintedDueTomorrow = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDueTomorrow_ExactDateOnly(t *testing.T) {
	c := dailyCampaign(6 * time.Hour)
	c.LastRunningTime = at(2024, 3, 10, 6, 0)
	c.Stages = []model.FollowUpStage{
		{ID: 1, DelayDays: 2}, // due today
		{ID: 2, DelayDays: 3}, // due tomorrow
		{ID: 3, DelayDays: 3, IsRun: true},
		{ID: 4, DelayDays: 10},
	}
	leads := newLeadRepo()
	leads.seed(1, "A", "B", "C")
	f := newForecast(&MockHistoryRepo{}, leads, c)

	got, err := f.DueTomorrow(context.Background(), []*model.Campaign{c}, at(2024, 3, 12, 8, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Stages != 1 || got.Letters != 3 {
		t.Errorf("DueTomorrow = %+v, want 1 stage and 3 letters", got)
	}
}

func TestDueTomorrow_RespectsWeeklyCadence(t *testing.T) {
	c := &model.Campaign{
		ID:              1,
		LastRunningTime: at(2024, 3, 10, 6, 0),
		LeadSource:      model.LeadSource{ScheduleType: model.ScheduleNone, DaysOfWeek: []string{"Monday"}},
		Stages:          []model.FollowUpStage{{ID: 1, DelayDays: 3}},
	}
	f := newForecast(&MockHistoryRepo{}, newLeadRepo(), c)

	// 2024-03-13 is a Wednesday.
	got, err := f.DueTomorrow(context.Background(), []*model.Campaign{c}, at(2024, 3, 12, 8, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Stages != 0 {
		t.Errorf("DueTomorrow = %+v for a campaign that does not run tomorrow", got)
	}
}

func TestPendingToday_StoredAndSourceEstimates(t *testing.T) {
	c := dailyCampaign(0)
	c.Stages = []model.FollowUpStage{{ID: 1, DelayDays: 0}, {ID: 2, DelayDays: 30}, {ID: 3, IsRun: true}}
	leads := newLeadRepo()
	leads.seed(1, "A", "B")
	f := newForecast(&MockHistoryRepo{}, leads, c)
	now := at(2024, 3, 12, 8, 0)
	campaigns := []*model.Campaign{c}

	stored, err := f.PendingToday(context.Background(), campaigns, now, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Stages != 2 || stored.Letters != 4 {
		t.Errorf("stored estimate = %+v, want 2 stages and 4 letters", stored)
	}

	f.Counter = MockCounter{n: 40}
	live, _ := f.PendingToday(context.Background(), campaigns, now, true)
	if live.Letters != 80 {
		t.Errorf("live estimate letters = %d, want 80", live.Letters)
	}

	f.Counter = MockCounter{err: errors.New("source down")}
	fallback, err := f.PendingToday(context.Background(), campaigns, now, true)
	if err != nil || fallback.Letters != 4 {
		t.Errorf("fallback = %+v, %v, want stored letters", fallback, err)
	}
}

func TestForecast_DoesNotMutate(t *testing.T) {
	c := dailyCampaign(0)
	c.Stages = []model.FollowUpStage{{ID: 1}, {ID: 2, DelayDays: 1}}
	repo := newCampaignRepo(c)
	history := &MockHistoryRepo{}
	f := &service.ForecastService{
		CampaignRepo: repo,
		LeadRepo:     newLeadRepo(),
		Ledger:       service.NewLedger(history),
		Log:          logger.Discard(),
	}

	if _, err := f.Dashboard(context.Background(), at(2024, 3, 12, 8, 0), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.ForCampaign(context.Background(), 1, at(2024, 3, 12, 8, 0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.lastRunSets) != 0 || repo.stage(1).IsRun || len(history.entries) != 0 {
		t.Errorf("forecast wrote state")
	}
}

func TestDashboard_PrintedCounts(t *testing.T) {
	history := &MockHistoryRepo{entries: []model.PrintHistoryEntry{
		printed(1, 1, at(2024, 3, 12, 1, 0)),
		printed(2, 5, at(2024, 3, 12, 23, 0)),
		printed(1, 1, at(2024, 3, 2, 9, 0)),
		printed(1, 1, at(2024, 2, 29, 9, 0)), // previous month
	}}
	f := newForecast(history, newLeadRepo(), dailyCampaign(0))

	d, err := f.Dashboard(context.Background(), at(2024, 3, 12, 8, 0), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.PrintedToday != 2 || d.PrintedThisMonth != 3 {
		t.Errorf("printed today/month = %d/%d, want 2/3", d.PrintedToday, d.PrintedThisMonth)
	}
	if d.EstimatedFrom != "stored" {
		t.Errorf("estimated from = %q", d.EstimatedFrom)
	}

	one, err := f.ForCampaign(context.Background(), 1, at(2024, 3, 12, 8, 0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if one.PrintedToday != 1 || one.PrintedThisMonth != 2 {
		t.Errorf("campaign printed today/month = %d/%d, want 1/2", one.PrintedToday, one.PrintedThisMonth)
	}
}

func TestForCampaign_NotFound(t *testing.T) {
	f := newForecast(&MockHistoryRepo{}, newLeadRepo())
	if _, err := f.ForCampaign(context.Background(), 42, time.Now()); err == nil {
		t.Errorf("expected not found error")
	}
}
