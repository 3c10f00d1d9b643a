package service_test

import (
	"testing"
	"time"

	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/service"
)

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func dailyCampaign(runAt time.Duration) *model.Campaign {
	return &model.Campaign{
		ID:         1,
		Name:       "Spring Mailer",
		LeadSource: model.LeadSource{ScheduleType: model.ScheduleDaily, RunAt: runAt},
	}
}

func TestShouldRunToday_RunAtThreshold(t *testing.T) {
	c := dailyCampaign(6 * time.Hour)

	if service.ShouldRunToday(c, at(2024, 3, 4, 5, 59)) {
		t.Errorf("expected false at 05:59 with RunAt 06:00")
	}
	if !service.ShouldRunToday(c, at(2024, 3, 4, 6, 0)) {
		t.Errorf("expected true at 06:00 with RunAt 06:00")
	}
}

func TestShouldRunToday_Weekly(t *testing.T) {
	c := &model.Campaign{
		LeadSource: model.LeadSource{
			ScheduleType: model.ScheduleNone,
			RunAt:        8 * time.Hour,
			DaysOfWeek:   []string{"monday", " WEDNESDAY "},
		},
	}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"monday after run at", at(2024, 3, 4, 9, 0), true},
		{"monday before run at", at(2024, 3, 4, 7, 0), false},
		{"tuesday", at(2024, 3, 5, 9, 0), false},
		{"wednesday mixed case", at(2024, 3, 6, 9, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.ShouldRunToday(c, tt.now); got != tt.want {
				t.Errorf("ShouldRunToday(%s) = %v, want %v", tt.now.Weekday(), got, tt.want)
			}
		})
	}
}

func TestShouldRunToday_WeeklyWithoutDaysNeverRuns(t *testing.T) {
	c := &model.Campaign{LeadSource: model.LeadSource{ScheduleType: model.ScheduleNone}}
	for d := 0; d < 7; d++ {
		if service.ShouldRunToday(c, at(2024, 3, 4+d, 12, 0)) {
			t.Fatalf("weekly campaign with no days ran on %s", at(2024, 3, 4+d, 12, 0).Weekday())
		}
	}
}

func TestBaselineDate(t *testing.T) {
	c := dailyCampaign(0)
	if got := service.BaselineDate(c, time.UTC); !got.Equal(service.EpochSentinel) {
		t.Errorf("never-run baseline = %v, want epoch sentinel", got)
	}

	c.LastRunningTime = at(2024, 3, 10, 14, 30)
	if got := service.BaselineDate(c, time.UTC); !got.Equal(at(2024, 3, 10, 0, 0)) {
		t.Errorf("baseline = %v, want last-run date", got)
	}

	c.ScheduledDate = at(2024, 3, 1, 0, 0)
	if got := service.BaselineDate(c, time.UTC); !got.Equal(at(2024, 3, 1, 0, 0)) {
		t.Errorf("baseline = %v, want scheduled date", got)
	}
}

func TestIsDue_DelayArithmetic(t *testing.T) {
	c := dailyCampaign(0)
	c.LastRunningTime = at(2024, 3, 10, 9, 0) // D
	stage := model.FollowUpStage{ID: 7, DelayDays: 3}

	if service.IsDue(c, stage, at(2024, 3, 12, 23, 59)) {
		t.Errorf("stage due on D+2")
	}
	if !service.IsDue(c, stage, at(2024, 3, 13, 0, 0)) {
		t.Errorf("stage not due on D+3")
	}
	if !service.IsDue(c, stage, at(2024, 3, 20, 0, 0)) {
		t.Errorf("stage not due after D+3")
	}

	stage.IsRun = true
	if service.IsDue(c, stage, at(2024, 3, 20, 0, 0)) {
		t.Errorf("completed stage reported due")
	}
}

func TestIsDue_NeverRunCampaignHasEverythingDue(t *testing.T) {
	c := dailyCampaign(0)
	for _, delay := range []int{0, 7, 30, 365} {
		if !service.IsDue(c, model.FollowUpStage{DelayDays: delay}, at(2024, 1, 1, 0, 0)) {
			t.Errorf("delay %d not due on first run", delay)
		}
	}
}

func TestIsDueOn_ExactMatchOnly(t *testing.T) {
	c := dailyCampaign(0)
	c.LastRunningTime = at(2024, 3, 10, 9, 0)
	stage := model.FollowUpStage{DelayDays: 3}

	if !service.IsDueOn(c, stage, at(2024, 3, 13, 0, 0)) {
		t.Errorf("expected due on day D+3")
	}
	if service.IsDueOn(c, stage, at(2024, 3, 14, 0, 0)) {
		t.Errorf("overdue stage matched exact day")
	}
}

func TestStateOf(t *testing.T) {
	c := dailyCampaign(0)
	c.LastRunningTime = at(2024, 3, 10, 9, 0)
	now := at(2024, 3, 11, 9, 0)

	if got := service.StateOf(c, model.FollowUpStage{DelayDays: 5}, now); got != model.StagePending {
		t.Errorf("state = %s, want pending", got)
	}
	if got := service.StateOf(c, model.FollowUpStage{DelayDays: 1}, now); got != model.StageDue {
		t.Errorf("state = %s, want due", got)
	}
	if got := service.StateOf(c, model.FollowUpStage{DelayDays: 1, IsRun: true}, now); got != model.StageCompleted {
		t.Errorf("state = %s, want completed", got)
	}
}

func TestRanToday(t *testing.T) {
	c := dailyCampaign(0)
	now := at(2024, 3, 10, 18, 0)
	if service.RanToday(c, now) {
		t.Errorf("never-run campaign reported as ran today")
	}
	c.LastRunningTime = at(2024, 3, 10, 6, 0)
	if !service.RanToday(c, now) {
		t.Errorf("expected ran today")
	}
	c.LastRunningTime = at(2024, 3, 9, 23, 59)
	if service.RanToday(c, now) {
		t.Errorf("yesterday's run reported as today")
	}
}

func TestBaselineDate_ScheduledDateKeepsCalendarDay(t *testing.T) {
	eastern := time.FixedZone("UTC-5", -5*3600)
	c := dailyCampaign(0)
	c.LastRunningTime = time.Date(2026, 10, 14, 9, 0, 0, 0, eastern)
	c.ScheduledDate = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC) // DATE column as scanned
	stage := model.FollowUpStage{ID: 1, DelayDays: 3}

	want := time.Date(2026, 10, 14, 0, 0, 0, 0, eastern)
	if got := service.BaselineDate(c, eastern); !got.Equal(want) {
		t.Fatalf("baseline = %v, want %v", got, want)
	}
	if service.IsDue(c, stage, time.Date(2026, 10, 16, 23, 0, 0, 0, eastern)) {
		t.Errorf("stage due on D+2 west of UTC")
	}
	if !service.IsDue(c, stage, time.Date(2026, 10, 17, 0, 0, 0, 0, eastern)) {
		t.Errorf("stage not due on D+3 west of UTC")
	}
	if !service.IsDueOn(c, stage, time.Date(2026, 10, 17, 12, 0, 0, 0, eastern)) {
		t.Errorf("due date is not D+3 west of UTC")
	}
}
