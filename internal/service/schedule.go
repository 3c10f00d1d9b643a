package service

import (
	"strings"
	"time"

	"github.com/unclebandit/directmail-scheduler/internal/model"
)

// EpochSentinel is the baseline of a campaign that has never run. It lies far
// enough in the past that every stage offset is already due on the first run.
var EpochSentinel = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// ShouldRunToday reports whether c is scheduled for now's weekday and its
// RunAt threshold has passed.
func ShouldRunToday(c *model.Campaign, now time.Time) bool {
	return RunsOn(c, now) && RunAtPassed(c, now)
}

// RunsOn reports whether the campaign's cadence includes day's weekday.
// Daily campaigns run every day; anything else is weekly.
func RunsOn(c *model.Campaign, day time.Time) bool {
	if c.LeadSource.ScheduleType == model.ScheduleDaily {
		return true
	}
	weekday := day.Weekday().String()
	for _, d := range c.LeadSource.DaysOfWeek {
		if strings.EqualFold(strings.TrimSpace(d), weekday) {
			return true
		}
	}
	return false
}

// RunAtPassed compares the time of day of now against the campaign's RunAt.
func RunAtPassed(c *model.Campaign, now time.Time) bool {
	return timeOfDay(now) >= c.LeadSource.RunAt
}

// RanToday reports whether the campaign's last run falls on now's calendar day.
func RanToday(c *model.Campaign, now time.Time) bool {
	if !c.HasRun() {
		return false
	}
	return dateOf(c.LastRunningTime, now.Location()).Equal(dateOf(now, now.Location()))
}

// BaselineDate is the anchor stage delays are measured from: the epoch
// sentinel when c never ran, otherwise ScheduledDate when set, otherwise the
// last-run date.
func BaselineDate(c *model.Campaign, loc *time.Location) time.Time {
	if !c.HasRun() {
		return EpochSentinel
	}
	if !c.ScheduledDate.IsZero() {
		return calendarDate(c.ScheduledDate, loc)
	}
	return dateOf(c.LastRunningTime, loc)
}

// DueDate is the calendar day on which stage becomes due.
func DueDate(c *model.Campaign, stage model.FollowUpStage, loc *time.Location) time.Time {
	return BaselineDate(c, loc).AddDate(0, 0, stage.DelayDays)
}

// IsDue reports whether stage is pending and its due date is on or before today.
func IsDue(c *model.Campaign, stage model.FollowUpStage, now time.Time) bool {
	if stage.IsRun {
		return false
	}
	return !DueDate(c, stage, now.Location()).After(dateOf(now, now.Location()))
}

// IsDueOn reports whether stage is pending and its due date equals day exactly.
func IsDueOn(c *model.Campaign, stage model.FollowUpStage, day time.Time) bool {
	if stage.IsRun {
		return false
	}
	return DueDate(c, stage, day.Location()).Equal(dateOf(day, day.Location()))
}

// StateOf derives the gating state of stage as of now.
func StateOf(c *model.Campaign, stage model.FollowUpStage, now time.Time) model.StageState {
	switch {
	case stage.IsRun:
		return model.StageCompleted
	case IsDue(c, stage, now):
		return model.StageDue
	default:
		return model.StagePending
	}
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// calendarDate keeps t's year, month and day as stored and places them in loc.
// DATE columns come back as midnight UTC; converting that instant would shift
// the day west of UTC.
func calendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

// StartOfMonth returns midnight on the first day of now's month.
func StartOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
