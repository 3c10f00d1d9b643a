// internal/model/campaign.go
package model

import "time"

// ScheduleType selects the campaign cadence. Anything other than daily is weekly.
type ScheduleType string

const (
	ScheduleDaily ScheduleType = "Daily"
	ScheduleNone  ScheduleType = "None" // weekly, gated by DaysOfWeek
)

// LeadSource is the schedule configuration embedded in a campaign.
type LeadSource struct {
	ScheduleType ScheduleType  `db:"schedule_type" json:"schedule_type"`
	// RunAt is the time-of-day threshold as an offset from midnight.
	RunAt        time.Duration `db:"run_at" json:"run_at"`
	DaysOfWeek   []string      `db:"days_of_week" json:"days_of_week"`
	FiltersJSON  string        `db:"filters_json" json:"filters_json"`
}

type Campaign struct {
	ID              int             `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	OutputDir       string          `db:"output_dir" json:"output_dir"`
	PrinterName     string          `db:"printer_name" json:"printer_name"`
	LastRunningTime time.Time       `db:"last_running_time" json:"last_running_time"`
	ScheduledDate   time.Time       `db:"scheduled_date" json:"scheduled_date"`
	LeadSource      LeadSource      `json:"lead_source"`
	Stages          []FollowUpStage `json:"stages"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// HasRun reports whether the campaign has completed at least one cycle.
func (c *Campaign) HasRun() bool {
	return !c.LastRunningTime.IsZero()
}
