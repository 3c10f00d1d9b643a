// internal/service/campaign_service.go
package service

import (
	"context"
	"time"

	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	LeadRepo     repository.LeadRepositoryInterface
}

type StageDetails struct {
	ID         int              `json:"id"`
	DelayDays  int              `json:"delay_days"`
	TemplateID string           `json:"template_id"`
	State      model.StageState `json:"state"`
	DueDate    string           `json:"due_date"`
}

type CampaignDetails struct {
	ID              int            `json:"id"`
	Name            string         `json:"name"`
	PrinterName     string         `json:"printer_name"`
	ScheduleType    string         `json:"schedule_type"`
	RunAt           string         `json:"run_at"`
	DaysOfWeek      []string       `json:"days_of_week,omitempty"`
	LastRunningTime *time.Time     `json:"last_running_time,omitempty"`
	ShouldRunToday  bool           `json:"should_run_today"`
	EligibleLeads   int            `json:"eligible_leads"`
	Stages          []StageDetails `json:"stages"`
}

// ListCampaigns returns every campaign with its derived stage states.
func (s *CampaignService) ListCampaigns(ctx context.Context, now time.Time) ([]CampaignDetails, error) {
	campaigns, err := s.CampaignRepo.ListCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]CampaignDetails, 0, len(campaigns))
	for _, c := range campaigns {
		d, err := s.details(ctx, c, now)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// GetCampaignDetails fetches a campaign by ID
func (s *CampaignService) GetCampaignDetails(ctx context.Context, id int, now time.Time) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.details(ctx, c, now)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *CampaignService) details(ctx context.Context, c *model.Campaign, now time.Time) (CampaignDetails, error) {
	eligible, err := s.LeadRepo.CountEligible(ctx, c.ID)
	if err != nil {
		return CampaignDetails{}, err
	}

	d := CampaignDetails{
		ID:             c.ID,
		Name:           c.Name,
		PrinterName:    c.PrinterName,
		ScheduleType:   string(c.LeadSource.ScheduleType),
		RunAt:          formatRunAt(c.LeadSource.RunAt),
		DaysOfWeek:     c.LeadSource.DaysOfWeek,
		ShouldRunToday: ShouldRunToday(c, now),
		EligibleLeads:  eligible,
		Stages:         make([]StageDetails, 0, len(c.Stages)),
	}
	if c.HasRun() {
		t := c.LastRunningTime
		d.LastRunningTime = &t
	}

	for _, st := range c.Stages {
		d.Stages = append(d.Stages, StageDetails{
			ID:         st.ID,
			DelayDays:  st.DelayDays,
			TemplateID: st.TemplateID,
			State:      StateOf(c, st, now),
			DueDate:    DueDate(c, st, now.Location()).Format("2006-01-02"),
		})
	}
	return d, nil
}

func formatRunAt(d time.Duration) string {
	midnight := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return midnight.Add(d).Format("15:04")
}
