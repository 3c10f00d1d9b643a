package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
	"github.com/unclebandit/directmail-scheduler/internal/model"
)

type CampaignRepositoryInterface interface {
	ListCampaigns(ctx context.Context) ([]*model.Campaign, error)
	GetByID(ctx context.Context, id int) (*model.Campaign, error)
	UpdateLastRunningTime(ctx context.Context, campaignID int, at time.Time) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, output_dir, printer_name, last_running_time, scheduled_date,
        schedule_type, run_at_seconds, days_of_week, filters_json, created_at`

// ====================== Campaigns ======================

func (r *CampaignRepository) ListCampaigns(ctx context.Context) ([]*model.Campaign, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+campaignColumns+` FROM campaigns ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	byID := map[int]*model.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(campaigns) == 0 {
		return campaigns, nil
	}

	ids := make([]int64, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, int64(c.ID))
	}
	stages, err := r.listStages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range stages {
		if c, ok := byID[s.CampaignID]; ok {
			c.Stages = append(c.Stages, s)
		}
	}

	return campaigns, nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id int) (*model.Campaign, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}

	stages, err := r.listStages(ctx, []int64{int64(id)})
	if err != nil {
		return nil, err
	}
	c.Stages = stages
	return c, nil
}

func (r *CampaignRepository) UpdateLastRunningTime(ctx context.Context, campaignID int, at time.Time) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE campaigns SET last_running_time=$1 WHERE id=$2`, at, campaignID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	return nil
}

// ====================== Stages ======================

// is_run is only ever set by PrintHistoryRepository.CompleteStage.

func (r *CampaignRepository) listStages(ctx context.Context, campaignIDs []int64) ([]model.FollowUpStage, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, campaign_id, delay_days, is_run, template_id
        FROM follow_up_stages
        WHERE campaign_id = ANY($1)
        ORDER BY campaign_id, delay_days, id
    `, pq.Array(campaignIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := []model.FollowUpStage{}
	for rows.Next() {
		var s model.FollowUpStage
		if err := rows.Scan(&s.ID, &s.CampaignID, &s.DelayDays, &s.IsRun, &s.TemplateID); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var (
		c         model.Campaign
		lastRun   sql.NullTime
		scheduled sql.NullTime
		schedule  string
		runAtSecs int64
		days      []string
	)
	err := row.Scan(&c.ID, &c.Name, &c.OutputDir, &c.PrinterName, &lastRun, &scheduled,
		&schedule, &runAtSecs, pq.Array(&days), &c.LeadSource.FiltersJSON, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	if lastRun.Valid {
		c.LastRunningTime = lastRun.Time
	}
	if scheduled.Valid {
		c.ScheduledDate = scheduled.Time
	}
	c.LeadSource.ScheduleType = model.ScheduleType(schedule)
	c.LeadSource.RunAt = time.Duration(runAtSecs) * time.Second
	c.LeadSource.DaysOfWeek = days
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
