package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
	"github.com/unclebandit/directmail-scheduler/internal/model"
)

// LeadRepositoryInterface defines methods used by the ingestion and progression services
type LeadRepositoryInterface interface {
	ExistingKeys(ctx context.Context, keys []string) (map[string]int, error)
	SaveBatch(ctx context.Context, updates, inserts []model.Lead) (BatchResult, error)
	ListEligible(ctx context.Context, campaignID int) ([]model.Lead, error)
	CountEligible(ctx context.Context, campaignID int) (int, error)
}

// BatchResult summarises one committed page.
type BatchResult struct {
	Updated  int
	Inserted int
	Skipped  int
}

// LeadRepository is the concrete implementation
type LeadRepository struct {
	DB  *sql.DB
	Log *logger.Logger
}

const leadColumns = `id, campaign_id, radar_id, first_name, last_name, address, city, state, zip,
        mailing_address, mailing_city, mailing_state, mailing_zip, phone, email,
        property_type, estimated_value, blacklisted, created_at, updated_at`

// ExistingKeys maps each natural key already stored to its lead id.
func (r *LeadRepository) ExistingKeys(ctx context.Context, keys []string) (map[string]int, error) {
	found := make(map[string]int, len(keys))
	if len(keys) == 0 {
		return found, nil
	}

	rows, err := r.DB.QueryContext(ctx, `SELECT natural_key, id FROM leads WHERE natural_key = ANY($1)`, pq.Array(keys))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var id int
		if err := rows.Scan(&key, &id); err != nil {
			return nil, err
		}
		found[key] = id
	}
	return found, rows.Err()
}

// SaveBatch updates the campaign association of existing leads and inserts new ones
// in a single transaction. An insert that violates a constraint is skipped, the rest
// of the batch still commits.
func (r *LeadRepository) SaveBatch(ctx context.Context, updates, inserts []model.Lead) (BatchResult, error) {
	var result BatchResult

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return result, err
	}
	defer tx.Rollback()

	for _, l := range updates {
		_, err := tx.ExecContext(ctx, `UPDATE leads SET campaign_id=$1, updated_at=NOW() WHERE id=$2`, l.CampaignID, l.ID)
		if err != nil {
			return result, fmt.Errorf("update lead %d: %w", l.ID, err)
		}
		result.Updated++
	}

	for _, l := range inserts {
		if _, err := tx.ExecContext(ctx, `SAVEPOINT lead_insert`); err != nil {
			return result, err
		}

		_, err := tx.ExecContext(ctx, `
            INSERT INTO leads (campaign_id, natural_key, radar_id, first_name, last_name, address, city, state, zip,
                mailing_address, mailing_city, mailing_state, mailing_zip, phone, email, property_type, estimated_value)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        `, l.CampaignID, l.NaturalKey(), l.RadarID, l.FirstName, l.LastName, l.Address, l.City, l.State, l.Zip,
			l.MailingAddress, l.MailingCity, l.MailingState, l.MailingZip, l.Phone, l.Email, l.PropertyType, l.EstimatedValue)
		if err != nil {
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT lead_insert`); rbErr != nil {
				return result, rbErr
			}
			if r.Log != nil {
				r.Log.Warn("lead insert skipped",
					"natural_key", l.NaturalKey(),
					"kind", appErrors.KindOf(err).String(),
					"error", err)
			}
			result.Skipped++
			continue
		}
		result.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return BatchResult{}, err
	}
	return result, nil
}

// ListEligible returns the campaign's leads that are not blacklisted
func (r *LeadRepository) ListEligible(ctx context.Context, campaignID int) ([]model.Lead, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT `+leadColumns+`
        FROM leads
        WHERE campaign_id = $1 AND NOT blacklisted
        ORDER BY id
    `, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := []model.Lead{}
	for rows.Next() {
		var l model.Lead
		var campaign sql.NullInt64
		if err := rows.Scan(&l.ID, &campaign, &l.RadarID, &l.FirstName, &l.LastName, &l.Address, &l.City, &l.State, &l.Zip,
			&l.MailingAddress, &l.MailingCity, &l.MailingState, &l.MailingZip, &l.Phone, &l.Email,
			&l.PropertyType, &l.EstimatedValue, &l.Blacklisted, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.CampaignID = int(campaign.Int64)
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (r *LeadRepository) CountEligible(ctx context.Context, campaignID int) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads WHERE campaign_id = $1 AND NOT blacklisted`, campaignID).Scan(&count)
	return count, err
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
