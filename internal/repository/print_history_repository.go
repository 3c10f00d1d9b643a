package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/directmail-scheduler/internal/errors"
	"github.com/unclebandit/directmail-scheduler/internal/model"
)

// PrintHistoryRepositoryInterface is append-only: no update or delete.
type PrintHistoryRepositoryInterface interface {
	Append(ctx context.Context, entry *model.PrintHistoryEntry) error
	// CompleteStage claims a pending stage and appends its entries in one
	// transaction. A stage that is already run yields ErrStageAlreadyRun and no rows.
	CompleteStage(ctx context.Context, stageID int, entries []model.PrintHistoryEntry) error
	Count(ctx context.Context, filter HistoryFilter) (int, error)
}

// HistoryFilter selects ledger rows in [From, To). Zero ids match every campaign or stage.
type HistoryFilter struct {
	CampaignID int
	StageID    int
	From       time.Time
	To         time.Time
}

const insertHistory = `
        INSERT INTO print_history (lead_id, campaign_id, stage_id, printer_name, file_path, printed_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id
    `

type PrintHistoryRepository struct {
	DB *sql.DB
}

// Append inserts an entry and returns the created ID on it
func (r *PrintHistoryRepository) Append(ctx context.Context, entry *model.PrintHistoryEntry) error {
	if entry.PrintedAt.IsZero() {
		entry.PrintedAt = time.Now()
	}

	return r.DB.QueryRowContext(ctx, insertHistory,
		entry.LeadID,
		entry.CampaignID,
		entry.StageID,
		entry.PrinterName,
		entry.FilePath,
		entry.PrintedAt,
	).Scan(&entry.ID)
}

func (r *PrintHistoryRepository) CompleteStage(ctx context.Context, stageID int, entries []model.PrintHistoryEntry) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE follow_up_stages SET is_run=TRUE WHERE id=$1 AND is_run=FALSE`, stageID)
	if err != nil {
		return fmt.Errorf("claim stage %d: %w", stageID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return appErrors.ErrStageAlreadyRun
	}

	now := time.Now()
	for i := range entries {
		e := &entries[i]
		if e.PrintedAt.IsZero() {
			e.PrintedAt = now
		}
		err := tx.QueryRowContext(ctx, insertHistory,
			e.LeadID, e.CampaignID, e.StageID, e.PrinterName, e.FilePath, e.PrintedAt,
		).Scan(&e.ID)
		if err != nil {
			return fmt.Errorf("append print history for lead %d: %w", e.LeadID, err)
		}
	}

	return tx.Commit()
}

func (r *PrintHistoryRepository) Count(ctx context.Context, f HistoryFilter) (int, error) {
	query := `
        SELECT COUNT(*) FROM print_history
        WHERE printed_at >= $1 AND printed_at < $2
          AND ($3 = 0 OR campaign_id = $3)
          AND ($4 = 0 OR stage_id = $4)
    `
	var count int
	err := r.DB.QueryRowContext(ctx, query, f.From, f.To, f.CampaignID, f.StageID).Scan(&count)
	return count, err
}

var _ PrintHistoryRepositoryInterface = (*PrintHistoryRepository)(nil)
