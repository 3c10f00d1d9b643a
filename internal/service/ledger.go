package service

import (
	"context"
	"time"

	"github.com/unclebandit/directmail-scheduler/internal/model"
	"github.com/unclebandit/directmail-scheduler/internal/repository"
)

// Ledger is the append-only print history.
type Ledger struct {
	Repo repository.PrintHistoryRepositoryInterface
	Now  func() time.Time
}

func NewLedger(repo repository.PrintHistoryRepositoryInterface) *Ledger {
	return &Ledger{Repo: repo, Now: time.Now}
}

// Record appends one entry for a lead printed by a stage.
func (l *Ledger) Record(ctx context.Context, leadID, campaignID, stageID int, printerName, filePath string) error {
	return l.Repo.Append(ctx, &model.PrintHistoryEntry{
		LeadID:      leadID,
		CampaignID:  campaignID,
		StageID:     stageID,
		PrinterName: printerName,
		FilePath:    filePath,
		PrintedAt:   l.now(),
	})
}

// CompleteStage records one entry per lead and marks the stage run in a single
// write. Nothing is recorded when the stage was already claimed or any row fails.
func (l *Ledger) CompleteStage(ctx context.Context, campaignID, stageID int, printerName, filePath string, leads []model.Lead) error {
	printedAt := l.now()
	entries := make([]model.PrintHistoryEntry, 0, len(leads))
	for _, lead := range leads {
		entries = append(entries, model.PrintHistoryEntry{
			LeadID:      lead.ID,
			CampaignID:  campaignID,
			StageID:     stageID,
			PrinterName: printerName,
			FilePath:    filePath,
			PrintedAt:   printedAt,
		})
	}
	return l.Repo.CompleteStage(ctx, stageID, entries)
}

// CountBetween counts entries in [from, to). Zero ids match all campaigns or stages.
func (l *Ledger) CountBetween(ctx context.Context, campaignID, stageID int, from, to time.Time) (int, error) {
	return l.Repo.Count(ctx, repository.HistoryFilter{
		CampaignID: campaignID,
		StageID:    stageID,
		From:       from,
		To:         to,
	})
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
