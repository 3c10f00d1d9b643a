// internal/model/print_history.go
package model

import "time"

// PrintHistoryEntry is an immutable ledger row, one per lead per stage execution.
type PrintHistoryEntry struct {
	ID          int       `db:"id" json:"id"`
	LeadID      int       `db:"lead_id" json:"lead_id"`
	CampaignID  int       `db:"campaign_id" json:"campaign_id"`
	StageID     int       `db:"stage_id" json:"stage_id"`
	PrinterName string    `db:"printer_name" json:"printer_name"`
	FilePath    string    `db:"file_path" json:"file_path"`
	PrintedAt   time.Time `db:"printed_at" json:"printed_at"`
}
