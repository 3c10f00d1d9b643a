// internal/model/stage.go
package model

// FollowUpStage is one timed step of a campaign. IsRun flips to true once and stays there.
type FollowUpStage struct {
	ID         int    `db:"id" json:"id"`
	CampaignID int    `db:"campaign_id" json:"campaign_id"`
	DelayDays  int    `db:"delay_days" json:"delay_days"`
	IsRun      bool   `db:"is_run" json:"is_run"`
	TemplateID string `db:"template_id" json:"template_id"`
}

// StageState is the derived gating state of a stage.
type StageState string

const (
	StagePending   StageState = "pending"
	StageDue       StageState = "due"
	StageCompleted StageState = "completed"
)
