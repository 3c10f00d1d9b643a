// internal/model/lead.go
package model

import (
	"strings"
	"time"
)

// Lead is one property record, unique by NaturalKey.
type Lead struct {
	ID             int       `db:"id" json:"id"`
	CampaignID     int       `db:"campaign_id" json:"campaign_id"`
	RadarID        string    `db:"radar_id" json:"radar_id"`
	FirstName      string    `db:"first_name" json:"first_name"`
	LastName       string    `db:"last_name" json:"last_name"`
	Address        string    `db:"address" json:"address"`
	City           string    `db:"city" json:"city"`
	State          string    `db:"state" json:"state"`
	Zip            string    `db:"zip" json:"zip"`
	MailingAddress string    `db:"mailing_address" json:"mailing_address"`
	MailingCity    string    `db:"mailing_city" json:"mailing_city"`
	MailingState   string    `db:"mailing_state" json:"mailing_state"`
	MailingZip     string    `db:"mailing_zip" json:"mailing_zip"`
	Phone          string    `db:"phone" json:"phone"`
	Email          string    `db:"email" json:"email"`
	PropertyType   string    `db:"property_type" json:"property_type"`
	EstimatedValue float64   `db:"estimated_value" json:"estimated_value"`
	Blacklisted    bool      `db:"blacklisted" json:"blacklisted"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// NaturalKey is the RadarID, or address plus first name for records without one.
func (l *Lead) NaturalKey() string {
	if id := strings.TrimSpace(l.RadarID); id != "" {
		return id
	}
	return strings.ToLower(strings.TrimSpace(l.Address)) + "|" + strings.ToLower(strings.TrimSpace(l.FirstName))
}
