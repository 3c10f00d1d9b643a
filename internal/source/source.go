// Package source fetches lead-shaped records from the external data provider
// or from a local delimited feed that stands in for it.
package source

import (
	"context"
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/unclebandit/directmail-scheduler/internal/model"
)

// BatchSize is the fixed page size requested from a source.
const BatchSize = 500

// RecordSource is a paginated provider of property records.
type RecordSource interface {
	FetchPage(ctx context.Context, filtersJSON string, start, limit int) (*Page, error)
}

// Counter reports how many records currently match a filter without purchasing them.
type Counter interface {
	CountRecords(ctx context.Context, filtersJSON string) (int, error)
}

// Page is one response from a source. Success is false when the provider
// answered with a non-success status.
type Page struct {
	Records    []Record
	Total      int
	Success    bool
	StatusCode int
}

// Record is the provider's shape of a property and its owner.
type Record struct {
	RadarID        string  `json:"RadarID"`
	Address        string  `json:"Address"`
	City           string  `json:"City"`
	State          string  `json:"State"`
	ZipFive        string  `json:"ZipFive"`
	OwnerFirstName string  `json:"OwnerFirstName"`
	OwnerLastName  string  `json:"OwnerLastName"`
	OwnerAddress   string  `json:"OwnerAddress"`
	OwnerCity      string  `json:"OwnerCity"`
	OwnerState     string  `json:"OwnerState"`
	OwnerZipFive   string  `json:"OwnerZipFive"`
	Phone          string  `json:"Phone"`
	Email          string  `json:"Email"`
	PType          string  `json:"PType"`
	AVM            float64 `json:"AVM"`
}

// Mapper converts provider records to the internal lead schema.
// PhoneRegion is the ISO region used for numbers without a country code; empty means US.
type Mapper struct {
	PhoneRegion string
}

func (m Mapper) ToLead(r Record) model.Lead {
	lead := model.Lead{
		RadarID:        strings.TrimSpace(r.RadarID),
		FirstName:      strings.TrimSpace(r.OwnerFirstName),
		LastName:       strings.TrimSpace(r.OwnerLastName),
		Address:        strings.TrimSpace(r.Address),
		City:           strings.TrimSpace(r.City),
		State:          strings.ToUpper(strings.TrimSpace(r.State)),
		Zip:            strings.TrimSpace(r.ZipFive),
		MailingAddress: strings.TrimSpace(r.OwnerAddress),
		MailingCity:    strings.TrimSpace(r.OwnerCity),
		MailingState:   strings.ToUpper(strings.TrimSpace(r.OwnerState)),
		MailingZip:     strings.TrimSpace(r.OwnerZipFive),
		Phone:          m.phone(r.Phone),
		Email:          strings.ToLower(strings.TrimSpace(r.Email)),
		PropertyType:   strings.TrimSpace(r.PType),
		EstimatedValue: r.AVM,
	}

	// Owner-occupied records often leave the mailing block empty.
	if lead.MailingAddress == "" {
		lead.MailingAddress = lead.Address
		lead.MailingCity = lead.City
		lead.MailingState = lead.State
		lead.MailingZip = lead.Zip
	}
	return lead
}

func (m Mapper) ToLeads(records []Record) []model.Lead {
	leads := make([]model.Lead, 0, len(records))
	for _, r := range records {
		leads = append(leads, m.ToLead(r))
	}
	return leads
}

// phone returns the owner's number in E.164. Numbers the region cannot
// validate are kept as the provider sent them, trimmed.
func (m Mapper) phone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	region := m.PhoneRegion
	if region == "" {
		region = "US"
	}
	if num, err := phonenumbers.Parse(raw, region); err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164)
	}
	return raw
}
