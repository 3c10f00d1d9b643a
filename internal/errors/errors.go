// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

var (
	// ErrCampaignBusy is returned when another cycle holds the campaign.
	ErrCampaignBusy = errors.New("campaign is already running")
	// ErrStageAlreadyRun is returned when a stage was completed by another cycle.
	ErrStageAlreadyRun = errors.New("stage already completed")
)

// Kind is the failure class of an engine error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindSourceUnavailable: network, auth or non-success status from the record source.
	KindSourceUnavailable
	// KindNoData: the source returned nothing. Ends pagination, not a failure.
	KindNoData
	// KindRender: template missing, render or conversion failed.
	KindRender
	// KindConflict: a constraint violation while persisting a record.
	KindConflict
	// KindConfigMissing: a credential or setting needed for the operation is absent.
	KindConfigMissing
)

func (k Kind) String() string {
	switch k {
	case KindSourceUnavailable:
		return "source_unavailable"
	case KindNoData:
		return "no_data"
	case KindRender:
		return "render"
	case KindConflict:
		return "conflict"
	case KindConfigMissing:
		return "config_missing"
	default:
		return "unknown"
	}
}

// Error is an engine error with a Kind and the operation that produced it.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches a kind and operation to err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if IsUniqueViolation(err) {
		return KindConflict
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsUniqueViolation reports whether err is a postgres unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
