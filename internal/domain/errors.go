package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced at the API boundary. Conflict and state errors
// are returned to the caller for retry with fresh data, never resolved
// silently by skipping members.
var (
	ErrAlreadyPaid            = errors.New("report already settled in another batch")
	ErrEmptySelection         = errors.New("batch selection is empty")
	ErrInsufficientCommission = errors.New("withdrawal exceeds unwithdrawn commission")
	ErrReportNotFound         = errors.New("report not found")
	ErrBatchNotFound          = errors.New("payout batch not found")
	ErrReportPaid             = errors.New("report is settled and cannot be modified")
	ErrDuplicateReport        = errors.New("a report for this machine and date already exists")
	ErrSessionNotFound        = errors.New("handoff session not found")
	ErrSessionExpired         = errors.New("handoff session expired")
	ErrSessionNotUploaded     = errors.New("handoff session has no uploaded receipt")
	ErrSessionState           = errors.New("handoff session is in the wrong state")
	ErrStaleRate              = errors.New("exchange rate snapshot is stale")
)

// ValidationError reports rejected input. Validation failures are synchronous
// and never partially applied.
type ValidationError struct {
	Field  string
	Reason string
	Index  int
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}
