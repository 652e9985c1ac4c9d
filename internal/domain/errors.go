package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired means the terminal is not logged in for the
	// requested account. Distinct from "no new data" on purpose.
	ErrAuthRequired = errors.New("terminal authentication required")

	// ErrTimeout means the terminal did not answer within the fetch
	// deadline. Retrying is the caller's decision.
	ErrTimeout = errors.New("terminal fetch timed out")

	// ErrSyncInProgress means another sync for the same account is
	// already running. Concurrent requests are rejected, not queued.
	ErrSyncInProgress = errors.New("sync already in progress for account")
)

// RejectedFill describes one record refused by the normalizer.
type RejectedFill struct {
	Ticket int64  `json:"ticket"`
	Reason string `json:"reason"`
}

// ValidationError rejects a whole batch of raw fills. Nothing from the
// batch is stored; Rejected enumerates every offending record.
type ValidationError struct {
	Rejected []RejectedFill
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("fill batch rejected: %d invalid records", len(e.Rejected))
}

// DataIntegrityError means fills sharing a position identifier disagree
// on symbol, strategy identifier, or direction. Aggregation for that
// position is refused rather than silently merged.
type DataIntegrityError struct {
	PositionID int64
	Tickets    []int64
	Reason     string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("position %d integrity violation (%s), tickets %v", e.PositionID, e.Reason, e.Tickets)
}
