package history

import (
	"context"
	"time"
)

// TransitionEntry represents a single lifecycle state change record.
//
// Each entry captures the event that was applied and the states on either
// side of it. This provides a local audit trail even when the time-series
// database is unavailable.
type TransitionEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// TransceiverID is the slot number of the module.
	TransceiverID int `json:"transceiver_id"`

	// Event is the lifecycle event that was applied.
	Event string `json:"event"`

	// FromState is the lifecycle state before the event.
	FromState string `json:"from_state"`

	// ToState is the lifecycle state after the event.
	ToState string `json:"to_state"`

	// CreatedAt is the timestamp of the transition (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// RemediationEntry represents a single remediation action record.
type RemediationEntry struct {
	// ID is the auto-incremented primary key for the log row.
	ID int64 `json:"id"`

	// TransceiverID is the slot number of the module.
	TransceiverID int `json:"transceiver_id"`

	// RemediationCount is the cumulative remediation count after the action.
	RemediationCount int `json:"remediation_count"`

	// CreatedAt is the timestamp of the action (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves transceiver lifecycle history.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// RecordTransition records a lifecycle state change.
	RecordTransition(ctx context.Context, transceiverID int, event, fromState, toState string) error

	// GetTransitions returns recent transitions for the module, newest first.
	GetTransitions(ctx context.Context, transceiverID int, limit int) ([]TransitionEntry, error)

	// RecordRemediation records a remediation action.
	RecordRemediation(ctx context.Context, transceiverID int, remediationCount int) error

	// GetRemediations returns recent remediation actions for the module, newest first.
	GetRemediations(ctx context.Context, transceiverID int, limit int) ([]RemediationEntry, error)
}
