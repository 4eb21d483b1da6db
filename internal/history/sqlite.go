package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteRepository implements Repository using SQLite.
//
// It stores transitions in the transceiver_transitions table and
// remediation actions in the remediation_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordTransition inserts a new lifecycle transition entry for a module.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - transceiverID: Slot number of the module
//   - event: Lifecycle event that was applied
//   - fromState: Lifecycle state before the event
//   - toState: Lifecycle state after the event
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) RecordTransition(ctx context.Context, transceiverID int, event, fromState, toState string) error {
	if transceiverID < 0 {
		return fmt.Errorf("transceiver id must be non-negative")
	}
	if event == "" {
		return fmt.Errorf("event is required")
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO transceiver_transitions (transceiver_id, event, from_state, to_state) VALUES (?, ?, ?, ?)",
		transceiverID,
		event,
		fromState,
		toState,
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}

	return nil
}

// GetTransitions returns recent transitions for a module, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - transceiverID: Slot number of the module
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []TransitionEntry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) GetTransitions(ctx context.Context, transceiverID int, limit int) ([]TransitionEntry, error) {
	if transceiverID < 0 {
		return nil, fmt.Errorf("transceiver id must be non-negative")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transceiver_id, event, from_state, to_state, created_at
		 FROM transceiver_transitions
		 WHERE transceiver_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		transceiverID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]TransitionEntry, 0, limit)
	for rows.Next() {
		var entry TransitionEntry
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.TransceiverID, &entry.Event, &entry.FromState, &entry.ToState, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}

	return entries, nil
}

// RecordRemediation inserts a new remediation log entry for a module.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - transceiverID: Slot number of the module
//   - remediationCount: Cumulative remediation count after the action
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) RecordRemediation(ctx context.Context, transceiverID int, remediationCount int) error {
	if transceiverID < 0 {
		return fmt.Errorf("transceiver id must be non-negative")
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO remediation_log (transceiver_id, remediation_count) VALUES (?, ?)",
		transceiverID,
		remediationCount,
	)
	if err != nil {
		return fmt.Errorf("inserting remediation: %w", err)
	}

	return nil
}

// GetRemediations returns recent remediation actions for a module, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - transceiverID: Slot number of the module
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []RemediationEntry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) GetRemediations(ctx context.Context, transceiverID int, limit int) ([]RemediationEntry, error) {
	if transceiverID < 0 {
		return nil, fmt.Errorf("transceiver id must be non-negative")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transceiver_id, remediation_count, created_at
		 FROM remediation_log
		 WHERE transceiver_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		transceiverID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying remediations: %w", err)
	}
	defer rows.Close()

	entries := make([]RemediationEntry, 0, limit)
	for rows.Next() {
		var entry RemediationEntry
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.TransceiverID, &entry.RemediationCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning remediation: %w", err)
		}

		timestamp, err := parseHistoryTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating remediations: %w", err)
	}

	return entries, nil
}

// PruneTransitions deletes transition entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) PruneTransitions(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM transceiver_transitions WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting transitions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
