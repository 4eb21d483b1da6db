// Package history persists transceiver lifecycle history to SQLite.
//
// Two tables are maintained:
//   - transceiver_transitions records every lifecycle state change
//   - remediation_log records every destructive recovery action
//
// The repository is the local audit trail for a slot. It answers "what
// happened to module 4 overnight" without depending on the time-series
// database being reachable.
//
// # Usage
//
//	repo := history.NewSQLiteRepository(db.DB)
//	err := repo.RecordTransition(ctx, 4, "READ_EEPROM", "PRESENT", "DISCOVERED")
//	entries, err := repo.GetTransitions(ctx, 4, 50)
//
// All timestamps are stored as UTC RFC3339 text, matching the schema
// defaults in migrations/.
package history
