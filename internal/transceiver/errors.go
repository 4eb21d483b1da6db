package transceiver

import "errors"

// Domain errors for the transceiver package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, transceiver.ErrStaleCache) {
//	    // refresh before programming
//	}
var (
	// ErrSnapshotNotReady is returned by TransceiverInfo when no snapshot
	// has ever been assembled (the module was never successfully refreshed).
	ErrSnapshotNotReady = errors.New("transceiver: snapshot not yet populated")

	// ErrStaleCache is returned when programming is attempted while the
	// cached module data is invalid (absent module or dirty cache).
	ErrStaleCache = errors.New("transceiver: cache is not valid")

	// ErrNotPresent is returned by write operations that require a
	// physically present module.
	ErrNotPresent = errors.New("transceiver: module not present")

	// ErrExecutorClosed is returned when submitting work to a bus
	// executor that has been shut down.
	ErrExecutorClosed = errors.New("transceiver: bus executor closed")
)
