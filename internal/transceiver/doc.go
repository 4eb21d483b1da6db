// Package transceiver implements the per-module lifecycle runtime for
// pluggable optical transceivers.
//
// Each physical slot gets three cooperating pieces:
//
//   - StateMachine: a small event-driven lifecycle automaton that tracks
//     where the module is in the detect → discover → program pipeline
//     and which programming stages have completed.
//   - Controller: the mutex-owning orchestrator for one module. It runs
//     the refresh cycle (presence detection, EEPROM fetch, snapshot
//     reassembly), applies speed-dependent settings, programs the
//     module, and performs time-gated remediation. Every public
//     operation holds the module lock end to end.
//   - Executor: an optional per-bus worker that serialises hardware
//     access for platforms whose transceiver bus cannot tolerate
//     concurrent callers.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                       fleet.Manager                          │
//	│   (owns one StateMachine + one Controller per slot)          │
//	└───────┬──────────────────────┬───────────────────────────────┘
//	        │ events               │ refresh / program / remediate
//	        ▼                      ▼
//	┌───────────────┐      ┌───────────────┐      ┌───────────────┐
//	│ StateMachine  │◀─────│  Controller   │─────▶│   Executor    │
//	│ (statemachine │      │ (controller   │      │   (bus.go)    │
//	│     .go)      │      │     .go)      │      └───────┬───────┘
//	└───────────────┘      └───────┬───────┘              │
//	                               │                      ▼
//	                               ▼              ┌───────────────┐
//	                       ┌───────────────┐      │ ModuleDriver  │
//	                       │   Snapshot    │      │  (hardware)   │
//	                       │  + sticky     │      └───────────────┘
//	                       │ accumulators  │
//	                       └───────────────┘
//
// # Key Types
//
//   - Snapshot: the externally visible telemetry record for one module
//   - SignalFlags / ModuleStatus: sticky read-and-clear accumulators
//   - PrbsStats: differentially merged PRBS diagnostics per side
//   - RemediationPolicy: the pure time-gated remediation decision
//   - ModuleDriver: the hardware access contract a platform implements
//
// # Usage
//
//	ctrl := transceiver.NewController(id, driver, sink, transceiver.Config{
//	    RefreshCooldown:          10 * time.Second,
//	    RemediateInterval:        5 * time.Minute,
//	    InitialRemediateInterval: 6 * time.Minute,
//	}, transceiver.WithLogger(log))
//
//	// Periodic driver loop.
//	if err := ctrl.Refresh(); err != nil {
//	    log.Warn("refresh failed", "error", err)
//	}
//
//	// Port brought up: program the module for the negotiated speed.
//	if err := ctrl.ProgramTransceiver(transceiver.PortSpeed400G, false); err != nil {
//	    return err
//	}
//
//	// Link stuck down: attempt recovery if policy allows.
//	if ctrl.TryRemediate() {
//	    log.Info("transceiver remediated")
//	}
//
// All Controller state is guarded by a single mutex, so callers may
// invoke any combination of operations from any goroutine. Operations
// that touch the hardware bus are additionally serialised through the
// driver's Executor when one is provided.
package transceiver
