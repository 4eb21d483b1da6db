// Package fleet glues the per-slot transceiver machinery to the daemon.
//
// The Manager owns one StateMachine and one ModuleController per
// physical slot. It implements the controller's EventSink (lifecycle
// events flow through it into the state machine, SQLite history, and
// MQTT) and the state machine's Hooks (port-to-profile mappings and
// external PHY programming supplied by the platform layer).
//
// Start runs the periodic refresh loop: every refresh interval each
// slot is refreshed through its bus executor, the state machine is
// nudged forward through its programming events, telemetry is exported
// to InfluxDB, and overdue modules are remediated.
//
// Remediation can be paused fleet-wide via PauseRemediationFor, or
// remotely by publishing {"seconds": N} to the pause-remediation
// command topic.
package fleet
