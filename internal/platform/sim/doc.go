// Package sim provides a simulated ModuleDriver.
//
// The simulated driver stands in for real slot hardware so the daemon
// can run end to end on a development machine: modules can be inserted
// and removed at runtime, sensors report plausible values, and PRBS
// state is scriptable. It is also the driver used by tests above the
// transceiver package.
package sim
