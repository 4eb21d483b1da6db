package transceiver

import "time"

// RegisterIO addresses a raw register access. Page is optional; when
// set, the page-select byte is written before the offset is accessed.
type RegisterIO struct {
	Page   *uint8
	Offset int
	Length int
}

// ModuleDriver is the vendor-specific I/O backend for one physical
// module. It owns the raw register map and its parsing; the controller
// only sees structured values.
//
// Structured getters read from the driver's raw-data cache, which is
// filled by UpdateData. Getters returning a bool report false when the
// relevant pages have not been read or the module does not implement
// them. None of the methods lock; the controller serializes access
// through its own mutex, and raw bus traffic is additionally routed
// through BusExecutor when one exists.
type ModuleDriver interface {
	// DetectPresence reports whether a module is physically seated.
	DetectPresence() bool

	// UpdateData refreshes the driver's raw-data cache from the bus.
	// allPages includes the slow capability-discovery pages; partial
	// updates refresh only the frequently changing pages.
	UpdateData(allPages bool) error

	// EnsureOutOfReset clears the module reset register before a full
	// data read.
	EnsureOutOfReset() error

	// ReadRaw reads length bytes at the addressed register. WriteRaw
	// writes a single byte. Both select the page first when io.Page is
	// set.
	ReadRaw(io RegisterIO) ([]byte, error)
	WriteRaw(io RegisterIO, value byte) error

	// BusExecutor returns the module's bus serialization executor, or
	// nil when the platform executes bus transactions inline.
	BusExecutor() *Executor

	// Structured telemetry getters.
	VendorInfo() (VendorInfo, bool)
	CableInfo() (CableInfo, bool)
	SensorInfo() (SensorInfo, bool)
	MediaLaneSignals() ([]MediaLaneSignal, bool)
	HostLaneSignals() ([]HostLaneSignal, bool)
	SignalFlags() (SignalFlags, bool)
	ModuleStatus() (ModuleStatus, bool)
	VdmStats() (VdmStats, bool)
	MediaInterface() string
	TransmitterTechnology() TransmitterTechnology
	VerifyChecksums() bool

	// PRBS state and sampling.
	PrbsState(side Side) PrbsState
	SamplePrbsStats(side Side, checkerEnabled bool) PrbsStats

	// Programming primitives, applied in the order the controller
	// calls them during customize/program.
	SetPowerOverride() error
	SetCdr(speed PortSpeed) error
	SetRateSelect(speed PortSpeed) error
	ConfigureModule() error
	EnsureRxOutputSquelchEnabled() error
	ResetDataPath() error

	// Remediation capability and action. Remediate returns nil only
	// when the destructive action was actually performed.
	SupportsRemediation() bool
	Remediate() error
}

// EventSink is the fleet driver's state machine entry point. The
// controller reports presence and discovery events into it while
// holding the module lock.
type EventSink interface {
	// UpdateStateBlocking applies a lifecycle event to the module's
	// state machine and returns once the transition (or its rejection)
	// has been applied.
	UpdateStateBlocking(id ID, event Event) State

	// PauseRemediationUntil returns the fleet-wide remediation pause
	// deadline.
	PauseRemediationUntil() time.Time
}
