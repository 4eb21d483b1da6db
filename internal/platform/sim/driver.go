package sim

import (
	"sync"

	"github.com/portlight/xcvrd/internal/transceiver"
)

// Config controls the simulated module.
type Config struct {
	// Present seats a module in the slot at startup.
	Present bool

	// SerializeBus gives the driver its own bus executor, mirroring
	// platforms whose module bus tolerates only one transaction at a
	// time.
	SerializeBus bool

	// Vendor overrides the default simulated vendor identity.
	Vendor *transceiver.VendorInfo
}

// Driver is an in-memory ModuleDriver that simulates a 400G-DR4 optical
// module. It exists so the daemon and its tests can run without slot
// hardware; per-call data is deterministic apart from a small
// temperature walk.
//
// Insert and Remove toggle seating at runtime, which the controller
// observes as presence flips on its next refresh.
type Driver struct {
	mu       sync.Mutex
	present  bool
	vendor   transceiver.VendorInfo
	executor *transceiver.Executor

	refreshes int
	prbs      map[transceiver.Side]prbsSideState
}

type prbsSideState struct {
	state transceiver.PrbsState
	stats transceiver.PrbsStats
}

// New creates a simulated driver.
func New(cfg Config) *Driver {
	d := &Driver{
		present: cfg.Present,
		vendor: transceiver.VendorInfo{
			Name:         "SIMCO",
			PartNumber:   "SIM-400G-DR4",
			SerialNumber: "SIM0001",
			Revision:     "A0",
			DateCode:     "260830",
		},
		prbs: make(map[transceiver.Side]prbsSideState),
	}
	if cfg.Vendor != nil {
		d.vendor = *cfg.Vendor
	}
	if cfg.SerializeBus {
		d.executor = transceiver.NewExecutor()
	}
	return d
}

// Insert seats a module in the slot.
func (d *Driver) Insert() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present = true
}

// Remove unseats the module.
func (d *Driver) Remove() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present = false
}

func (d *Driver) DetectPresence() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.present
}

func (d *Driver) UpdateData(bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshes++
	return nil
}

func (d *Driver) EnsureOutOfReset() error { return nil }

func (d *Driver) ReadRaw(io transceiver.RegisterIO) ([]byte, error) {
	// The simulated register map reads as zeroes.
	return make([]byte, io.Length), nil
}

func (d *Driver) WriteRaw(transceiver.RegisterIO, byte) error { return nil }

func (d *Driver) BusExecutor() *transceiver.Executor { return d.executor }

func (d *Driver) VendorInfo() (transceiver.VendorInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vendor, d.present
}

func (d *Driver) CableInfo() (transceiver.CableInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return transceiver.CableInfo{
		LengthMeters: 500,
		Technology:   transceiver.TechnologyOptical,
	}, d.present
}

func (d *Driver) SensorInfo() (transceiver.SensorInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Temperature walks a half-degree sawtooth so exported telemetry
	// is visibly alive.
	return transceiver.SensorInfo{
		TemperatureCelsius: 42.0 + float64(d.refreshes%5)*0.1,
		SupplyVoltage:      3.3,
	}, d.present
}

func (d *Driver) MediaLaneSignals() ([]transceiver.MediaLaneSignal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.present {
		return nil, false
	}
	return []transceiver.MediaLaneSignal{
		{Lane: 0}, {Lane: 1}, {Lane: 2}, {Lane: 3},
	}, true
}

func (d *Driver) HostLaneSignals() ([]transceiver.HostLaneSignal, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.present {
		return nil, false
	}
	return []transceiver.HostLaneSignal{
		{Lane: 0}, {Lane: 1}, {Lane: 2}, {Lane: 3},
		{Lane: 4}, {Lane: 5}, {Lane: 6}, {Lane: 7},
	}, true
}

func (d *Driver) SignalFlags() (transceiver.SignalFlags, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return transceiver.SignalFlags{}, d.present
}

func (d *Driver) ModuleStatus() (transceiver.ModuleStatus, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return transceiver.ModuleStatus{}, d.present
}

func (d *Driver) VdmStats() (transceiver.VdmStats, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.present {
		return transceiver.VdmStats{}, false
	}
	return transceiver.VdmStats{
		PreFecBerMediaAvg: 1.2e-8,
		PreFecBerMediaMax: 3.4e-8,
		PreFecBerHostAvg:  0.8e-8,
		PreFecBerHostMax:  1.1e-8,
	}, true
}

func (d *Driver) MediaInterface() string { return "400G-DR4" }

func (d *Driver) TransmitterTechnology() transceiver.TransmitterTechnology {
	return transceiver.TechnologyOptical
}

func (d *Driver) VerifyChecksums() bool { return true }

// SetPrbs configures the simulated PRBS state and stats for one side.
// Tests and demos use it to model generator and checker activity.
func (d *Driver) SetPrbs(side transceiver.Side, state transceiver.PrbsState, stats transceiver.PrbsStats) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prbs[side] = prbsSideState{state: state, stats: stats}
}

func (d *Driver) PrbsState(side transceiver.Side) transceiver.PrbsState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prbs[side].state
}

func (d *Driver) SamplePrbsStats(side transceiver.Side, _ bool) transceiver.PrbsStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prbs[side].stats.DeepCopy()
}

func (d *Driver) SetPowerOverride() error                   { return nil }
func (d *Driver) SetCdr(transceiver.PortSpeed) error        { return nil }
func (d *Driver) SetRateSelect(transceiver.PortSpeed) error { return nil }
func (d *Driver) ConfigureModule() error                    { return nil }
func (d *Driver) EnsureRxOutputSquelchEnabled() error       { return nil }
func (d *Driver) ResetDataPath() error                      { return nil }

func (d *Driver) SupportsRemediation() bool { return true }

// Remediate power-cycles the simulated module, which in hardware would
// bounce the link.
func (d *Driver) Remediate() error { return nil }
