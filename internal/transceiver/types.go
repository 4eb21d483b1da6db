package transceiver

import "time"

// ID identifies a transceiver by its physical port cage index.
// IDs are assigned by the platform layer and are stable for the life
// of the process.
type ID int

// PortID identifies a front-panel port carried by a transceiver.
type PortID int

// ProfileID names the port profile (speed/modulation/FEC combination)
// a port is programmed with.
type ProfileID string

// Side selects which side of the module a PRBS or lane operation
// applies to.
type Side int

// Module sides.
const (
	// SideSystem is the host-facing (electrical) side.
	SideSystem Side = iota

	// SideLine is the media-facing (optical) side.
	SideLine
)

// String returns the side name for logging and topic construction.
func (s Side) String() string {
	switch s {
	case SideSystem:
		return "system"
	case SideLine:
		return "line"
	default:
		return "unknown"
	}
}

// PortSpeed is a requested port speed in Mbps. PortSpeedDefault leaves
// speed-dependent settings (CDR, rate select) untouched.
type PortSpeed int

// Common port speeds.
const (
	PortSpeedDefault PortSpeed = 0
	PortSpeed100G    PortSpeed = 100000
	PortSpeed200G    PortSpeed = 200000
	PortSpeed400G    PortSpeed = 400000
)

// TransmitterTechnology classifies the module's physical medium.
// Copper modules have no tunable optics and are excluded from
// customization.
type TransmitterTechnology int

// Transmitter technologies.
const (
	TechnologyUnknown TransmitterTechnology = iota
	TechnologyOptical
	TechnologyCopper
)

// VendorInfo holds the vendor identity fields read from the module
// EEPROM during discovery.
type VendorInfo struct {
	Name         string `json:"name"`
	PartNumber   string `json:"part_number"`
	SerialNumber string `json:"serial_number"`
	Revision     string `json:"revision"`
	DateCode     string `json:"date_code"`
}

// CableInfo describes the attached cable or fibre.
type CableInfo struct {
	LengthMeters float64               `json:"length_meters"`
	Technology   TransmitterTechnology `json:"technology"`
}

// SensorInfo holds the module-level environmental sensors.
type SensorInfo struct {
	TemperatureCelsius float64 `json:"temperature_celsius"`
	SupplyVoltage      float64 `json:"supply_voltage"`
}

// MediaLaneSignal holds per-lane status bits on the media (optical) side.
type MediaLaneSignal struct {
	Lane    int  `json:"lane"`
	TxFault bool `json:"tx_fault"`
	RxLos   bool `json:"rx_los"`
}

// HostLaneSignal holds per-lane status bits on the host (electrical) side.
type HostLaneSignal struct {
	Lane  int  `json:"lane"`
	TxLos bool `json:"tx_los"`
	TxLol bool `json:"tx_lol"`
}

// SignalFlags holds edge-triggered loss-of-signal and loss-of-lock bits,
// one bit per lane. These are latched by hardware on a fault edge and are
// accumulated across refresh cycles until explicitly read and cleared.
type SignalFlags struct {
	TxLos uint32 `json:"tx_los"`
	RxLos uint32 `json:"rx_los"`
	TxLol uint32 `json:"tx_lol"`
	RxLol uint32 `json:"rx_lol"`
}

// ModuleStatus holds the module-level status bits sampled on each refresh.
type ModuleStatus struct {
	// StateChanged is set when the module firmware reported a state
	// transition since the previous read. Like signal flags, it is
	// sticky in the cache until read and cleared.
	StateChanged bool `json:"state_changed"`

	// InterruptAsserted mirrors the module interrupt pin.
	InterruptAsserted bool `json:"interrupt_asserted"`
}

// VdmStats holds versatile diagnostics monitoring values for modules
// that support VDM pages.
type VdmStats struct {
	PreFecBerMediaAvg float64 `json:"pre_fec_ber_media_avg"`
	PreFecBerMediaMax float64 `json:"pre_fec_ber_media_max"`
	PreFecBerHostAvg  float64 `json:"pre_fec_ber_host_avg"`
	PreFecBerHostMax  float64 `json:"pre_fec_ber_host_max"`
}

// Snapshot is the last fully assembled telemetry record for a module.
// It is replaced wholesale on each successful refresh. When the module
// is absent, only ID, Present and TimeCollected are meaningful.
type Snapshot struct {
	ID      ID   `json:"id"`
	Present bool `json:"present"`

	MediaInterface string `json:"media_interface,omitempty"`

	Vendor *VendorInfo `json:"vendor,omitempty"`
	Cable  *CableInfo  `json:"cable,omitempty"`
	Sensor *SensorInfo `json:"sensor,omitempty"`

	MediaLaneSignals []MediaLaneSignal `json:"media_lane_signals,omitempty"`
	HostLaneSignals  []HostLaneSignal  `json:"host_lane_signals,omitempty"`

	SignalFlags *SignalFlags  `json:"signal_flags,omitempty"`
	Status      *ModuleStatus `json:"status,omitempty"`
	VdmStats    *VdmStats     `json:"vdm_stats,omitempty"`

	TimeCollected       time.Time `json:"time_collected"`
	RemediationCount    int       `json:"remediation_count"`
	EEPROMChecksumValid bool      `json:"eeprom_checksum_valid"`
}

// DeepCopy creates an independent copy of the Snapshot. Slice and
// pointer fields are cloned so callers can safely hold the result
// after the controller replaces its cache.
func (s *Snapshot) DeepCopy() *Snapshot {
	if s == nil {
		return nil
	}

	cpy := *s

	if s.Vendor != nil {
		v := *s.Vendor
		cpy.Vendor = &v
	}
	if s.Cable != nil {
		c := *s.Cable
		cpy.Cable = &c
	}
	if s.Sensor != nil {
		sn := *s.Sensor
		cpy.Sensor = &sn
	}
	if s.SignalFlags != nil {
		f := *s.SignalFlags
		cpy.SignalFlags = &f
	}
	if s.Status != nil {
		st := *s.Status
		cpy.Status = &st
	}
	if s.VdmStats != nil {
		v := *s.VdmStats
		cpy.VdmStats = &v
	}

	if s.MediaLaneSignals != nil {
		cpy.MediaLaneSignals = make([]MediaLaneSignal, len(s.MediaLaneSignals))
		copy(cpy.MediaLaneSignals, s.MediaLaneSignals)
	}
	if s.HostLaneSignals != nil {
		cpy.HostLaneSignals = make([]HostLaneSignal, len(s.HostLaneSignals))
		copy(cpy.HostLaneSignals, s.HostLaneSignals)
	}

	return &cpy
}
