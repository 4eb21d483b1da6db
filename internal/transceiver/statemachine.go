package transceiver

import "sync"

// State is the externally observable lifecycle state of a module.
// The initial state is StateNotPresent. States never regress except
// via EventRemoveTransceiver.
type State int

// Lifecycle states. The programming sequence after discovery is
// IPHY then XPHY then the transceiver itself.
const (
	StateNotPresent State = iota
	StatePresent
	StateDiscovered
	StateIphyPortsProgrammed
	StateXphyPortsProgrammed
	StateTransceiverProgrammed
	StateActive
	StateInactive
	StateUpgrading
)

// String returns the state name for logging and API responses.
func (s State) String() string {
	switch s {
	case StateNotPresent:
		return "NOT_PRESENT"
	case StatePresent:
		return "PRESENT"
	case StateDiscovered:
		return "DISCOVERED"
	case StateIphyPortsProgrammed:
		return "IPHY_PORTS_PROGRAMMED"
	case StateXphyPortsProgrammed:
		return "XPHY_PORTS_PROGRAMMED"
	case StateTransceiverProgrammed:
		return "TRANSCEIVER_PROGRAMMED"
	case StateActive:
		return "ACTIVE"
	case StateInactive:
		return "INACTIVE"
	case StateUpgrading:
		return "UPGRADING"
	default:
		return "UNKNOWN"
	}
}

// Event is a discrete lifecycle event applied to a module's state machine.
type Event int

// Lifecycle events. EventProgramTransceiver is declared because the
// state exists, but no transition is defined for it yet; applying it
// is always a no-op.
const (
	EventDetectTransceiver Event = iota
	EventRemoveTransceiver
	EventReadEEPROM
	EventProgramIphy
	EventProgramXphy
	EventProgramTransceiver
)

// String returns the event name for logging and history records.
func (e Event) String() string {
	switch e {
	case EventDetectTransceiver:
		return "DETECT_TRANSCEIVER"
	case EventRemoveTransceiver:
		return "REMOVE_TRANSCEIVER"
	case EventReadEEPROM:
		return "READ_EEPROM"
	case EventProgramIphy:
		return "PROGRAM_IPHY"
	case EventProgramXphy:
		return "PROGRAM_XPHY"
	case EventProgramTransceiver:
		return "PROGRAM_TRANSCEIVER"
	default:
		return "UNKNOWN"
	}
}

// Flags are the named attributes carried alongside the lifecycle state.
// They are reset as a group when a module is discovered or removed.
type Flags struct {
	IphyProgrammed        bool
	XphyProgrammed        bool
	TransceiverProgrammed bool

	// NeedMarkLastDownTime tells the fleet driver to record the link
	// down time once port status is known after (re)discovery.
	NeedMarkLastDownTime bool

	// NeedResetDataPath tells the next transceiver programming pass to
	// reset the module data path.
	NeedResetDataPath bool
}

// defaultFlags returns the flags a freshly created or removed module
// carries.
func defaultFlags() Flags {
	return Flags{NeedMarkLastDownTime: true}
}

// Hooks are the external collaborators consulted while applying
// programming events. They are implemented by the fleet driver.
type Hooks interface {
	// PortProfileMapping returns the port-to-profile mapping for the
	// module, or an empty map when no mapping is available yet. A
	// missing mapping makes EventProgramIphy a no-op that can be
	// retried later.
	PortProfileMapping(id ID) map[PortID]ProfileID

	// ProgramExternalPhy programs the external PHY for the module's
	// ports. A returned error is treated as transient: the state is
	// left unchanged and the event can be retried.
	ProgramExternalPhy(id ID) error
}

// StateMachine is the event-driven lifecycle state machine for one
// module. It is driven externally via Apply; the ModuleController
// reports presence and discovery events into it through the fleet
// driver.
//
// Transitions that are not defined for the current state are silent
// no-ops, so a driver can issue events speculatively without guarding
// on the current state.
//
// All methods are safe for concurrent use.
type StateMachine struct {
	id    ID
	hooks Hooks

	mu              sync.Mutex
	state           State
	flags           Flags
	programmedPorts map[PortID]ProfileID

	logger Logger
}

// NewStateMachine creates a state machine for the given module in
// StateNotPresent with default flags.
func NewStateMachine(id ID, hooks Hooks) *StateMachine {
	return &StateMachine{
		id:     id,
		hooks:  hooks,
		state:  StateNotPresent,
		flags:  defaultFlags(),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the state machine.
func (m *StateMachine) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// CurrentState returns the current lifecycle state.
func (m *StateMachine) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Flags returns a copy of the current attribute flags.
func (m *StateMachine) Flags() Flags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags
}

// TakeNeedMarkLastDownTime reports whether the module's link down time
// still needs recording and clears the flag. The fleet driver consumes
// it once port status is known after a refresh; the flag is re-armed by
// discovery and removal.
func (m *StateMachine) TakeNeedMarkLastDownTime() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	taken := m.flags.NeedMarkLastDownTime
	m.flags.NeedMarkLastDownTime = false
	return taken
}

// ProgrammedPorts returns a copy of the port-to-profile pairs applied
// by the most recent successful EventProgramIphy. The map is empty
// until IPHY programming succeeds and after discovery or removal.
func (m *StateMachine) ProgrammedPorts() map[PortID]ProfileID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ports := make(map[PortID]ProfileID, len(m.programmedPorts))
	for port, profile := range m.programmedPorts {
		ports[port] = profile
	}
	return ports
}

// Apply applies a lifecycle event and returns the resulting state.
// It is synchronous: when it returns, the transition (or its
// rejection) has been fully applied.
func (m *StateMachine) Apply(event Event) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state

	switch event {
	case EventDetectTransceiver:
		m.applyDetect()
	case EventRemoveTransceiver:
		m.applyRemove()
	case EventReadEEPROM:
		m.applyReadEEPROM()
	case EventProgramIphy:
		m.applyProgramIphy()
	case EventProgramXphy:
		m.applyProgramXphy()
	default:
		// Declared-but-unspecified events (PROGRAM_TRANSCEIVER and the
		// bring-up/reset family) have no transitions yet.
	}

	if m.state != from {
		m.logger.Info("lifecycle state changed",
			"transceiver", int(m.id),
			"event", event.String(),
			"from", from.String(),
			"to", m.state.String(),
		)
	}

	return m.state
}

// applyDetect handles EventDetectTransceiver. Only NOT_PRESENT accepts
// it; every other state is already past detection.
func (m *StateMachine) applyDetect() {
	if m.state != StateNotPresent {
		return
	}
	m.state = StatePresent
}

// applyRemove handles EventRemoveTransceiver. Any present state returns
// to NOT_PRESENT with all attributes reset.
func (m *StateMachine) applyRemove() {
	if m.state == StateNotPresent {
		return
	}
	m.state = StateNotPresent
	m.flags = defaultFlags()
	m.programmedPorts = nil
}

// applyReadEEPROM handles EventReadEEPROM. Discovery resets the
// programming attributes so that ports are reprogrammed for the (new)
// module regardless of what was programmed before.
func (m *StateMachine) applyReadEEPROM() {
	if m.state != StatePresent {
		return
	}
	m.state = StateDiscovered
	m.flags.IphyProgrammed = false
	m.flags.XphyProgrammed = false
	m.flags.TransceiverProgrammed = false
	m.flags.NeedMarkLastDownTime = true
	m.programmedPorts = nil
}

// applyProgramIphy handles EventProgramIphy. Both NOT_PRESENT and
// DISCOVERED accept it: an absent module can still have its internal
// PHY ports programmed ahead of insertion. Without a port-to-profile
// mapping the event is a no-op; supplying the mapping and reapplying
// the event succeeds.
func (m *StateMachine) applyProgramIphy() {
	if m.state != StateNotPresent && m.state != StateDiscovered {
		return
	}

	mapping := m.hooks.PortProfileMapping(m.id)
	if len(mapping) == 0 {
		m.logger.Debug("iphy programming skipped, no port mapping",
			"transceiver", int(m.id),
		)
		return
	}

	ports := make(map[PortID]ProfileID, len(mapping))
	for port, profile := range mapping {
		ports[port] = profile
	}

	m.programmedPorts = ports
	m.flags.IphyProgrammed = true
	m.state = StateIphyPortsProgrammed
}

// applyProgramXphy handles EventProgramXphy. A failed external call is
// transient: state and flags are untouched and the event can be
// retried.
func (m *StateMachine) applyProgramXphy() {
	if m.state != StateIphyPortsProgrammed {
		return
	}

	if err := m.hooks.ProgramExternalPhy(m.id); err != nil {
		m.logger.Warn("xphy programming failed",
			"transceiver", int(m.id),
			"error", err,
		)
		return
	}

	m.flags.XphyProgrammed = true
	m.state = StateXphyPortsProgrammed
}
