package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/portlight/xcvrd/internal/history"
	"github.com/portlight/xcvrd/internal/infrastructure/config"
	"github.com/portlight/xcvrd/internal/infrastructure/influxdb"
	"github.com/portlight/xcvrd/internal/infrastructure/logging"
	"github.com/portlight/xcvrd/internal/infrastructure/mqtt"
	"github.com/portlight/xcvrd/internal/transceiver"
)

// ErrUnknownTransceiver is returned when an operation names a slot that
// was never registered.
var ErrUnknownTransceiver = errors.New("fleet: unknown transceiver")

// historyTimeout bounds SQLite writes triggered from the event path.
const historyTimeout = 5 * time.Second

// Deps are the optional infrastructure collaborators. Any field may be
// nil; the manager degrades to in-memory operation without it.
type Deps struct {
	MQTT    *mqtt.Client
	Influx  *influxdb.Client
	History history.Repository
}

// slot pairs a module's state machine with its controller.
type slot struct {
	machine    *transceiver.StateMachine
	controller *transceiver.Controller
	driver     transceiver.ModuleDriver
}

// Manager owns the per-slot state machines and controllers, implements
// the controller's event sink and the state machine's programming
// hooks, and runs the periodic refresh loop.
//
// Lock ordering: the manager mutex is never held across controller or
// state machine calls. Controllers call back into the manager (as
// EventSink) while holding their own lock, so the reverse order would
// deadlock.
type Manager struct {
	cfg    *config.Config
	logger *logging.Logger
	deps   Deps
	topics mqtt.Topics

	mu           sync.Mutex
	slots        map[transceiver.ID]*slot
	pauseUntil   time.Time
	portMappings map[transceiver.ID]map[transceiver.PortID]transceiver.ProfileID
	programXphy  func(transceiver.ID) error
}

// NewManager creates a manager with no registered slots.
func NewManager(cfg *config.Config, logger *logging.Logger, deps Deps) *Manager {
	return &Manager{
		cfg:          cfg,
		logger:       logger.With("component", "fleet"),
		deps:         deps,
		slots:        make(map[transceiver.ID]*slot),
		portMappings: make(map[transceiver.ID]map[transceiver.PortID]transceiver.ProfileID),
	}
}

// RegisterSlot creates the state machine and controller for a physical
// slot. It must be called before Start; registering the same slot twice
// is an error.
func (m *Manager) RegisterSlot(id transceiver.ID, driver transceiver.ModuleDriver) error {
	machine := transceiver.NewStateMachine(id, m)
	machine.SetLogger(m.logger)

	controller := transceiver.NewController(id, driver, m, transceiver.Config{
		RefreshCooldown:          m.cfg.RefreshCooldown(),
		CustomizeCooldown:        m.cfg.CustomizeCooldown(),
		RemediateInterval:        m.cfg.RemediateInterval(),
		InitialRemediateInterval: m.cfg.InitialRemediateInterval(),
	}, transceiver.WithLogger(m.logger.With("transceiver", int(id))))

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.slots[id]; exists {
		return fmt.Errorf("fleet: slot %d already registered", int(id))
	}

	m.slots[id] = &slot{
		machine:    machine,
		controller: controller,
		driver:     driver,
	}
	return nil
}

// IDs returns the registered slot numbers in ascending order.
func (m *Manager) IDs() []transceiver.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]transceiver.ID, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// lookup returns the slot for an id.
func (m *Manager) lookup(id transceiver.ID) (*slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	return s, ok
}

// snapshotSlots returns the registered slots in id order for iteration
// outside the manager lock.
func (m *Manager) snapshotSlots() []*slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]transceiver.ID, 0, len(m.slots))
	for id := range m.slots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	slots := make([]*slot, 0, len(ids))
	for _, id := range ids {
		slots = append(slots, m.slots[id])
	}
	return slots
}

// =============================================================================
// EventSink implementation
// =============================================================================

// UpdateStateBlocking applies a lifecycle event to the slot's state
// machine and fans the result out to history and MQTT. Controllers call
// it while holding their module lock, so it must not call back into the
// controller.
func (m *Manager) UpdateStateBlocking(id transceiver.ID, event transceiver.Event) transceiver.State {
	s, ok := m.lookup(id)
	if !ok {
		m.logger.Warn("event for unregistered slot",
			"transceiver", int(id),
			"event", event.String(),
		)
		return transceiver.StateNotPresent
	}

	from := s.machine.CurrentState()
	to := s.machine.Apply(event)

	if to != from {
		m.recordTransition(id, event, from, to)
		m.publishState(id, to)
	}
	m.publishEvent(id, event, to)

	return to
}

// PauseRemediationUntil returns the fleet-wide remediation pause
// deadline.
func (m *Manager) PauseRemediationUntil() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseUntil
}

// PauseRemediationFor suppresses remediation fleet-wide for the given
// duration from now.
func (m *Manager) PauseRemediationFor(d time.Duration) {
	deadline := time.Now().Add(d)

	m.mu.Lock()
	m.pauseUntil = deadline
	m.mu.Unlock()

	m.logger.Info("remediation paused fleet-wide",
		"until", deadline.UTC().Format(time.RFC3339),
	)
}

// =============================================================================
// Hooks implementation
// =============================================================================

// SetPortProfileMapping stores the port-to-profile mapping consulted by
// IPHY programming. An empty or nil mapping keeps EventProgramIphy a
// retryable no-op.
func (m *Manager) SetPortProfileMapping(id transceiver.ID, mapping map[transceiver.PortID]transceiver.ProfileID) {
	cpy := make(map[transceiver.PortID]transceiver.ProfileID, len(mapping))
	for port, profile := range mapping {
		cpy[port] = profile
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.portMappings[id] = cpy
}

// PortProfileMapping returns a copy of the stored mapping for the slot.
func (m *Manager) PortProfileMapping(id transceiver.ID) map[transceiver.PortID]transceiver.ProfileID {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping := m.portMappings[id]
	cpy := make(map[transceiver.PortID]transceiver.ProfileID, len(mapping))
	for port, profile := range mapping {
		cpy[port] = profile
	}
	return cpy
}

// SetXphyProgrammer installs the platform callback for external PHY
// programming. Without one, EventProgramXphy succeeds trivially.
func (m *Manager) SetXphyProgrammer(fn func(transceiver.ID) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programXphy = fn
}

// ProgramExternalPhy invokes the installed platform callback.
func (m *Manager) ProgramExternalPhy(id transceiver.ID) error {
	m.mu.Lock()
	fn := m.programXphy
	m.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(id)
}

// =============================================================================
// Query facade for the API layer
// =============================================================================

// State returns the lifecycle state of a slot.
func (m *Manager) State(id transceiver.ID) (transceiver.State, error) {
	s, ok := m.lookup(id)
	if !ok {
		return transceiver.StateNotPresent, ErrUnknownTransceiver
	}
	return s.machine.CurrentState(), nil
}

// TransceiverInfo returns the latest telemetry snapshot for a slot.
func (m *Manager) TransceiverInfo(id transceiver.ID) (*transceiver.Snapshot, error) {
	s, ok := m.lookup(id)
	if !ok {
		return nil, ErrUnknownTransceiver
	}
	return s.controller.TransceiverInfo()
}

// PrbsStats returns the accumulated PRBS statistics for one side of a
// slot.
func (m *Manager) PrbsStats(id transceiver.ID, side transceiver.Side) (transceiver.PrbsStats, error) {
	s, ok := m.lookup(id)
	if !ok {
		return transceiver.PrbsStats{}, ErrUnknownTransceiver
	}
	return s.controller.TransceiverPrbsStats(side), nil
}

// ClearPrbsStats resets the accumulated PRBS counters for one side of a
// slot.
func (m *Manager) ClearPrbsStats(id transceiver.ID, side transceiver.Side) error {
	s, ok := m.lookup(id)
	if !ok {
		return ErrUnknownTransceiver
	}
	s.controller.ClearTransceiverPrbsStats(side)
	return nil
}

// Refresh forces an immediate refresh of a slot, bypassing the periodic
// loop but not the per-module cooldown.
func (m *Manager) Refresh(id transceiver.ID) error {
	s, ok := m.lookup(id)
	if !ok {
		return ErrUnknownTransceiver
	}
	return <-s.controller.FutureRefresh()
}

// =============================================================================
// Refresh loop
// =============================================================================

// Start subscribes to command topics and runs the refresh loop until
// the context is cancelled. It blocks; run it in its own goroutine.
func (m *Manager) Start(ctx context.Context) error {
	if m.deps.MQTT != nil {
		topic := m.topics.CommandPauseRemediation()
		if err := m.deps.MQTT.Subscribe(topic, byte(m.cfg.MQTT.QoS), m.handlePauseCommand); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}

	ticker := time.NewTicker(m.cfg.RefreshInterval())
	defer ticker.Stop()

	m.logger.Info("refresh loop started",
		"interval", m.cfg.RefreshInterval().String(),
		"slots", len(m.IDs()),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("refresh loop stopped")
			return nil
		case <-ticker.C:
			m.runCycle()
		}
	}
}

// runCycle performs one fleet-wide refresh pass: refresh every slot,
// then run the post-refresh maintenance for each.
func (m *Manager) runCycle() {
	slots := m.snapshotSlots()

	// Kick off all refreshes first so slots with independent bus
	// executors overlap, then collect.
	futures := make([]<-chan error, len(slots))
	for i, s := range slots {
		futures[i] = s.controller.FutureRefresh()
	}
	for i, future := range futures {
		if err := <-future; err != nil {
			m.logger.Warn("refresh failed",
				"transceiver", int(slots[i].controller.ID()),
				"error", err,
			)
		}
	}

	for _, s := range slots {
		m.maintainSlot(s)
	}
}

// maintainSlot runs the post-refresh work for one slot: state machine
// progression, down-time marking, telemetry export, and remediation.
func (m *Manager) maintainSlot(s *slot) {
	id := s.controller.ID()

	// Drive programming forward. Both events are retryable no-ops when
	// their preconditions are not met.
	switch s.machine.CurrentState() {
	case transceiver.StateDiscovered:
		m.UpdateStateBlocking(id, transceiver.EventProgramIphy)
	case transceiver.StateIphyPortsProgrammed:
		m.UpdateStateBlocking(id, transceiver.EventProgramXphy)
	default:
	}

	// Port status is now known, so a pending down-time mark from
	// creation, discovery or removal can be stamped.
	if s.machine.TakeNeedMarkLastDownTime() {
		s.controller.MarkLastDownTime()
	}

	m.exportTelemetry(s)

	if s.controller.ShouldRemediate() && s.controller.TryRemediate() {
		m.recordRemediation(id, s.controller.RemediationCount())
	}
}

// exportTelemetry writes the slot's sensor and PRBS data to InfluxDB.
func (m *Manager) exportTelemetry(s *slot) {
	if m.deps.Influx == nil {
		return
	}

	id := int(s.controller.ID())

	info, err := s.controller.TransceiverInfo()
	if err != nil || !info.Present {
		return
	}

	// Writes are batched and asynchronous; failures surface through the
	// client's error callback.
	if info.Sensor != nil {
		m.deps.Influx.WriteModuleSensors(id, info.Sensor.TemperatureCelsius, info.Sensor.SupplyVoltage)
	}

	if info.VdmStats != nil {
		v := info.VdmStats
		m.deps.Influx.WriteVdmStats(id, v.PreFecBerMediaAvg, v.PreFecBerMediaMax, v.PreFecBerHostAvg, v.PreFecBerHostMax)
	}

	for _, side := range []transceiver.Side{transceiver.SideSystem, transceiver.SideLine} {
		stats := s.controller.TransceiverPrbsStats(side)
		for _, lane := range stats.Lanes {
			m.deps.Influx.WriteLaneBER(id, side.String(), lane.Lane, lane.BER, lane.MaxBER, lane.Locked)
		}
	}
}

// =============================================================================
// Fan-out helpers
// =============================================================================

// transitionPayload is the JSON body published on state and event
// topics.
type transitionPayload struct {
	TransceiverID int    `json:"transceiver_id"`
	Event         string `json:"event,omitempty"`
	State         string `json:"state"`
	At            string `json:"at"`
}

// recordTransition persists a state change to the history store.
func (m *Manager) recordTransition(id transceiver.ID, event transceiver.Event, from, to transceiver.State) {
	if m.deps.History == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	if err := m.deps.History.RecordTransition(ctx, int(id), event.String(), from.String(), to.String()); err != nil {
		m.logger.Error("recording transition failed",
			"transceiver", int(id),
			"event", event.String(),
			"error", err,
		)
	}
}

// recordRemediation persists and publishes a remediation action.
func (m *Manager) recordRemediation(id transceiver.ID, count int) {
	m.logger.Info("module remediated",
		"transceiver", int(id),
		"count", count,
	)

	if m.deps.History != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		if err := m.deps.History.RecordRemediation(ctx, int(id), count); err != nil {
			m.logger.Error("recording remediation failed", "transceiver", int(id), "error", err)
		}
		cancel()
	}

	if m.deps.Influx != nil {
		m.deps.Influx.WriteRemediationCount(int(id), count)
	}

	if m.deps.MQTT != nil {
		payload, err := json.Marshal(map[string]any{
			"transceiver_id":    int(id),
			"remediation_count": count,
			"at":                time.Now().UTC().Format(time.RFC3339),
		})
		if err == nil {
			//nolint:errcheck // publish failure is already logged by the client
			m.deps.MQTT.Publish(m.topics.TransceiverRemediation(int(id)), payload, byte(m.cfg.MQTT.QoS), false)
		}
	}
}

// publishState publishes the retained lifecycle state for a slot.
func (m *Manager) publishState(id transceiver.ID, state transceiver.State) {
	if m.deps.MQTT == nil {
		return
	}

	payload, err := json.Marshal(transitionPayload{
		TransceiverID: int(id),
		State:         state.String(),
		At:            time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	//nolint:errcheck // publish failure is already logged by the client
	m.deps.MQTT.Publish(m.topics.TransceiverState(int(id)), payload, byte(m.cfg.MQTT.QoS), true)
}

// publishEvent publishes a transient lifecycle event for a slot.
func (m *Manager) publishEvent(id transceiver.ID, event transceiver.Event, state transceiver.State) {
	if m.deps.MQTT == nil {
		return
	}

	payload, err := json.Marshal(transitionPayload{
		TransceiverID: int(id),
		Event:         event.String(),
		State:         state.String(),
		At:            time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}

	//nolint:errcheck // publish failure is already logged by the client
	m.deps.MQTT.Publish(m.topics.TransceiverEvent(int(id)), payload, byte(m.cfg.MQTT.QoS), false)
}

// pauseCommand is the JSON body accepted on the pause-remediation
// command topic.
type pauseCommand struct {
	Seconds int `json:"seconds"`
}

// handlePauseCommand processes a fleet-wide remediation pause request.
func (m *Manager) handlePauseCommand(topic string, payload []byte) error {
	var cmd pauseCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parsing pause command: %w", err)
	}
	if cmd.Seconds <= 0 {
		return fmt.Errorf("pause command seconds must be positive, got %d", cmd.Seconds)
	}

	m.PauseRemediationFor(time.Duration(cmd.Seconds) * time.Second)
	return nil
}

// Close tears down every slot: each controller emits its removal event
// and the slot's bus executor, when present, is drained and stopped.
func (m *Manager) Close() {
	for _, s := range m.snapshotSlots() {
		s.controller.Close()
		if ex := s.driver.BusExecutor(); ex != nil {
			ex.Close()
		}
	}
}
