package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/portlight/xcvrd/internal/history"
	"github.com/portlight/xcvrd/internal/infrastructure/config"
	"github.com/portlight/xcvrd/internal/infrastructure/logging"
	"github.com/portlight/xcvrd/internal/transceiver"
)

// stubDriver is a minimal in-memory ModuleDriver for manager tests.
type stubDriver struct {
	present bool
}

func (d *stubDriver) DetectPresence() bool             { return d.present }
func (d *stubDriver) UpdateData(bool) error            { return nil }
func (d *stubDriver) EnsureOutOfReset() error          { return nil }
func (d *stubDriver) ReadRaw(transceiver.RegisterIO) ([]byte, error) { return nil, nil }
func (d *stubDriver) WriteRaw(transceiver.RegisterIO, byte) error    { return nil }
func (d *stubDriver) BusExecutor() *transceiver.Executor             { return nil }

func (d *stubDriver) VendorInfo() (transceiver.VendorInfo, bool) {
	return transceiver.VendorInfo{Name: "ACME"}, d.present
}
func (d *stubDriver) CableInfo() (transceiver.CableInfo, bool) {
	return transceiver.CableInfo{Technology: transceiver.TechnologyOptical}, d.present
}
func (d *stubDriver) SensorInfo() (transceiver.SensorInfo, bool) {
	return transceiver.SensorInfo{TemperatureCelsius: 40, SupplyVoltage: 3.3}, d.present
}
func (d *stubDriver) MediaLaneSignals() ([]transceiver.MediaLaneSignal, bool) { return nil, false }
func (d *stubDriver) HostLaneSignals() ([]transceiver.HostLaneSignal, bool)   { return nil, false }
func (d *stubDriver) SignalFlags() (transceiver.SignalFlags, bool) {
	return transceiver.SignalFlags{}, false
}
func (d *stubDriver) ModuleStatus() (transceiver.ModuleStatus, bool) {
	return transceiver.ModuleStatus{}, false
}
func (d *stubDriver) VdmStats() (transceiver.VdmStats, bool) { return transceiver.VdmStats{}, false }
func (d *stubDriver) MediaInterface() string                 { return "400G-DR4" }
func (d *stubDriver) TransmitterTechnology() transceiver.TransmitterTechnology {
	return transceiver.TechnologyOptical
}
func (d *stubDriver) VerifyChecksums() bool { return true }

func (d *stubDriver) PrbsState(transceiver.Side) transceiver.PrbsState {
	return transceiver.PrbsState{}
}
func (d *stubDriver) SamplePrbsStats(transceiver.Side, bool) transceiver.PrbsStats {
	return transceiver.PrbsStats{}
}

func (d *stubDriver) SetPowerOverride() error             { return nil }
func (d *stubDriver) SetCdr(transceiver.PortSpeed) error  { return nil }
func (d *stubDriver) SetRateSelect(transceiver.PortSpeed) error { return nil }
func (d *stubDriver) ConfigureModule() error              { return nil }
func (d *stubDriver) EnsureRxOutputSquelchEnabled() error { return nil }
func (d *stubDriver) ResetDataPath() error                { return nil }
func (d *stubDriver) SupportsRemediation() bool           { return false }
func (d *stubDriver) Remediate() error                    { return nil }

// recordingHistory is an in-memory history.Repository.
type recordingHistory struct {
	mu           sync.Mutex
	transitions  []history.TransitionEntry
	remediations []history.RemediationEntry
}

func (r *recordingHistory) RecordTransition(_ context.Context, id int, event, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, history.TransitionEntry{
		TransceiverID: id,
		Event:         event,
		FromState:     from,
		ToState:       to,
	})
	return nil
}

func (r *recordingHistory) GetTransitions(context.Context, int, int) ([]history.TransitionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]history.TransitionEntry(nil), r.transitions...), nil
}

func (r *recordingHistory) RecordRemediation(_ context.Context, id, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remediations = append(r.remediations, history.RemediationEntry{
		TransceiverID:    id,
		RemediationCount: count,
	})
	return nil
}

func (r *recordingHistory) GetRemediations(context.Context, int, int) ([]history.RemediationEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]history.RemediationEntry(nil), r.remediations...), nil
}

func testManagerConfig() *config.Config {
	return &config.Config{
		MQTT: config.MQTTConfig{QoS: 1},
		Refresh: config.RefreshConfig{
			IntervalSeconds: 5,
			CooldownSeconds: 10,
		},
		Remediation: config.RemediationConfig{
			IntervalSeconds:        300,
			InitialIntervalSeconds: 120,
		},
	}
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "json", Output: "stdout"}, "test")
}

func newTestManager(t *testing.T, deps Deps) *Manager {
	t.Helper()
	return NewManager(testManagerConfig(), testLogger(), deps)
}

func TestRegisterSlotDuplicate(t *testing.T) {
	m := newTestManager(t, Deps{})

	if err := m.RegisterSlot(4, &stubDriver{}); err != nil {
		t.Fatalf("RegisterSlot() error = %v", err)
	}
	if err := m.RegisterSlot(4, &stubDriver{}); err == nil {
		t.Error("RegisterSlot() duplicate, want error")
	}
}

func TestIDsSorted(t *testing.T) {
	m := newTestManager(t, Deps{})

	for _, id := range []transceiver.ID{9, 2, 5} {
		if err := m.RegisterSlot(id, &stubDriver{}); err != nil {
			t.Fatalf("RegisterSlot(%d) error = %v", id, err)
		}
	}

	ids := m.IDs()
	want := []transceiver.ID{2, 5, 9}
	if len(ids) != len(want) {
		t.Fatalf("IDs() length = %d, want %d", len(ids), len(want))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("IDs()[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

func TestUnknownTransceiver(t *testing.T) {
	m := newTestManager(t, Deps{})

	if _, err := m.State(99); !errors.Is(err, ErrUnknownTransceiver) {
		t.Errorf("State(99) error = %v, want ErrUnknownTransceiver", err)
	}
	if _, err := m.TransceiverInfo(99); !errors.Is(err, ErrUnknownTransceiver) {
		t.Errorf("TransceiverInfo(99) error = %v, want ErrUnknownTransceiver", err)
	}
	if _, err := m.PrbsStats(99, transceiver.SideLine); !errors.Is(err, ErrUnknownTransceiver) {
		t.Errorf("PrbsStats(99) error = %v, want ErrUnknownTransceiver", err)
	}
	if err := m.ClearPrbsStats(99, transceiver.SideLine); !errors.Is(err, ErrUnknownTransceiver) {
		t.Errorf("ClearPrbsStats(99) error = %v, want ErrUnknownTransceiver", err)
	}
	if err := m.Refresh(99); !errors.Is(err, ErrUnknownTransceiver) {
		t.Errorf("Refresh(99) error = %v, want ErrUnknownTransceiver", err)
	}
}

func TestUpdateStateUnregisteredSlot(t *testing.T) {
	m := newTestManager(t, Deps{})

	state := m.UpdateStateBlocking(99, transceiver.EventDetectTransceiver)
	if state != transceiver.StateNotPresent {
		t.Errorf("state = %v, want NOT_PRESENT", state)
	}
}

func TestDiscoveryRecordsTransitions(t *testing.T) {
	repo := &recordingHistory{}
	m := newTestManager(t, Deps{History: repo})

	if err := m.RegisterSlot(4, &stubDriver{present: true}); err != nil {
		t.Fatalf("RegisterSlot() error = %v", err)
	}

	if err := m.Refresh(4); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	state, err := m.State(4)
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state != transceiver.StateDiscovered {
		t.Errorf("state = %v, want DISCOVERED", state)
	}

	entries, _ := repo.GetTransitions(context.Background(), 4, 10)
	if len(entries) != 2 {
		t.Fatalf("transitions = %d, want 2", len(entries))
	}
	if entries[0].Event != "DETECT_TRANSCEIVER" || entries[0].ToState != "PRESENT" {
		t.Errorf("first transition = %+v, want DETECT_TRANSCEIVER to PRESENT", entries[0])
	}
	if entries[1].Event != "READ_EEPROM" || entries[1].ToState != "DISCOVERED" {
		t.Errorf("second transition = %+v, want READ_EEPROM to DISCOVERED", entries[1])
	}
}

func TestRunCycleDrivesProgramming(t *testing.T) {
	m := newTestManager(t, Deps{})

	if err := m.RegisterSlot(4, &stubDriver{present: true}); err != nil {
		t.Fatalf("RegisterSlot() error = %v", err)
	}
	m.SetPortProfileMapping(4, map[transceiver.PortID]transceiver.ProfileID{
		1: "PROFILE_400G_8_PAM4",
	})

	var xphyCalls int
	m.SetXphyProgrammer(func(transceiver.ID) error {
		xphyCalls++
		return nil
	})

	// First cycle: discovery plus IPHY programming.
	m.runCycle()

	state, _ := m.State(4)
	if state != transceiver.StateIphyPortsProgrammed {
		t.Fatalf("state after first cycle = %v, want IPHY_PORTS_PROGRAMMED", state)
	}

	// Second cycle: XPHY programming.
	m.runCycle()

	state, _ = m.State(4)
	if state != transceiver.StateXphyPortsProgrammed {
		t.Fatalf("state after second cycle = %v, want XPHY_PORTS_PROGRAMMED", state)
	}
	if xphyCalls != 1 {
		t.Errorf("xphy calls = %d, want 1", xphyCalls)
	}
}

func TestRunCycleConsumesDownTimeMark(t *testing.T) {
	m := newTestManager(t, Deps{})

	if err := m.RegisterSlot(4, &stubDriver{present: true}); err != nil {
		t.Fatalf("RegisterSlot() error = %v", err)
	}

	s, ok := m.lookup(4)
	if !ok {
		t.Fatal("registered slot not found")
	}
	if !s.machine.Flags().NeedMarkLastDownTime {
		t.Fatal("NeedMarkLastDownTime = false on a fresh slot, want true")
	}

	// The cycle stamps the down time and clears the flag.
	m.runCycle()
	if s.machine.Flags().NeedMarkLastDownTime {
		t.Error("NeedMarkLastDownTime = true after a cycle, want consumed")
	}

	// Removal re-arms the flag; the next cycle consumes it again.
	m.UpdateStateBlocking(4, transceiver.EventRemoveTransceiver)
	if !s.machine.Flags().NeedMarkLastDownTime {
		t.Fatal("NeedMarkLastDownTime = false after removal, want true")
	}
	m.runCycle()
	if s.machine.Flags().NeedMarkLastDownTime {
		t.Error("NeedMarkLastDownTime = true after rediscovery cycle, want consumed")
	}
}

func TestRunCycleIphyRetriesWithoutMapping(t *testing.T) {
	m := newTestManager(t, Deps{})

	if err := m.RegisterSlot(4, &stubDriver{present: true}); err != nil {
		t.Fatalf("RegisterSlot() error = %v", err)
	}

	m.runCycle()

	state, _ := m.State(4)
	if state != transceiver.StateDiscovered {
		t.Fatalf("state without mapping = %v, want DISCOVERED", state)
	}

	// Supplying the mapping lets the next cycle make progress.
	m.SetPortProfileMapping(4, map[transceiver.PortID]transceiver.ProfileID{
		1: "PROFILE_400G_8_PAM4",
	})
	m.runCycle()

	state, _ = m.State(4)
	if state != transceiver.StateIphyPortsProgrammed {
		t.Fatalf("state with mapping = %v, want IPHY_PORTS_PROGRAMMED", state)
	}
}

func TestXphyFailureRetried(t *testing.T) {
	m := newTestManager(t, Deps{})

	if err := m.RegisterSlot(4, &stubDriver{present: true}); err != nil {
		t.Fatalf("RegisterSlot() error = %v", err)
	}
	m.SetPortProfileMapping(4, map[transceiver.PortID]transceiver.ProfileID{
		1: "PROFILE_400G_8_PAM4",
	})

	xphyErr := errors.New("phy bus timeout")
	m.SetXphyProgrammer(func(transceiver.ID) error { return xphyErr })

	m.runCycle()
	m.runCycle()

	state, _ := m.State(4)
	if state != transceiver.StateIphyPortsProgrammed {
		t.Fatalf("state = %v, want IPHY_PORTS_PROGRAMMED while xphy fails", state)
	}

	m.SetXphyProgrammer(func(transceiver.ID) error { return nil })
	m.runCycle()

	state, _ = m.State(4)
	if state != transceiver.StateXphyPortsProgrammed {
		t.Fatalf("state = %v, want XPHY_PORTS_PROGRAMMED after xphy recovers", state)
	}
}

func TestPauseCommand(t *testing.T) {
	m := newTestManager(t, Deps{})

	if err := m.handlePauseCommand("xcvrd/command/pause-remediation", []byte(`{"seconds": 60}`)); err != nil {
		t.Fatalf("handlePauseCommand() error = %v", err)
	}

	until := m.PauseRemediationUntil()
	if until.Before(time.Now().Add(59 * time.Second)) {
		t.Errorf("pause deadline = %s, want about a minute out", until)
	}
}

func TestPauseCommandRejectsBadPayloads(t *testing.T) {
	m := newTestManager(t, Deps{})

	if err := m.handlePauseCommand("t", []byte(`not json`)); err == nil {
		t.Error("handlePauseCommand() with bad JSON, want error")
	}
	if err := m.handlePauseCommand("t", []byte(`{"seconds": 0}`)); err == nil {
		t.Error("handlePauseCommand() with zero seconds, want error")
	}
	if err := m.handlePauseCommand("t", []byte(`{"seconds": -5}`)); err == nil {
		t.Error("handlePauseCommand() with negative seconds, want error")
	}
	if !m.PauseRemediationUntil().IsZero() {
		t.Error("rejected commands must not set the pause deadline")
	}
}

func TestPortProfileMappingIsolation(t *testing.T) {
	m := newTestManager(t, Deps{})

	mapping := map[transceiver.PortID]transceiver.ProfileID{1: "PROFILE_A"}
	m.SetPortProfileMapping(4, mapping)
	mapping[2] = "PROFILE_B"

	got := m.PortProfileMapping(4)
	if len(got) != 1 {
		t.Errorf("mapping length = %d, want 1 (caller mutation leaked)", len(got))
	}

	got[3] = "PROFILE_C"
	if len(m.PortProfileMapping(4)) != 1 {
		t.Error("returned mapping is not a copy")
	}
}

func TestRecordRemediationFanOut(t *testing.T) {
	repo := &recordingHistory{}
	m := newTestManager(t, Deps{History: repo})

	m.recordRemediation(4, 2)

	entries, _ := repo.GetRemediations(context.Background(), 4, 10)
	if len(entries) != 1 {
		t.Fatalf("remediations = %d, want 1", len(entries))
	}
	if entries[0].TransceiverID != 4 || entries[0].RemediationCount != 2 {
		t.Errorf("entry = %+v, want id 4 count 2", entries[0])
	}
}

func TestCloseEmitsRemoval(t *testing.T) {
	repo := &recordingHistory{}
	m := newTestManager(t, Deps{History: repo})

	if err := m.RegisterSlot(4, &stubDriver{present: true}); err != nil {
		t.Fatalf("RegisterSlot() error = %v", err)
	}
	if err := m.Refresh(4); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	m.Close()

	state, _ := m.State(4)
	if state != transceiver.StateNotPresent {
		t.Errorf("state after Close = %v, want NOT_PRESENT", state)
	}

	entries, _ := repo.GetTransitions(context.Background(), 4, 10)
	last := entries[len(entries)-1]
	if last.Event != "REMOVE_TRANSCEIVER" || last.ToState != "NOT_PRESENT" {
		t.Errorf("last transition = %+v, want REMOVE_TRANSCEIVER to NOT_PRESENT", last)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	m := newTestManager(t, Deps{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Start(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
