package sim

import (
	"testing"

	"github.com/portlight/xcvrd/internal/transceiver"
)

func TestInsertRemove(t *testing.T) {
	d := New(Config{})
	if d.DetectPresence() {
		t.Error("empty slot reports present")
	}

	d.Insert()
	if !d.DetectPresence() {
		t.Error("inserted module reports absent")
	}
	if _, ok := d.VendorInfo(); !ok {
		t.Error("inserted module has no vendor info")
	}

	d.Remove()
	if d.DetectPresence() {
		t.Error("removed module reports present")
	}
	if _, ok := d.SensorInfo(); ok {
		t.Error("removed module reports sensors")
	}
}

func TestSerializeBus(t *testing.T) {
	if ex := New(Config{}).BusExecutor(); ex != nil {
		t.Error("executor created without SerializeBus")
	}

	d := New(Config{SerializeBus: true})
	ex := d.BusExecutor()
	if ex == nil {
		t.Fatal("SerializeBus did not create an executor")
	}
	defer ex.Close()

	if err := ex.Submit(func() error { return nil }); err != nil {
		t.Errorf("Submit() error = %v", err)
	}
}

func TestSetPrbs(t *testing.T) {
	d := New(Config{Present: true})

	d.SetPrbs(transceiver.SideLine,
		transceiver.PrbsState{CheckerEnabled: true},
		transceiver.PrbsStats{Lanes: []transceiver.PrbsLaneStats{{Lane: 0, Locked: true, BER: 1e-9}}},
	)

	if !d.PrbsState(transceiver.SideLine).CheckerEnabled {
		t.Error("checker state not stored")
	}

	stats := d.SamplePrbsStats(transceiver.SideLine, true)
	if len(stats.Lanes) != 1 || stats.Lanes[0].BER != 1e-9 {
		t.Errorf("stats = %+v, want one lane at 1e-9", stats)
	}

	// Samples must be independent copies.
	stats.Lanes[0].BER = 1
	if d.SamplePrbsStats(transceiver.SideLine, true).Lanes[0].BER != 1e-9 {
		t.Error("sample mutation leaked into driver state")
	}
}
