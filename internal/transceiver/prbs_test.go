package transceiver

import (
	"math"
	"testing"
	"time"
)

var prbsBase = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

// sample builds a single-lane fresh sample at the given offset from the
// base time.
func sample(locked bool, ber float64, at time.Duration) PrbsStats {
	return PrbsStats{
		Side:          SideLine,
		Lanes:         []PrbsLaneStats{{Lane: 0, BER: ber, Locked: locked}},
		TimeCollected: prbsBase.Add(at),
	}
}

func TestMergePrbsStatsLossOfLock(t *testing.T) {
	tests := []struct {
		name       string
		prevLocked bool
		prevCount  int
		locked     bool
		wantCount  int
	}{
		{"locked to unlocked increments", true, 2, false, 3},
		{"stays locked carries", true, 2, true, 2},
		{"stays unlocked carries", false, 2, false, 2},
		{"unlocked to locked carries", false, 2, true, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := sample(tt.prevLocked, 0, 0)
			prev.Lanes[0].NumLossOfLock = tt.prevCount

			merged := MergePrbsStats(prev, sample(tt.locked, 0, time.Second))
			if got := merged.Lanes[0].NumLossOfLock; got != tt.wantCount {
				t.Errorf("NumLossOfLock = %d, want %d", got, tt.wantCount)
			}
		})
	}
}

func TestMergePrbsStatsIdempotent(t *testing.T) {
	// Merging the identical sample twice must not double-count edges.
	prev := sample(true, 1e-8, 0)
	prev.Lanes[0].NumLossOfLock = 1
	prev.Lanes[0].MaxBER = 1e-7

	fresh := sample(false, 1e-6, time.Second)
	once := MergePrbsStats(prev, fresh.DeepCopy())
	twice := MergePrbsStats(once, fresh.DeepCopy())

	if once.Lanes[0].NumLossOfLock != 2 {
		t.Errorf("first merge NumLossOfLock = %d, want 2", once.Lanes[0].NumLossOfLock)
	}
	if twice.Lanes[0].NumLossOfLock != 2 {
		t.Errorf("second merge NumLossOfLock = %d, want 2", twice.Lanes[0].NumLossOfLock)
	}
}

func TestMergePrbsStatsMaxBER(t *testing.T) {
	tests := []struct {
		name    string
		prevMax float64
		locked  bool
		ber     float64
		wantMax float64
	}{
		{"locked higher sample ratchets up", 1e-8, true, 1e-6, 1e-6},
		{"locked lower sample keeps max", 1e-6, true, 1e-9, 1e-6},
		{"unlocked sample never raises", 1e-8, false, 0.5, 1e-8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := sample(true, 0, 0)
			prev.Lanes[0].MaxBER = tt.prevMax

			merged := MergePrbsStats(prev, sample(tt.locked, tt.ber, time.Second))
			if got := merged.Lanes[0].MaxBER; got != tt.wantMax {
				t.Errorf("MaxBER = %g, want %g", got, tt.wantMax)
			}
		})
	}
}

func TestMergePrbsStatsLockTimestamp(t *testing.T) {
	lockedAt := prbsBase.Add(-time.Minute)

	t.Run("relock stamps fresh time", func(t *testing.T) {
		prev := sample(false, 0, 0)
		prev.Lanes[0].TimeSinceLastLocked = lockedAt

		merged := MergePrbsStats(prev, sample(true, 0, 5*time.Second))
		want := prbsBase.Add(5 * time.Second)
		if got := merged.Lanes[0].TimeSinceLastLocked; !got.Equal(want) {
			t.Errorf("TimeSinceLastLocked = %v, want %v", got, want)
		}
	})

	t.Run("steady lock carries", func(t *testing.T) {
		prev := sample(true, 0, 0)
		prev.Lanes[0].TimeSinceLastLocked = lockedAt

		merged := MergePrbsStats(prev, sample(true, 0, 5*time.Second))
		if got := merged.Lanes[0].TimeSinceLastLocked; !got.Equal(lockedAt) {
			t.Errorf("TimeSinceLastLocked = %v, want carried %v", got, lockedAt)
		}
	})
}

func TestMergePrbsStatsNewLane(t *testing.T) {
	// Lanes with no previous record keep their fresh values untouched.
	prev := sample(true, 0, 0)
	fresh := PrbsStats{
		Side: SideLine,
		Lanes: []PrbsLaneStats{
			{Lane: 0, Locked: true},
			{Lane: 3, BER: 1e-5, Locked: true},
		},
		TimeCollected: prbsBase.Add(time.Second),
	}

	merged := MergePrbsStats(prev, fresh)
	lane, ok := findLane(merged.Lanes, 3)
	if !ok {
		t.Fatal("lane 3 missing from merged stats")
	}
	if lane.BER != 1e-5 || lane.NumLossOfLock != 0 {
		t.Errorf("new lane = %+v, want fresh values untouched", lane)
	}
}

func TestMergePrbsStatsDoesNotMutateSample(t *testing.T) {
	// A caller may hold on to the sample it passed in; the merge must
	// not write accumulator state back through the shared lanes slice.
	prev := sample(true, 1e-8, 0)
	prev.Lanes[0].NumLossOfLock = 3
	prev.Lanes[0].MaxBER = 1e-6

	fresh := sample(false, 1e-9, time.Second)
	merged := MergePrbsStats(prev, fresh)

	if merged.Lanes[0].NumLossOfLock != 4 {
		t.Errorf("merged NumLossOfLock = %d, want 4", merged.Lanes[0].NumLossOfLock)
	}
	if fresh.Lanes[0].NumLossOfLock != 0 || fresh.Lanes[0].MaxBER != 0 {
		t.Errorf("sample lanes mutated by merge: %+v", fresh.Lanes[0])
	}
}

func TestClearPrbsStats(t *testing.T) {
	stats := sample(true, 1e-6, 0)
	stats.Lanes[0].MaxBER = 1e-5
	stats.Lanes[0].NumLossOfLock = 7

	clearTime := prbsBase.Add(time.Minute)
	ClearPrbsStats(&stats, clearTime)

	lane := stats.Lanes[0]
	if lane.BER != 0 || lane.MaxBER != 0 || lane.NumLossOfLock != 0 {
		t.Errorf("cleared lane = %+v, want zeroed counters", lane)
	}
	if !lane.Locked {
		t.Error("Locked = false, want lock state untouched by clear")
	}
	if !lane.TimeSinceLastClear.Equal(clearTime) {
		t.Errorf("TimeSinceLastClear = %v, want %v", lane.TimeSinceLastClear, clearTime)
	}

	// A merge after the clear carries the clear time forward.
	merged := MergePrbsStats(stats, sample(true, 1e-9, 2*time.Minute))
	if got := merged.Lanes[0].TimeSinceLastClear; !got.Equal(clearTime) {
		t.Errorf("TimeSinceLastClear after merge = %v, want carried %v", got, clearTime)
	}
}

func TestPrbsStatsDeepCopy(t *testing.T) {
	orig := sample(true, 1e-8, 0)
	cpy := orig.DeepCopy()
	cpy.Lanes[0].NumLossOfLock = 99

	if orig.Lanes[0].NumLossOfLock != 0 {
		t.Error("DeepCopy() shares lane slice with original")
	}
}

func TestBerFromRegister(t *testing.T) {
	tests := []struct {
		name     string
		lsb, msb uint8
		want     float64
	}{
		{"zero", 0, 0, 0},
		{"unit mantissa neutral exponent", 24 << 3, 1, 1},
		{"mantissa 100 exponent -6", (24 - 6) << 3, 100, 100e-6},
		{"max mantissa", (24<<3 | 0x7), 0xff, 2047},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BerFromRegister(tt.lsb, tt.msb)
			if math.Abs(got-tt.want) > tt.want*1e-12 {
				t.Errorf("BerFromRegister(%#x, %#x) = %g, want %g", tt.lsb, tt.msb, got, tt.want)
			}
		})
	}
}
