package transceiver

import (
	"math"
	"time"
)

// PrbsState reports whether the PRBS generator and checker are enabled
// on one side of the module.
type PrbsState struct {
	GeneratorEnabled bool `json:"generator_enabled"`
	CheckerEnabled   bool `json:"checker_enabled"`
}

// Enabled reports whether either the generator or the checker is
// running. Remediation is suppressed while a test pattern is active.
func (s PrbsState) Enabled() bool {
	return s.GeneratorEnabled || s.CheckerEnabled
}

// PrbsLaneStats holds the PRBS statistics for a single lane.
//
// BER is the instantaneous bit-error rate of the latest sample. MaxBER
// and NumLossOfLock are monotonic across merges until an explicit
// clear. TimeSinceLastLocked records when lock was last reacquired and
// TimeSinceLastClear when the stats were last cleared.
type PrbsLaneStats struct {
	Lane                int       `json:"lane"`
	BER                 float64   `json:"ber"`
	MaxBER              float64   `json:"max_ber"`
	Locked              bool      `json:"locked"`
	NumLossOfLock       int       `json:"num_loss_of_lock"`
	TimeSinceLastLocked time.Time `json:"time_since_last_locked"`
	TimeSinceLastClear  time.Time `json:"time_since_last_clear"`
}

// PrbsStats holds the per-lane PRBS statistics for one side of a
// module, stamped with the sample collection time.
type PrbsStats struct {
	Side          Side            `json:"side"`
	Lanes         []PrbsLaneStats `json:"lanes"`
	TimeCollected time.Time       `json:"time_collected"`
}

// DeepCopy returns an independent copy of the stats.
func (s PrbsStats) DeepCopy() PrbsStats {
	cpy := s
	if s.Lanes != nil {
		cpy.Lanes = make([]PrbsLaneStats, len(s.Lanes))
		copy(cpy.Lanes, s.Lanes)
	}
	return cpy
}

// MergePrbsStats folds the previous cycle's stats into a freshly
// sampled set, lane-matched by lane id, and returns the merged result.
//
// Per lane:
//   - NumLossOfLock increments exactly once per observed lock→unlock
//     edge, otherwise carries forward.
//   - MaxBER ratchets up from the fresh BER only while locked; an
//     unlocked sample never raises it.
//   - TimeSinceLastLocked is stamped with the fresh collection time on
//     an unlock→lock edge, otherwise carries forward.
//   - TimeSinceLastClear always carries forward; only ClearPrbsStats
//     resets it.
//
// Lane counters therefore stay monotonic no matter how irregularly the
// caller samples, and merging the same sample twice counts no edge
// twice.
func MergePrbsStats(prev, fresh PrbsStats) PrbsStats {
	// The sample may still be aliased by the caller, so the merge works
	// on its own copy of the lanes.
	fresh.Lanes = append([]PrbsLaneStats(nil), fresh.Lanes...)
	for i := range fresh.Lanes {
		lane := &fresh.Lanes[i]
		old, ok := findLane(prev.Lanes, lane.Lane)
		if !ok {
			// First sighting of this lane. The only applicable rule is
			// seeding MaxBER from the sample's own BER while locked.
			if lane.Locked && lane.BER > lane.MaxBER {
				lane.MaxBER = lane.BER
			}
			continue
		}

		if old.Locked && !lane.Locked {
			lane.NumLossOfLock = old.NumLossOfLock + 1
		} else {
			lane.NumLossOfLock = old.NumLossOfLock
		}

		if lane.Locked && lane.BER > old.MaxBER {
			lane.MaxBER = lane.BER
		} else {
			lane.MaxBER = old.MaxBER
		}

		if !old.Locked && lane.Locked {
			lane.TimeSinceLastLocked = fresh.TimeCollected
		} else {
			lane.TimeSinceLastLocked = old.TimeSinceLastLocked
		}

		lane.TimeSinceLastClear = old.TimeSinceLastClear
	}
	return fresh
}

// ClearPrbsStats zeroes the accumulated error counters of every lane
// and stamps the clear time. Lock state is a hardware condition and is
// left untouched.
func ClearPrbsStats(stats *PrbsStats, now time.Time) {
	for i := range stats.Lanes {
		lane := &stats.Lanes[i]
		lane.BER = 0
		lane.MaxBER = 0
		lane.NumLossOfLock = 0
		lane.TimeSinceLastClear = now
	}
}

// findLane returns the lane stats with the given lane id.
func findLane(lanes []PrbsLaneStats, id int) (PrbsLaneStats, bool) {
	for _, lane := range lanes {
		if lane.Lane == id {
			return lane, true
		}
	}
	return PrbsLaneStats{}, false
}

// BerFromRegister converts the 16-bit BER register encoding (5-bit
// exponent, 11-bit mantissa, exponent biased by 24) to a float. The
// encoding is shared by SFF and CMIS modules; drivers use this when
// sampling lane stats.
func BerFromRegister(lsb, msb uint8) float64 {
	exponent := int(lsb>>3)&0x1f - 24
	mantissa := (int(lsb&0x7) << 8) | int(msb)
	return float64(mantissa) * math.Pow10(exponent)
}
