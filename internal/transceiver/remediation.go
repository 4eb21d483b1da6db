package transceiver

import "time"

// RemediationPolicy is the pure decision function for destructive
// recovery of a misbehaving link. Build it from the module's current
// state under the module lock and evaluate it against a single
// timestamp; it performs no I/O and holds no locks.
type RemediationPolicy struct {
	// Supported is false for module types with no remediation action.
	Supported bool

	// SystemPrbs and LinePrbs are the current test-pattern states.
	// Remediation must not disturb an active PRBS test on either side.
	SystemPrbs PrbsState
	LinePrbs   PrbsState

	// GlobalPauseUntil and ModulePauseUntil suppress remediation until
	// the later of the two has passed.
	GlobalPauseUntil time.Time
	ModulePauseUntil time.Time

	// LastDownTime is when the link was last seen down; LastRemediateTime
	// is when remediation was last attempted.
	LastDownTime      time.Time
	LastRemediateTime time.Time

	// InitialRemediateInterval gates the first attempt after a fresh
	// down event; RemediateInterval gates steady-state retries.
	InitialRemediateInterval time.Duration
	RemediateInterval        time.Duration
}

// ShouldRemediate reports whether a destructive recovery action is due
// at the given time.
//
// A fresh down event (LastDownTime after LastRemediateTime) is gated by
// the shorter initial interval so the first recovery attempt comes
// quickly; subsequent retries wait the full interval. The delay
// decouples a remediation's side effects from the root cause that
// brought the link down, which keeps the two distinguishable when
// debugging. Both comparisons are strict: at exactly the interval
// boundary remediation is not yet due.
func (p RemediationPolicy) ShouldRemediate(now time.Time) bool {
	if !p.Supported {
		return false
	}

	if p.SystemPrbs.Enabled() || p.LinePrbs.Enabled() {
		return false
	}

	enabled := now.After(p.GlobalPauseUntil) && now.After(p.ModulePauseUntil)

	var cooled bool
	if p.LastDownTime.After(p.LastRemediateTime) {
		cooled = now.Sub(p.LastDownTime) > p.InitialRemediateInterval
	} else {
		cooled = now.Sub(p.LastRemediateTime) > p.RemediateInterval
	}

	return enabled && cooled
}
