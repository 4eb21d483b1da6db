package transceiver

// Merge returns the sticky OR-accumulation of two flag sets. A bit that
// was ever observed set stays set until the accumulator is explicitly
// read and cleared.
func (f SignalFlags) Merge(fresh SignalFlags) SignalFlags {
	return SignalFlags{
		TxLos: f.TxLos | fresh.TxLos,
		RxLos: f.RxLos | fresh.RxLos,
		TxLol: f.TxLol | fresh.TxLol,
		RxLol: f.RxLol | fresh.RxLol,
	}
}

// mergeModuleStatus accumulates the sticky status-changed bit across
// refresh cycles. InterruptAsserted is level-triggered and always
// reflects the latest sample.
func mergeModuleStatus(prev, fresh ModuleStatus) ModuleStatus {
	return ModuleStatus{
		StateChanged:      prev.StateChanged || fresh.StateChanged,
		InterruptAsserted: fresh.InterruptAsserted,
	}
}

// mediaSignalCache accumulates per-lane sticky fault bits. Lane entries
// are lazily created on first observation and a tx-fault, once seen,
// stays set until the cache is taken.
type mediaSignalCache map[int]MediaLaneSignal

// observe folds a freshly sampled lane signal set into the cache.
// Only the edge-triggered tx-fault bit is latched; rx-los is level
// sampled and lives in the Snapshot instead.
func (c mediaSignalCache) observe(signals []MediaLaneSignal) {
	for _, sig := range signals {
		cached, ok := c[sig.Lane]
		if !ok {
			cached = MediaLaneSignal{Lane: sig.Lane}
		}
		if sig.TxFault {
			cached.TxFault = true
		}
		c[sig.Lane] = cached
	}
}

// take returns the accumulated lane signals and resets the sticky bits,
// keeping the lane entries themselves.
func (c mediaSignalCache) take() map[int]MediaLaneSignal {
	out := make(map[int]MediaLaneSignal, len(c))
	for lane, sig := range c {
		out[lane] = sig
		c[lane] = MediaLaneSignal{Lane: lane}
	}
	return out
}
