package transceiver

import (
	"fmt"
	"sync"
	"time"
)

// pageSelectOffset is the register that selects the active page before
// paged reads and writes.
const pageSelectOffset = 127

// Config holds the timing intervals for one controller. All values are
// fixed at process start.
type Config struct {
	// RefreshCooldown is the minimum interval between routine partial
	// data refreshes.
	RefreshCooldown time.Duration

	// CustomizeCooldown is the minimum interval between repeated
	// customize attempts on the same module. Zero disables the gate.
	CustomizeCooldown time.Duration

	// RemediateInterval gates steady-state remediation retries;
	// InitialRemediateInterval gates the first attempt after a fresh
	// link-down event.
	RemediateInterval        time.Duration
	InitialRemediateInterval time.Duration
}

// Controller owns all mutable state for one transceiver: presence and
// dirty flags, the telemetry snapshot, the sticky signal accumulators,
// and the PRBS stats for both sides. A single mutex guards everything;
// every public operation holds it for its full duration, so operations
// on the same module are never interleaved. Raw bus I/O additionally
// runs on the module's bus executor when the platform provides one.
type Controller struct {
	id     ID
	driver ModuleDriver
	events EventSink
	cfg    Config
	logger Logger

	// now is the clock used for every timing decision. Tests inject a
	// fake; production uses time.Now.
	now func() time.Time

	mu sync.Mutex

	present    bool
	dirty      bool
	resetCount int

	lastRefreshTime   time.Time
	lastCustomizeTime time.Time
	lastDownTime      time.Time
	lastRemediateTime time.Time
	modulePauseUntil  time.Time
	remediationCount  int

	snapshot *Snapshot

	signalFlagCache SignalFlags
	mediaCache      mediaSignalCache
	statusCache     ModuleStatus

	captureVdmStats bool
	lastVdmStats    *VdmStats

	systemPrbs PrbsStats
	linePrbs   PrbsStats
}

// Option configures a Controller at construction.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(logger Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithClock overrides the controller's clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller for one transceiver slot. The
// runtime record exists from this point on; Close must be called on
// teardown so the removal event reaches the fleet driver and no
// orphaned state survives a physical departure.
func NewController(id ID, driver ModuleDriver, events EventSink, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		id:         id,
		driver:     driver,
		events:     events,
		cfg:        cfg,
		logger:     noopLogger{},
		now:        time.Now,
		mediaCache: make(mediaSignalCache),
		systemPrbs: PrbsStats{Side: SideSystem},
		linePrbs:   PrbsStats{Side: SideLine},
	}
	for _, opt := range opts {
		opt(c)
	}
	// A freshly created slot counts as down until proven otherwise.
	c.lastDownTime = c.now()
	return c
}

// ID returns the controller's transceiver id.
func (c *Controller) ID() ID {
	return c.id
}

// Close tears the runtime record down, reporting the removal to the
// fleet driver's state machine.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events.UpdateStateBlocking(c.id, EventRemoveTransceiver)
}

// runOnBus executes fn on the module's bus executor when one exists,
// otherwise inline on the calling goroutine.
func (c *Controller) runOnBus(fn func() error) error {
	if ex := c.driver.BusExecutor(); ex != nil {
		return ex.Submit(fn)
	}
	return fn()
}

// Refresh detects presence, refetches module data as needed, and
// reassembles the telemetry snapshot. It holds the module lock for its
// entire duration. Errors are returned to the caller; a periodic
// driver is expected to log and retry on the next cycle rather than
// retrying inside the call.
func (c *Controller) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked()
}

// FutureRefresh runs Refresh asynchronously, routing through the bus
// executor when the platform has one. The returned channel yields the
// refresh error (or nil) exactly once.
func (c *Controller) FutureRefresh() <-chan error {
	result := make(chan error, 1)
	go func() {
		err := c.runOnBus(c.Refresh)
		if err != nil {
			c.logger.Debug("refresh failed",
				"transceiver", int(c.id),
				"error", err,
			)
		}
		result <- err
	}()
	return result
}

// refreshLocked implements the refresh algorithm. Call with the module
// lock held.
func (c *Controller) refreshLocked() error {
	present, changed := c.detectPresenceLocked()

	willRefresh := !c.dirty && c.now().Sub(c.lastRefreshTime) >= c.cfg.RefreshCooldown
	if !c.dirty && !willRefresh {
		// Common fast path: nothing is stale and the cooldown has not
		// elapsed.
		return nil
	}

	if changed && present {
		c.events.UpdateStateBlocking(c.id, EventDetectTransceiver)
	} else if changed && !present {
		c.events.UpdateStateBlocking(c.id, EventRemoveTransceiver)
	}

	if c.dirty {
		// Structural refresh: read everything, announce discovery,
		// then pick up any pages whose availability depends on the
		// capabilities just discovered. This keeps slow discovery
		// pages off the routine polling path while guaranteeing a
		// capability-complete snapshot immediately after discovery.
		if err := c.driver.EnsureOutOfReset(); err != nil {
			return fmt.Errorf("clearing reset: %w", err)
		}
		if err := c.driver.UpdateData(true); err != nil {
			return fmt.Errorf("full data refresh: %w", err)
		}
		if c.present {
			c.events.UpdateStateBlocking(c.id, EventReadEEPROM)
			if err := c.driver.UpdateData(false); err != nil {
				return fmt.Errorf("post-discovery data refresh: %w", err)
			}
		}
		c.dirty = false
		c.lastRefreshTime = c.now()
	} else if willRefresh {
		if err := c.driver.UpdateData(false); err != nil {
			return fmt.Errorf("partial data refresh: %w", err)
		}
		c.lastRefreshTime = c.now()
	}

	c.updateSnapshotLocked()

	if c.present {
		c.updatePrbsStatsLocked()
	}

	return nil
}

// detectPresenceLocked samples presence and handles a flip in either
// direction: the cache is marked dirty, the snapshot is reduced to a
// minimal presence-only record, and the reset counter restarts.
func (c *Controller) detectPresenceLocked() (present, changed bool) {
	present = c.driver.DetectPresence()
	if present == c.present {
		return present, false
	}

	c.logger.Info("presence changed",
		"transceiver", int(c.id),
		"present", present,
	)

	c.dirty = true
	c.present = present
	c.resetCount = 0

	// Keep a minimal record so TransceiverInfo is answerable before the
	// first full read completes; an absent module must expose no
	// I/O-dependent fields.
	c.snapshot = &Snapshot{
		ID:            c.id,
		Present:       present,
		TimeCollected: c.now(),
	}

	return present, true
}

// updateSnapshotLocked reassembles the snapshot from the driver's
// freshly fetched raw data and folds the edge-triggered bits into the
// sticky accumulators.
func (c *Controller) updateSnapshotLocked() {
	snap := Snapshot{
		ID:      c.id,
		Present: c.present,
	}

	if c.present {
		if signals, ok := c.driver.MediaLaneSignals(); ok {
			snap.MediaLaneSignals = signals
			c.mediaCache.observe(signals)
		}
		if signals, ok := c.driver.HostLaneSignals(); ok {
			snap.HostLaneSignals = signals
		}

		if vendor, ok := c.driver.VendorInfo(); ok {
			snap.Vendor = &vendor
		}
		if cable, ok := c.driver.CableInfo(); ok {
			snap.Cable = &cable
		}
		if sensor, ok := c.driver.SensorInfo(); ok {
			snap.Sensor = &sensor
		}

		if flags, ok := c.driver.SignalFlags(); ok {
			snap.SignalFlags = &flags
			c.signalFlagCache = c.signalFlagCache.Merge(flags)
		}
		if status, ok := c.driver.ModuleStatus(); ok {
			snap.Status = &status
			c.statusCache = mergeModuleStatus(c.statusCache, status)
		}

		if vdm, ok := c.driver.VdmStats(); ok && c.captureVdmStats {
			snap.VdmStats = &vdm
			c.lastVdmStats = &vdm
			c.captureVdmStats = false
		} else if c.lastVdmStats != nil {
			// VDM was not captured this cycle; retain the previous values.
			retained := *c.lastVdmStats
			snap.VdmStats = &retained
		}

		snap.MediaInterface = c.driver.MediaInterface()
		snap.TimeCollected = c.lastRefreshTime
		snap.RemediationCount = c.remediationCount
		snap.EEPROMChecksumValid = c.driver.VerifyChecksums()
	} else {
		snap.TimeCollected = c.now()
	}

	c.snapshot = &snap
}

// updatePrbsStatsLocked samples both sides and merges against the
// previous cycle's records.
func (c *Controller) updatePrbsStatsLocked() {
	sysState := c.driver.PrbsState(SideSystem)
	fresh := c.driver.SamplePrbsStats(SideSystem, sysState.CheckerEnabled)
	c.systemPrbs = MergePrbsStats(c.systemPrbs, fresh)

	lineState := c.driver.PrbsState(SideLine)
	fresh = c.driver.SamplePrbsStats(SideLine, lineState.CheckerEnabled)
	c.linePrbs = MergePrbsStats(c.linePrbs, fresh)
}

// cacheIsValidLocked reports whether cached module data can be trusted
// for programming decisions.
func (c *Controller) cacheIsValidLocked() bool {
	return c.present && !c.dirty
}

// TransceiverInfo returns a copy of the last assembled snapshot. It
// fails if no refresh has ever populated one.
func (c *Controller) TransceiverInfo() (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot == nil {
		return nil, ErrSnapshotNotReady
	}
	return c.snapshot.DeepCopy(), nil
}

// TransceiverPrbsStats returns a copy of the merged PRBS stats for one
// side.
func (c *Controller) TransceiverPrbsStats(side Side) PrbsStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	if side == SideSystem {
		return c.systemPrbs.DeepCopy()
	}
	return c.linePrbs.DeepCopy()
}

// ClearTransceiverPrbsStats resets the accumulated PRBS error counters
// for one side and stamps the clear time.
func (c *Controller) ClearTransceiverPrbsStats(side Side) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if side == SideSystem {
		ClearPrbsStats(&c.systemPrbs, now)
	} else {
		ClearPrbsStats(&c.linePrbs, now)
	}
	c.logger.Info("prbs stats cleared",
		"transceiver", int(c.id),
		"side", side.String(),
	)
}

// ReadAndClearCachedSignalFlags returns the sticky signal flags
// accumulated since the last call and clears them. A plain refresh
// never clears these; only this read does.
func (c *Controller) ReadAndClearCachedSignalFlags() SignalFlags {
	c.mu.Lock()
	defer c.mu.Unlock()

	flags := c.signalFlagCache
	c.signalFlagCache = SignalFlags{}
	return flags
}

// ReadAndClearCachedMediaLaneSignals returns the sticky per-lane media
// signals accumulated since the last call and clears the fault bits.
func (c *Controller) ReadAndClearCachedMediaLaneSignals() map[int]MediaLaneSignal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaCache.take()
}

// ReadAndClearCachedModuleStatus returns the sticky module status bits
// accumulated since the last call and clears them.
func (c *Controller) ReadAndClearCachedModuleStatus() ModuleStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.statusCache
	c.statusCache = ModuleStatus{}
	return status
}

// CaptureVdmStats arms a one-shot VDM capture on the next refresh
// cycle. Until the capture happens, snapshots retain the previous VDM
// values.
func (c *Controller) CaptureVdmStats() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captureVdmStats = true
}

// MarkLastDownTime records that the module's link went down now.
func (c *Controller) MarkLastDownTime() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastDownTime = c.now()
}

// SetModulePauseRemediation suppresses remediation for this module for
// the given duration.
func (c *Controller) SetModulePauseRemediation(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modulePauseUntil = c.now().Add(timeout)
}

// remediationPolicyLocked assembles the remediation decision inputs
// from the module's current state.
func (c *Controller) remediationPolicyLocked() RemediationPolicy {
	return RemediationPolicy{
		Supported:                c.driver.SupportsRemediation(),
		SystemPrbs:               c.driver.PrbsState(SideSystem),
		LinePrbs:                 c.driver.PrbsState(SideLine),
		GlobalPauseUntil:         c.events.PauseRemediationUntil(),
		ModulePauseUntil:         c.modulePauseUntil,
		LastDownTime:             c.lastDownTime,
		LastRemediateTime:        c.lastRemediateTime,
		InitialRemediateInterval: c.cfg.InitialRemediateInterval,
		RemediateInterval:        c.cfg.RemediateInterval,
	}
}

// ShouldRemediate reports whether a destructive recovery action is due.
// PRBS state is read from the hardware, so the check routes through the
// bus executor like any other bus access.
func (c *Controller) ShouldRemediate() bool {
	var due bool
	//nolint:errcheck // the decision carries the result; bus submit cannot fail here
	c.runOnBus(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		due = c.remediationPolicyLocked().ShouldRemediate(c.now())
		return nil
	})
	return due
}

// TryRemediate performs the destructive recovery action if the policy
// says one is due. On success it counts the remediation and dirties
// the cache so the next cycle re-reads everything the reset may have
// changed.
func (c *Controller) TryRemediate() bool {
	var remediated bool
	//nolint:errcheck // remediation failure is reported via the return value
	c.runOnBus(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if !c.remediationPolicyLocked().ShouldRemediate(c.now()) {
			return nil
		}
		if err := c.driver.Remediate(); err != nil {
			c.logger.Warn("remediation failed",
				"transceiver", int(c.id),
				"error", err,
			)
			return nil
		}

		c.remediationCount++
		c.lastRemediateTime = c.now()
		c.dirty = true
		remediated = true

		c.logger.Info("transceiver remediated",
			"transceiver", int(c.id),
			"count", c.remediationCount,
		)
		return nil
	})
	return remediated
}

// RemediationCount returns the number of successful remediations since
// the controller was created.
func (c *Controller) RemediationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remediationCount
}

// customizationSupportedLocked reports whether the module's settings
// can be customized. Copper modules have no tunable optics.
func (c *Controller) customizationSupportedLocked() bool {
	return c.present && c.driver.TransmitterTechnology() != TechnologyCopper
}

// CustomizeTransceiver applies speed-dependent settings to a present
// module. Power-control override is applied regardless of speed;
// CDR and rate-select only for a non-default requested speed.
func (c *Controller) CustomizeTransceiver(speed PortSpeed) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.present {
		return nil
	}
	return c.customizeLocked(speed)
}

func (c *Controller) customizeLocked(speed PortSpeed) error {
	if !c.customizationSupportedLocked() {
		c.logger.Debug("customization not supported",
			"transceiver", int(c.id),
		)
		return nil
	}

	// Customization writes the same registers every time, so repeated
	// attempts within the cooldown are skipped.
	if c.cfg.CustomizeCooldown > 0 && c.now().Sub(c.lastCustomizeTime) < c.cfg.CustomizeCooldown {
		c.logger.Debug("customization on cooldown",
			"transceiver", int(c.id),
		)
		return nil
	}

	if err := c.driver.SetPowerOverride(); err != nil {
		return fmt.Errorf("setting power override: %w", err)
	}

	if speed != PortSpeedDefault {
		if err := c.driver.SetCdr(speed); err != nil {
			return fmt.Errorf("setting CDR: %w", err)
		}
		if err := c.driver.SetRateSelect(speed); err != nil {
			return fmt.Errorf("setting rate select: %w", err)
		}
	}

	c.lastCustomizeTime = c.now()
	return nil
}

// ProgramTransceiver programs a present module for the given speed.
// It fails fast when the cached data is stale: hardware must not be
// programmed from unverified assumptions. The whole sequence runs
// under one lock acquisition, routed through the bus executor.
func (c *Controller) ProgramTransceiver(speed PortSpeed, needResetDataPath bool) error {
	return c.runOnBus(func() error {
		c.mu.Lock()
		defer c.mu.Unlock()

		if !c.present {
			return nil
		}
		if !c.cacheIsValidLocked() {
			return fmt.Errorf("%w: transceiver %d cannot be programmed", ErrStaleCache, int(c.id))
		}

		// Customize first so the application code is correct before
		// module configuration programs the serdes from it.
		if err := c.customizeLocked(speed); err != nil {
			return err
		}
		if err := c.driver.UpdateData(false); err != nil {
			return fmt.Errorf("refreshing data before configure: %w", err)
		}
		if err := c.driver.ConfigureModule(); err != nil {
			return fmt.Errorf("configuring module: %w", err)
		}

		// Some modules leave Rx output squelch disabled by default,
		// which makes a flapped link hard to bring back up.
		if err := c.driver.EnsureRxOutputSquelchEnabled(); err != nil {
			return fmt.Errorf("enabling rx output squelch: %w", err)
		}

		if needResetDataPath {
			if err := c.driver.ResetDataPath(); err != nil {
				return fmt.Errorf("resetting data path: %w", err)
			}
		}

		if err := c.driver.UpdateData(false); err != nil {
			return fmt.Errorf("refreshing data after programming: %w", err)
		}
		c.updateSnapshotLocked()

		return nil
	})
}

// ReadRegister reads raw bytes from the module. An absent module
// yields an empty buffer rather than an error.
func (c *Controller) ReadRegister(io RegisterIO) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.present {
		return nil, nil
	}

	if io.Page != nil {
		if err := c.driver.WriteRaw(RegisterIO{Offset: pageSelectOffset, Length: 1}, *io.Page); err != nil {
			return nil, fmt.Errorf("selecting page %d: %w", *io.Page, err)
		}
	}

	data, err := c.driver.ReadRaw(io)
	if err != nil {
		return nil, fmt.Errorf("reading offset %d: %w", io.Offset, err)
	}
	return data, nil
}

// WriteRegister writes one byte to the module. Returns ErrNotPresent
// for an absent module.
func (c *Controller) WriteRegister(io RegisterIO, value byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.present {
		return ErrNotPresent
	}

	if io.Page != nil {
		if err := c.driver.WriteRaw(RegisterIO{Offset: pageSelectOffset, Length: 1}, *io.Page); err != nil {
			return fmt.Errorf("selecting page %d: %w", *io.Page, err)
		}
	}

	if err := c.driver.WriteRaw(io, value); err != nil {
		return fmt.Errorf("writing offset %d: %w", io.Offset, err)
	}
	return nil
}

// FutureReadRegister routes ReadRegister through the bus executor.
func (c *Controller) FutureReadRegister(io RegisterIO) ([]byte, error) {
	var data []byte
	err := c.runOnBus(func() error {
		var err error
		data, err = c.ReadRegister(io)
		return err
	})
	return data, err
}

// FutureWriteRegister routes WriteRegister through the bus executor.
func (c *Controller) FutureWriteRegister(io RegisterIO, value byte) error {
	return c.runOnBus(func() error {
		return c.WriteRegister(io, value)
	})
}
