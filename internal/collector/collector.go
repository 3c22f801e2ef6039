// Package collector drives the fixed-interval collection cycle: fetch
// UPS status, normalize, detect power events, persist, and track the
// health of the whole pipeline. The loop runs for the process lifetime
// and retries indefinitely at the poll interval; no single cycle's
// failure terminates it.
package collector

import (
	"context"
	"sync"
	"time"

	"github.com/mon5termatt/apc-web/internal/errors"
	"github.com/mon5termatt/apc-web/internal/logger"
	"github.com/mon5termatt/apc-web/internal/reading"
	"github.com/mon5termatt/apc-web/internal/store"
)

const defaultPruneEvery = time.Hour

type Config struct {
	Interval  time.Duration
	Retention time.Duration

	// PruneEvery is the cadence of retention cleanup after the startup
	// pass; defaults to one hour of uptime.
	PruneEvery time.Duration

	// Simulate substitutes a fixed on-battery snapshot for the daemon
	// fetch while set.
	Simulate bool

	Hardware reading.Hardware
	Health   Policy
}

type Collector struct {
	src   StatusSource
	store Storage
	cfg   Config
	cache *Cache

	// now is the clock; tests swap it for virtual time.
	now func() time.Time

	mu         sync.Mutex
	state      State
	lastStored time.Time
	lastPrune  time.Time
}

func New(src StatusSource, st Storage, cfg Config) *Collector {
	if cfg.PruneEvery <= 0 {
		cfg.PruneEvery = defaultPruneEvery
	}
	if cfg.Health == (Policy{}) {
		cfg.Health = DefaultPolicy()
	}

	return &Collector{
		src:   src,
		store: st,
		cfg:   cfg,
		cache: NewCache(),
		now:   time.Now,
	}
}

// Run rehydrates state, performs the startup prune, and then polls at
// the configured interval until the context is cancelled. The in-flight
// cycle is bounded by the protocol timeout, so cancellation exits
// within that bound.
func (c *Collector) Run(ctx context.Context) error {
	if c.cfg.Interval <= 0 {
		return errors.New().WithData(ErrInvalidInterval, c.cfg.Interval)
	}

	state, err := Rehydrate(ctx, c.store)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state = state
	c.mu.Unlock()

	if state.Power == StatusOnBattery {
		logger.Info().
			Int64("event_id", state.OpenEventID).
			Msg("Resuming open power event from previous run")
	}

	c.prune(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	logger.Info().
		Dur("interval", c.cfg.Interval).
		Bool("simulate", c.cfg.Simulate).
		Msg("Collector started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.RunCycle(ctx)
			if c.now().Sub(c.lastPrune) >= c.cfg.PruneEvery {
				c.prune(ctx)
			}
		}
	}
}

// RunCycle executes exactly one collection cycle. Exposed so tests can
// drive the collector without the ticker.
func (c *Collector) RunCycle(ctx context.Context) {
	now := c.now()

	raw, err := c.fetch(ctx)
	if err != nil {
		c.recordFailure(ctx, now, err)
		return
	}

	rd, err := reading.Normalize(raw, c.cfg.Hardware, now)
	if err != nil {
		// Required fields missing: nothing usable to store or to fall
		// back from, skip this cycle's storage.
		c.mu.Lock()
		c.state.ConsecutiveFailures++
		c.mu.Unlock()
		logger.Warn().Err(err).Msg("Discarding unusable status response")
		return
	}

	c.cache.Set(rd)

	c.mu.Lock()
	power := c.state.Power
	openID := c.state.OpenEventID
	c.mu.Unlock()

	newPower, tr := Advance(power, rd)

	upd := store.CycleUpdate{Reading: &rd}
	switch tr.Kind {
	case TransitionOpen:
		upd.OpenEvent = &store.PowerEvent{Start: tr.At}
	case TransitionClose:
		upd.CloseEvent = &store.EventClose{ID: openID, End: tr.At}
	}

	if err := c.store.CommitCycle(ctx, upd); err != nil {
		c.mu.Lock()
		c.state.ConsecutiveFailures++
		c.mu.Unlock()
		logger.Error().Err(err).Msg("Failed to store reading")
		return
	}

	c.mu.Lock()
	c.state.Power = newPower
	switch tr.Kind {
	case TransitionOpen:
		c.state.OpenEventID = upd.OpenEvent.ID
	case TransitionClose:
		c.state.OpenEventID = 0
	}
	c.state.LastSuccess = now
	c.state.ConsecutiveFailures = 0
	c.lastStored = now
	c.mu.Unlock()

	switch tr.Kind {
	case TransitionOpen:
		logger.Warn().
			Int64("event_id", upd.OpenEvent.ID).
			Time("start", tr.At).
			Msg("Utility power lost, UPS on battery")
	case TransitionClose:
		logger.Warn().
			Int64("event_id", openID).
			Time("end", tr.At).
			Msg("Utility power restored")
	}

	logger.Debug().
		Str("status", rd.Status).
		Float64("load_pct", rd.LoadPct).
		Float64("watts", rd.Watts).
		Float64("battery_charge", rd.BatteryChargePct).
		Msg("Reading collected")
}

func (c *Collector) fetch(ctx context.Context) (map[string]string, error) {
	if c.cfg.Simulate {
		return simulatedStatus(), nil
	}

	return c.src.FetchStatus(ctx)
}

// recordFailure handles an unavailable-this-cycle outcome: bump the
// failure counter and, when a prior success exists, store a stale copy
// so the series stays gap-free. The detector sees no input from a
// fallback cycle; a stale reading's status is unknown.
func (c *Collector) recordFailure(ctx context.Context, now time.Time, cause error) {
	c.mu.Lock()
	c.state.ConsecutiveFailures++
	failures := c.state.ConsecutiveFailures
	c.mu.Unlock()

	logger.Warn().
		Err(cause).
		Int("consecutive_failures", failures).
		Msg("UPS status unavailable")

	last, ok := c.cache.Get()
	if !ok {
		return
	}

	stale := last.StaleCopy(now)
	if err := c.store.CommitCycle(ctx, store.CycleUpdate{Reading: &stale}); err != nil {
		logger.Error().Err(err).Msg("Failed to store fallback reading")
		return
	}

	c.mu.Lock()
	c.lastStored = now
	c.mu.Unlock()
}

func (c *Collector) prune(ctx context.Context) {
	readings, events, err := c.store.PruneOlderThan(ctx, c.cfg.Retention)
	if err != nil {
		logger.Error().Err(err).Msg("Retention cleanup failed")
		return
	}

	c.mu.Lock()
	c.lastPrune = c.now()
	c.mu.Unlock()

	if readings > 0 || events > 0 {
		logger.Info().
			Int64("readings", readings).
			Int64("events", events).
			Msg("Pruned expired rows")
	}
}

// Health reports the aggregated health signal for a status endpoint.
func (c *Collector) Health() Report {
	c.mu.Lock()
	state := c.state
	lastStored := c.lastStored
	c.mu.Unlock()

	return Report{
		Health:              EvaluateHealth(state, lastStored, c.now(), c.cfg.Health),
		LastSuccess:         state.LastSuccess,
		ConsecutiveFailures: state.ConsecutiveFailures,
	}
}
