// Package reading converts raw apcupsd status fields into typed,
// point-in-time UPS readings with derived power metrics.
package reading

import "time"

// Reading is one point-in-time snapshot of the UPS. Optional fields the
// daemon may not report are pointers and nil when absent. A stale reading
// reuses the last fresh reading's measured fields under a new timestamp.
type Reading struct {
	Timestamp        time.Time
	LineVolts        float64
	OutputVolts      *float64
	LoadPct          float64
	BatteryChargePct float64
	RuntimeLeftMin   *float64
	InternalTempC    *float64
	Watts            float64
	Amps             float64
	Status           string
	OnBattery        bool
	Stale            bool
}

// Hardware holds the UPS nameplate constants used to derive power
// metrics from the reported load percentage.
type Hardware struct {
	RatedVA        int
	RatedWatts     int
	PowerFactor    float64
	NominalVoltage int
}

// StaleCopy returns a cache-fallback copy of r: measured fields
// unchanged, new timestamp, marked stale. The status flag is carried
// over for display but a stale reading never drives an event transition.
func (r Reading) StaleCopy(now time.Time) Reading {
	c := r
	c.Timestamp = now
	c.Stale = true

	return c
}
