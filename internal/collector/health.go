package collector

import "time"

// Health is the tri-state signal exposed to the serving layer.
type Health int

const (
	Healthy Health = iota
	Warning
	Unhealthy
)

func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Warning:
		return "warning"
	default:
		return "unhealthy"
	}
}

// Policy holds the health thresholds. They are explicit parameters so
// failure-injection tests can run at accelerated virtual time.
type Policy struct {
	// FailureThreshold is the consecutive-failure count at which the
	// collector reports unhealthy.
	FailureThreshold int

	// FreshnessHorizon is how old the newest stored reading may be
	// before the loop itself is suspected stalled.
	FreshnessHorizon time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold: 3,
		FreshnessHorizon: 2 * time.Minute,
	}
}

// Report is the health signal plus the bookkeeping a status endpoint
// wants alongside it.
type Report struct {
	Health              Health
	LastSuccess         time.Time
	ConsecutiveFailures int
}

// EvaluateHealth derives the health signal from collector state and the
// timestamp of the newest stored reading (fresh or stale). Pure
// function, no side effects.
func EvaluateHealth(state State, lastStored, now time.Time, p Policy) Health {
	if state.ConsecutiveFailures >= p.FailureThreshold {
		return Unhealthy
	}
	if lastStored.IsZero() || now.Sub(lastStored) > p.FreshnessHorizon {
		return Warning
	}

	return Healthy
}
