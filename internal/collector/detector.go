package collector

import (
	"context"
	"time"

	"github.com/mon5termatt/apc-web/internal/errors"
	"github.com/mon5termatt/apc-web/internal/reading"
)

// PowerStatus is the detector's view of the UPS power source.
type PowerStatus int

const (
	StatusUnknown PowerStatus = iota
	StatusOnLine
	StatusOnBattery
)

func (s PowerStatus) String() string {
	switch s {
	case StatusOnLine:
		return "online"
	case StatusOnBattery:
		return "onbatt"
	default:
		return "unknown"
	}
}

// State is the collector's per-process bookkeeping. It is rehydrated
// from the store at startup, never persisted separately.
type State struct {
	Power PowerStatus

	// OpenEventID is the id of the open power event; zero while on
	// line power.
	OpenEventID int64

	LastSuccess         time.Time
	ConsecutiveFailures int
}

type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionOpen
	TransitionClose
)

// Transition describes the event-record side effect of one reading.
type Transition struct {
	Kind TransitionKind
	At   time.Time
}

// Advance is the detector's pure transition function. A line-to-battery
// flip opens an event, battery-to-line closes it. Stale readings carry
// an unknown status and never move the machine.
func Advance(current PowerStatus, r reading.Reading) (PowerStatus, Transition) {
	if r.Stale {
		return current, Transition{Kind: TransitionNone}
	}

	switch {
	case r.OnBattery && current != StatusOnBattery:
		return StatusOnBattery, Transition{Kind: TransitionOpen, At: r.Timestamp}
	case !r.OnBattery && current == StatusOnBattery:
		return StatusOnLine, Transition{Kind: TransitionClose, At: r.Timestamp}
	case r.OnBattery:
		return StatusOnBattery, Transition{Kind: TransitionNone}
	default:
		return StatusOnLine, Transition{Kind: TransitionNone}
	}
}

// Rehydrate reconstructs detector state from the store. An open event is
// authoritative: a restart mid-outage resumes it instead of opening a
// duplicate. Otherwise the newest fresh reading's flag seeds the state;
// a stale newest reading (or an empty store) leaves it unknown.
func Rehydrate(ctx context.Context, st Storage) (State, error) {
	errFactory := errors.New()

	open, err := st.OpenEvent(ctx)
	if err != nil {
		return State{}, errFactory.Wrap(ErrRehydrateFailed, err)
	}
	if open != nil {
		return State{Power: StatusOnBattery, OpenEventID: open.ID}, nil
	}

	last, err := st.LatestReading(ctx)
	if err != nil {
		return State{}, errFactory.Wrap(ErrRehydrateFailed, err)
	}
	if last == nil || last.Stale {
		return State{Power: StatusUnknown}, nil
	}
	if last.OnBattery {
		// The store says on battery but holds no open event; treat the
		// status as unknown so the next battery reading re-opens one.
		return State{Power: StatusUnknown}, nil
	}

	return State{Power: StatusOnLine}, nil
}
