package store

import (
	"context"
	"time"

	"github.com/mon5termatt/apc-web/internal/reading"
)

// Querier is the read-only view of the store consumed by the serving
// layer. The collector's Store satisfies it; serving code should depend
// on this interface rather than the concrete type.
type Querier interface {
	// LatestReading returns the most recent stored reading, fresh or
	// stale, or nil when none exists.
	LatestReading(ctx context.Context) (*reading.Reading, error)

	// History returns readings within the window, timestamp ascending.
	History(ctx context.Context, since time.Duration) ([]reading.Reading, error)

	// Events returns power events starting within the window, plus any
	// open event, ordered by start ascending.
	Events(ctx context.Context, since time.Duration) ([]PowerEvent, error)

	// OpenEvent returns the single open event, or nil.
	OpenEvent(ctx context.Context) (*PowerEvent, error)
}

var _ Querier = (*Store)(nil)
