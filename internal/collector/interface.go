package collector

import (
	"context"
	"time"

	"github.com/mon5termatt/apc-web/internal/reading"
	"github.com/mon5termatt/apc-web/internal/store"
)

// StatusSource supplies one raw status snapshot per call. The NIS client
// is the production implementation; tests inject scripted fakes.
type StatusSource interface {
	FetchStatus(ctx context.Context) (map[string]string, error)
}

// Storage is the slice of the store the collector writes through and
// rehydrates from.
type Storage interface {
	CommitCycle(ctx context.Context, upd store.CycleUpdate) error
	OpenEvent(ctx context.Context) (*store.PowerEvent, error)
	LatestReading(ctx context.Context) (*reading.Reading, error)
	PruneOlderThan(ctx context.Context, horizon time.Duration) (readings, events int64, err error)
}

var _ Storage = (*store.Store)(nil)
