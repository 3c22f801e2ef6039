package collector

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/mon5termatt/apc-web/internal/reading"
	"github.com/mon5termatt/apc-web/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		current    PowerStatus
		onBattery  bool
		stale      bool
		wantStatus PowerStatus
		wantKind   TransitionKind
	}{
		{"startup to line", StatusUnknown, false, false, StatusOnLine, TransitionNone},
		{"startup to battery", StatusUnknown, true, false, StatusOnBattery, TransitionOpen},
		{"line holds", StatusOnLine, false, false, StatusOnLine, TransitionNone},
		{"line to battery", StatusOnLine, true, false, StatusOnBattery, TransitionOpen},
		{"battery holds", StatusOnBattery, true, false, StatusOnBattery, TransitionNone},
		{"battery to line", StatusOnBattery, false, false, StatusOnLine, TransitionClose},
		{"stale never transitions from line", StatusOnLine, true, true, StatusOnLine, TransitionNone},
		{"stale never transitions from battery", StatusOnBattery, false, true, StatusOnBattery, TransitionNone},
		{"stale holds unknown", StatusUnknown, true, true, StatusUnknown, TransitionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reading.Reading{Timestamp: at, OnBattery: tt.onBattery, Stale: tt.stale}

			status, tr := Advance(tt.current, r)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantKind, tr.Kind)
			if tt.wantKind != TransitionNone {
				assert.Equal(t, at, tr.At)
			}
		})
	}
}

func newDetectorStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.New(store.Config{DBPath: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return st
}

func TestRehydrateEmptyStore(t *testing.T) {
	st := newDetectorStore(t)

	state, err := Rehydrate(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, state.Power)
	assert.Zero(t, state.OpenEventID)
}

func TestRehydrateOpenEvent(t *testing.T) {
	st := newDetectorStore(t)
	ctx := context.Background()

	open := &store.PowerEvent{Start: time.Now().Add(-time.Minute)}
	require.NoError(t, st.CommitCycle(ctx, store.CycleUpdate{OpenEvent: open}))

	state, err := Rehydrate(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, StatusOnBattery, state.Power)
	assert.Equal(t, open.ID, state.OpenEventID)
}

func TestRehydrateFromLatestReading(t *testing.T) {
	st := newDetectorStore(t)
	ctx := context.Background()

	r := reading.Reading{Timestamp: time.Now(), Status: "ONLINE"}
	require.NoError(t, st.CommitCycle(ctx, store.CycleUpdate{Reading: &r}))

	state, err := Rehydrate(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, StatusOnLine, state.Power)
}

func TestRehydrateStaleLatestReading(t *testing.T) {
	st := newDetectorStore(t)
	ctx := context.Background()

	r := reading.Reading{Timestamp: time.Now(), Status: "ONLINE", Stale: true}
	require.NoError(t, st.CommitCycle(ctx, store.CycleUpdate{Reading: &r}))

	state, err := Rehydrate(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, state.Power)
}

func TestRehydrateBatteryReadingWithoutOpenEvent(t *testing.T) {
	st := newDetectorStore(t)
	ctx := context.Background()

	r := reading.Reading{Timestamp: time.Now(), Status: "ONBATT", OnBattery: true}
	require.NoError(t, st.CommitCycle(ctx, store.CycleUpdate{Reading: &r}))

	// Battery flag without a recorded open event: stay unknown so the
	// next battery reading opens one.
	state, err := Rehydrate(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, state.Power)
}
