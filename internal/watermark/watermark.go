// Package watermark tracks the highest event identifier that has been
// fully evaluated, persisted so the boundary survives restarts.
package watermark

import (
	"context"
	"fmt"
	"sync"
)

// Store is the persistence slice of the config store the tracker needs.
type Store interface {
	GetWatermark(ctx context.Context) (uint64, error)
	SetWatermark(ctx context.Context, id uint64) error
}

// Tracker holds the in-memory watermark and enforces the forward-only
// invariant: the value is monotonically non-decreasing, and an advance is
// persisted before it is considered committed.
type Tracker struct {
	mu      sync.Mutex
	current uint64
	store   Store
}

// NewTracker creates a tracker backed by store. Call Load before use.
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Load initializes the in-memory value from the store.
func (t *Tracker) Load(ctx context.Context) error {
	id, err := t.store.GetWatermark(ctx)
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}
	t.mu.Lock()
	t.current = id
	t.mu.Unlock()
	return nil
}

// Current returns the committed watermark value.
func (t *Tracker) Current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Seen reports whether id is already covered by the watermark.
func (t *Tracker) Seen(id uint64) bool {
	return id <= t.Current()
}

// Advance moves the watermark to id. Calls with id at or below the current
// value are no-ops, so the value never decreases. The in-memory value
// advances even when persistence fails; the error is returned so the
// caller can surface it, but a store outage must not stall the stream or
// cause reprocessing within this process lifetime.
func (t *Tracker) Advance(ctx context.Context, id uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id <= t.current {
		return nil
	}
	t.current = id

	if err := t.store.SetWatermark(ctx, id); err != nil {
		return fmt.Errorf("persist watermark %d: %w", id, err)
	}
	return nil
}
