package watermark

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	value  uint64
	getErr error
	setErr error
	sets   []uint64
}

func (s *stubStore) GetWatermark(context.Context) (uint64, error) {
	return s.value, s.getErr
}

func (s *stubStore) SetWatermark(_ context.Context, id uint64) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.value = id
	s.sets = append(s.sets, id)
	return nil
}

func TestTracker_LoadFromStore(t *testing.T) {
	tr := NewTracker(&stubStore{value: 100})

	require.NoError(t, tr.Load(context.Background()))
	assert.Equal(t, uint64(100), tr.Current())
	assert.True(t, tr.Seen(100))
	assert.False(t, tr.Seen(101))
}

func TestTracker_LoadError(t *testing.T) {
	tr := NewTracker(&stubStore{getErr: errors.New("store offline")})
	assert.Error(t, tr.Load(context.Background()))
}

func TestTracker_AdvanceIsMonotonic(t *testing.T) {
	store := &stubStore{}
	tr := NewTracker(store)
	require.NoError(t, tr.Load(context.Background()))

	require.NoError(t, tr.Advance(context.Background(), 10))
	require.NoError(t, tr.Advance(context.Background(), 5))
	require.NoError(t, tr.Advance(context.Background(), 10))
	require.NoError(t, tr.Advance(context.Background(), 12))

	assert.Equal(t, uint64(12), tr.Current())
	// Stale and repeated advances never reach the store.
	assert.Equal(t, []uint64{10, 12}, store.sets)
}

func TestTracker_AdvanceSurvivesPersistFailure(t *testing.T) {
	store := &stubStore{setErr: errors.New("disk full")}
	tr := NewTracker(store)
	require.NoError(t, tr.Load(context.Background()))

	err := tr.Advance(context.Background(), 7)

	// The error surfaces but the in-memory value still advances so the
	// stream is not reprocessed within this process lifetime.
	require.Error(t, err)
	assert.Equal(t, uint64(7), tr.Current())
}
