package replay

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droprelay/droprelay/internal/dispatcher"
	"github.com/droprelay/droprelay/internal/logging"
	"github.com/droprelay/droprelay/internal/models"
	"github.com/droprelay/droprelay/internal/repository"
	"github.com/droprelay/droprelay/internal/watermark"
)

type countingSender struct {
	mu       sync.Mutex
	forwards map[uint64]int
}

func (s *countingSender) Send(_ context.Context, _ string, ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.forwards == nil {
		s.forwards = make(map[uint64]int)
	}
	s.forwards[ev.ID]++
	return nil
}

type noOrigin struct{}

func (noOrigin) IsSelf(models.Event) bool                   { return false }
func (noOrigin) Delete(context.Context, models.Event) error { return nil }

type matchAll struct{}

func (matchAll) Current() []*models.Rule {
	return []*models.Rule{{Name: "all", Destination: "firehose"}}
}

// Events 101-105 are delivered once live, the process "crashes", and the
// same range arrives again via catch-up replay against the persisted
// watermark. Each event must be forwarded at most once in total.
func TestCatchup_ExactlyOnceAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := repository.NewInMemoryRepository()
	require.NoError(t, store.SetWatermark(ctx, 100))
	sender := &countingSender{}

	events := make([]models.Event, 0, 5)
	for id := uint64(101); id <= 105; id++ {
		events = append(events, models.Event{ID: id, Channel: "drops", Author: "clan-webhook"})
	}

	// First lifetime: live delivery.
	wm := watermark.NewTracker(store)
	require.NoError(t, wm.Load(ctx))
	d := dispatcher.New(dispatcher.Config{MonitoredChannel: "drops"}, matchAll{}, wm, sender, noOrigin{}, logging.Default())
	for _, ev := range events {
		require.NoError(t, d.Process(ctx, ev))
	}

	// Second lifetime: fresh tracker and dispatcher over the same store,
	// catch-up replays the full range.
	wm2 := watermark.NewTracker(store)
	require.NoError(t, wm2.Load(ctx))
	d2 := dispatcher.New(dispatcher.Config{MonitoredChannel: "drops"}, matchAll{}, wm2, sender, noOrigin{}, logging.Default())
	r := New(&fakeHistory{events: events}, d2, wm2, "drops", logging.Default())
	require.NoError(t, r.Run(ctx))

	for id := uint64(101); id <= 105; id++ {
		assert.Equal(t, 1, sender.forwards[id], "event %d forwarded more than once", id)
	}
	assert.Equal(t, uint64(105), wm2.Current())
}
