package lookup

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/droprelay/droprelay/internal/metrics"
)

const (
	// MinRatio is the confidence floor: a result is returned only when
	// the best similarity ratio reaches it.
	MinRatio = 70

	// DefaultTTL is how long a snapshot stays fresh.
	DefaultTTL = 10 * time.Minute
)

// Cache is the TTL-cached fuzzy resolver. One snapshot per subject key;
// expired entries are refreshed transparently on the next access. Key
// growth is bounded by the number of distinct queried subjects.
type Cache struct {
	source RecordSource
	store  SnapshotStore
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCache creates a Cache over source and store. ttl <= 0 selects
// DefaultTTL.
func NewCache(source RecordSource, store SnapshotStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		source: source,
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Resolve returns the best record match for query within the subject's
// record table. The fetch-and-store for a subject is serialized by a
// per-key lock, so concurrent resolves for an uncached subject do not
// trigger duplicate fetches and never observe a half-written snapshot.
func (c *Cache) Resolve(ctx context.Context, query, subjectKey string) (Match, error) {
	key := normalizeKey(subjectKey)

	lock := c.keyLock(key)
	lock.Lock()
	snap, err := c.freshSnapshot(ctx, key)
	lock.Unlock()
	if err != nil {
		metrics.LookupsTotal.WithLabelValues("fetch_error").Inc()
		return Match{}, err
	}

	best, ok := bestMatch(query, snap.Records)
	if !ok {
		metrics.LookupsTotal.WithLabelValues("no_match").Inc()
		return Match{}, fmt.Errorf("%w for %q (best ratio %d)", ErrNoConfidentMatch, query, best.Ratio)
	}
	metrics.LookupsTotal.WithLabelValues("hit").Inc()
	return best, nil
}

// freshSnapshot returns the cached snapshot for key, fetching a new one
// when the entry is missing or older than the TTL. A fetch failure leaves
// the stored snapshot unchanged.
func (c *Cache) freshSnapshot(ctx context.Context, key string) (Snapshot, error) {
	snap, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return Snapshot{}, err
	}
	if ok && c.now().Sub(snap.FetchedAt) < c.ttl {
		return snap, nil
	}

	records, err := c.source.Fetch(ctx, key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	metrics.LookupCacheRefreshes.Inc()

	snap = Snapshot{Records: records, FetchedAt: c.now()}
	if err := c.store.Put(ctx, key, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// bestMatch scans the table in source order, tracking the maximum
// similarity ratio against the lowercased query. An exact 100 stops the
// scan; ties keep the first-encountered candidate. ok is false when the
// best ratio is below MinRatio.
func bestMatch(query string, records []Record) (Match, bool) {
	q := strings.ToLower(query)
	best := Match{Ratio: -1}
	for _, rec := range records {
		ratio := fuzzy.Ratio(q, strings.ToLower(rec.DisplayName))
		if ratio > best.Ratio {
			best = Match{Record: rec, Ratio: ratio}
			if ratio == 100 {
				break
			}
		}
	}
	if best.Ratio < MinRatio {
		return best, false
	}
	return best, true
}

func normalizeKey(subjectKey string) string {
	return strings.ToLower(strings.TrimSpace(subjectKey))
}
