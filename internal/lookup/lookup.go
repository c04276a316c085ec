// Package lookup resolves free-text queries against noisy external record
// tables (boss and activity kill counts) using fuzzy string similarity,
// with a TTL-cached snapshot per subject.
package lookup

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoConfidentMatch is returned when the best similarity ratio is
	// below the confidence floor. Callers must not treat a low-confidence
	// best guess as a match.
	ErrNoConfidentMatch = errors.New("no sufficiently confident match")

	// ErrSourceUnavailable wraps record-source fetch failures. The cache
	// is left unchanged so the lookup can be retried later.
	ErrSourceUnavailable = errors.New("record source unavailable")
)

// Record is one entry of a fetched record table.
type Record struct {
	DisplayName string `json:"name"`
	Score       int64  `json:"score"`
}

// Snapshot is a fetched record table plus its fetch time. Valid while
// now - FetchedAt < TTL; refreshed lazily on the next access, never
// proactively evicted.
type Snapshot struct {
	Records   []Record  `json:"records"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Match is a confident resolution result.
type Match struct {
	Record Record `json:"record"`
	Ratio  int    `json:"ratio"`
}

// RecordSource fetches a record table snapshot for a subject key.
type RecordSource interface {
	Fetch(ctx context.Context, subjectKey string) ([]Record, error)
}
