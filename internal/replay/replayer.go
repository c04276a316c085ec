// Package replay reconciles offline gaps: on startup it pages through
// historical events past the watermark and feeds them to the dispatcher.
package replay

import (
	"context"
	"fmt"

	"github.com/droprelay/droprelay/internal/gateway"
	"github.com/droprelay/droprelay/internal/logging"
	"github.com/droprelay/droprelay/internal/metrics"
	"github.com/droprelay/droprelay/internal/models"
	"github.com/droprelay/droprelay/internal/watermark"
)

// Processor is the dispatcher slice the replayer drives.
type Processor interface {
	Process(ctx context.Context, ev models.Event) error
}

// History is the gateway slice the replayer reads from.
type History interface {
	History(ctx context.Context, afterID uint64, fn gateway.Handler) error
}

// Replayer drains history strictly after the current watermark, oldest
// first, through the dispatcher. It runs to completion before live events
// are allowed to commit so there is a single writer on the watermark.
type Replayer struct {
	source           History
	processor        Processor
	wm               *watermark.Tracker
	monitoredChannel string
	log              *logging.Logger
}

func New(source History, processor Processor, wm *watermark.Tracker, monitoredChannel string, log *logging.Logger) *Replayer {
	return &Replayer{
		source:           source,
		processor:        processor,
		wm:               wm,
		monitoredChannel: monitoredChannel,
		log:              log,
	}
}

// Run replays missed events synchronously and sequentially. When history
// is unreachable it logs and returns the error with the watermark
// untouched; the next startup retries. With no monitored channel
// configured it warns and no-ops so administrative operations stay usable.
func (r *Replayer) Run(ctx context.Context) error {
	if r.monitoredChannel == "" {
		r.log.WarnContext(ctx, "no monitored channel configured; skipping catch-up replay")
		return nil
	}

	after := r.wm.Current()
	r.log.InfoContext(ctx, "starting catch-up replay", "after_id", after)

	replayed := 0
	err := r.source.History(ctx, after, func(ctx context.Context, ev models.Event) error {
		if err := r.processor.Process(ctx, ev); err != nil {
			return fmt.Errorf("replay event %d: %w", ev.ID, err)
		}
		replayed++
		metrics.ReplayedTotal.Inc()
		return nil
	})
	if err != nil {
		r.log.ErrorContext(ctx, "catch-up replay failed", "error", err, "replayed", replayed)
		return err
	}

	r.log.InfoContext(ctx, "catch-up replay complete", "replayed", replayed, "watermark", r.wm.Current())
	return nil
}
