// Package dispatcher orchestrates event evaluation: watermark gating,
// signal extraction, rule matching, forwarding, and commit. It is the only
// component with side effects, and the single serialization point for
// watermark commits.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/droprelay/droprelay/internal/delivery"
	"github.com/droprelay/droprelay/internal/extractor"
	"github.com/droprelay/droprelay/internal/logging"
	"github.com/droprelay/droprelay/internal/metrics"
	"github.com/droprelay/droprelay/internal/models"
	"github.com/droprelay/droprelay/internal/rules"
	"github.com/droprelay/droprelay/internal/watermark"
)

// RuleSource supplies the rule set in effect at call time.
type RuleSource interface {
	Current() []*models.Rule
}

// Origin is the slice of the gateway the dispatcher needs: self-identity
// and best-effort origin deletion.
type Origin interface {
	IsSelf(ev models.Event) bool
	Delete(ctx context.Context, ev models.Event) error
}

// Config holds dispatcher policy.
type Config struct {
	// MonitoredChannel is the single source channel whose events are
	// evaluated. Empty disables dispatch entirely (the admin surface
	// stays usable).
	MonitoredChannel string

	// SendDelay is the fixed courtesy delay before each forwarding
	// attempt.
	SendDelay time.Duration

	// DeleteOnForward removes the origin message after at least one
	// successful forward. Off by default.
	DeleteOnForward bool
}

// Dispatcher runs each event through the evaluation state machine:
// Unseen -> Gated -> Extracted -> Evaluated -> Forwarded(n) -> Committed.
// A mutex serializes Process so commits happen in strictly increasing
// identifier order regardless of how callers are scheduled.
type Dispatcher struct {
	mu     sync.Mutex
	cfg    Config
	rules  RuleSource
	wm     *watermark.Tracker
	sender delivery.Sender
	origin Origin
	log    *logging.Logger
}

func New(cfg Config, ruleSource RuleSource, wm *watermark.Tracker, sender delivery.Sender, origin Origin, log *logging.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		rules:  ruleSource,
		wm:     wm,
		sender: sender,
		origin: origin,
		log:    log,
	}
}

// Process evaluates one event. It never returns an error for evaluation
// or forwarding failures; those are logged and the watermark still
// advances so a poison event cannot stall the stream. The only error
// surfaced is a watermark persistence failure.
func (d *Dispatcher) Process(ctx context.Context, ev models.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.MonitoredChannel == "" {
		d.log.WarnContext(ctx, "no monitored channel configured; dropping event", "event_id", ev.ID)
		return nil
	}

	// Exactly-once guard: identifiers at or below the watermark were
	// already evaluated in a previous pass or process lifetime.
	if d.wm.Seen(ev.ID) {
		metrics.EventsTotal.WithLabelValues("duplicate").Inc()
		return nil
	}

	d.evaluate(ctx, ev)

	// Commit unconditionally: forwarding failures are operational and
	// must not cause reprocessing of the same event.
	err := d.wm.Advance(ctx, ev.ID)
	if err != nil {
		d.log.ErrorContext(ctx, "watermark persistence failed", "error", err, "event_id", ev.ID)
	}
	metrics.WatermarkValue.Set(float64(d.wm.Current()))
	return err
}

// evaluate runs Gated through Forwarded(n). A panic anywhere inside is
// caught here so the caller still commits.
func (d *Dispatcher) evaluate(ctx context.Context, ev models.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.ErrorContext(ctx, "event evaluation panicked", "panic", r, "event_id", ev.ID)
		}
	}()

	// Gated: only the monitored channel is evaluated, and never the
	// relay's own messages. Everything else still commits so the next
	// catch-up pass does not reconsider it.
	if ev.Channel != d.cfg.MonitoredChannel || d.origin.IsSelf(ev) {
		metrics.EventsTotal.WithLabelValues("gated").Inc()
		return
	}

	start := time.Now()
	sig := extractor.Extract(ev)
	matched := rules.Match(sig, d.rules.Current())
	metrics.EvaluationDuration.Observe(time.Since(start).Seconds())
	metrics.EventsTotal.WithLabelValues("evaluated").Inc()

	if len(matched) == 0 {
		return
	}

	d.log.InfoContext(ctx, "event matched rules",
		"event_id", ev.ID,
		"matches", len(matched),
		"total_value", sig.TotalValue,
	)

	// Forwarded(n): one independent attempt per matched rule. Attempts
	// run concurrently; a failure on one destination never blocks the
	// others, and nothing is retried.
	var wg sync.WaitGroup
	var delivered atomic.Int64
	for _, rule := range matched {
		wg.Add(1)
		go func(rule *models.Rule) {
			defer wg.Done()
			time.Sleep(d.cfg.SendDelay)
			if err := d.forward(ctx, rule, ev); err == nil {
				delivered.Add(1)
			}
		}(rule)
	}
	wg.Wait()

	if d.cfg.DeleteOnForward && delivered.Load() > 0 {
		if err := d.origin.Delete(ctx, ev); err != nil {
			d.log.WarnContext(ctx, "failed to delete origin message", "error", err, "event_id", ev.ID)
		}
	}
}

func (d *Dispatcher) forward(ctx context.Context, rule *models.Rule, ev models.Event) error {
	err := d.sender.Send(ctx, rule.Destination, ev)
	switch {
	case err == nil:
		metrics.ForwardsTotal.WithLabelValues("success").Inc()
		d.log.InfoContext(ctx, "event forwarded",
			"event_id", ev.ID, "rule", rule.Name, "destination", rule.Destination)
	case errors.Is(err, delivery.ErrDestinationNotFound):
		metrics.ForwardsTotal.WithLabelValues("not_found").Inc()
		d.log.WarnContext(ctx, "destination channel not found",
			"event_id", ev.ID, "rule", rule.Name, "destination", rule.Destination)
	default:
		metrics.ForwardsTotal.WithLabelValues("error").Inc()
		d.log.ErrorContext(ctx, "forwarding attempt failed",
			"error", err, "event_id", ev.ID, "rule", rule.Name, "destination", rule.Destination)
	}
	return err
}
