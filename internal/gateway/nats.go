package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/droprelay/droprelay/internal/logging"
	"github.com/droprelay/droprelay/internal/models"
)

const historyBatchSize = 100

// Config holds the JetStream gateway configuration.
type Config struct {
	// Stream is the JetStream stream that captures all channel events.
	Stream string

	// SubjectPrefix is prepended to a channel ID to form its event
	// subject, e.g. "chat.events." + channel.
	SubjectPrefix string

	// BotUser is the relay's own author identity; events it authored are
	// excluded before dispatch.
	BotUser string
}

// NATSSource implements Source on a JetStream stream. Event identifiers
// are the stream sequence numbers, which the platform assigns strictly
// increasing; the core relies on that ordering for watermark dedup.
type NATSSource struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	cfg    Config
	log    *logging.Logger
}

// NewNATSSource binds to the configured stream, creating it when absent
// (single-node development setups).
func NewNATSSource(ctx context.Context, js jetstream.JetStream, cfg Config, log *logging.Logger) (*NATSSource, error) {
	stream, err := js.Stream(ctx, cfg.Stream)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		stream, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:      cfg.Stream,
			Subjects:  []string{cfg.SubjectPrefix + ">"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("bind event stream %s: %w", cfg.Stream, err)
	}

	return &NATSSource{js: js, stream: stream, cfg: cfg, log: log}, nil
}

func (s *NATSSource) Subscribe(ctx context.Context, afterID uint64, handler Handler) (func(), error) {
	cons, err := s.consumerAfter(ctx, afterID)
	if err != nil {
		return nil, fmt.Errorf("create live consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		ev, err := s.eventFromMsg(msg)
		if err != nil {
			s.log.ErrorContext(ctx, "dropping undecodable event", "error", err, "subject", msg.Subject())
			return
		}
		if err := handler(ctx, ev); err != nil {
			s.log.ErrorContext(ctx, "live event handler failed", "error", err, "event_id", ev.ID)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start live consume: %w", err)
	}

	return cc.Stop, nil
}

func (s *NATSSource) History(ctx context.Context, afterID uint64, fn Handler) error {
	cons, err := s.consumerAfter(ctx, afterID)
	if err != nil {
		return fmt.Errorf("create history consumer: %w", err)
	}

	for {
		batch, err := cons.FetchNoWait(historyBatchSize)
		if err != nil {
			return fmt.Errorf("fetch history batch: %w", err)
		}

		received := 0
		for msg := range batch.Messages() {
			received++
			ev, err := s.eventFromMsg(msg)
			if err != nil {
				s.log.ErrorContext(ctx, "skipping undecodable history event", "error", err, "subject", msg.Subject())
				continue
			}
			if err := fn(ctx, ev); err != nil {
				return err
			}
		}
		if err := batch.Error(); err != nil {
			return fmt.Errorf("drain history batch: %w", err)
		}
		if received == 0 {
			return nil
		}
	}
}

func (s *NATSSource) IsSelf(ev models.Event) bool {
	return s.cfg.BotUser != "" && ev.Author == s.cfg.BotUser
}

func (s *NATSSource) Delete(ctx context.Context, ev models.Event) error {
	if err := s.stream.DeleteMsg(ctx, ev.ID); err != nil {
		return fmt.Errorf("delete origin message %d: %w", ev.ID, err)
	}
	return nil
}

// consumerAfter creates an ephemeral consumer positioned just past
// afterID. Ephemeral is deliberate: the watermark, not consumer state, is
// the source of truth for progress.
func (s *NATSSource) consumerAfter(ctx context.Context, afterID uint64) (jetstream.Consumer, error) {
	return s.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		DeliverPolicy:     jetstream.DeliverByStartSequencePolicy,
		OptStartSeq:       afterID + 1,
		AckPolicy:         jetstream.AckNonePolicy,
		InactiveThreshold: 5 * time.Minute,
	})
}

// eventFromMsg decodes the payload and stamps the transport-level fields:
// the identifier comes from the stream sequence and the channel from the
// subject, never from the payload.
func (s *NATSSource) eventFromMsg(msg jetstream.Msg) (models.Event, error) {
	var ev models.Event
	if len(msg.Data()) > 0 {
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			return models.Event{}, fmt.Errorf("decode event payload: %w", err)
		}
	}

	meta, err := msg.Metadata()
	if err != nil {
		return models.Event{}, fmt.Errorf("read message metadata: %w", err)
	}
	ev.ID = meta.Sequence.Stream
	ev.Channel = strings.TrimPrefix(msg.Subject(), s.cfg.SubjectPrefix)
	return ev, nil
}
