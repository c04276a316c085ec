package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/droprelay/droprelay/internal/models"
)

// NATSSender publishes forwarded events to per-channel posting subjects.
// Valid channels have their posting subject bound to a platform stream, so
// a publish that no stream answers maps to ErrDestinationNotFound.
type NATSSender struct {
	js            jetstream.JetStream
	subjectPrefix string
}

func NewNATSSender(js jetstream.JetStream, subjectPrefix string) *NATSSender {
	return &NATSSender{js: js, subjectPrefix: subjectPrefix}
}

func (s *NATSSender) Send(ctx context.Context, destination string, ev models.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal forwarded event: %w", err)
	}

	_, err = s.js.Publish(ctx, s.subjectPrefix+destination, payload)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoStreamResponse) {
			return fmt.Errorf("%w: %s", ErrDestinationNotFound, destination)
		}
		return fmt.Errorf("publish to %s: %w", destination, err)
	}
	return nil
}
