// Package delivery forwards matched events to destination channels.
package delivery

import (
	"context"
	"errors"

	"github.com/droprelay/droprelay/internal/models"
)

// ErrDestinationNotFound indicates the destination channel does not exist
// on the platform. Callers treat it as a configuration warning; any other
// send error is a transient delivery failure.
var ErrDestinationNotFound = errors.New("destination channel not found")

// Sender delivers one event payload to a destination channel. A single
// attempt is final: there is no retry for a given rule/event pair.
type Sender interface {
	Send(ctx context.Context, destination string, ev models.Event) error
}
