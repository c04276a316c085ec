// Package gateway connects the relay to the chat platform: the live event
// stream, paged history for catch-up replay, and origin-message deletion.
package gateway

import (
	"context"

	"github.com/droprelay/droprelay/internal/models"
)

// Handler processes one inbound event.
type Handler func(ctx context.Context, ev models.Event) error

// Source is the chat-gateway contract the core depends on.
type Source interface {
	// Subscribe starts delivering live events with identifiers strictly
	// greater than afterID to handler, in order. The returned stop
	// function cancels the subscription.
	Subscribe(ctx context.Context, afterID uint64, handler Handler) (func(), error)

	// History invokes fn for every historical event with identifier
	// strictly greater than afterID, oldest first, synchronously. An
	// error from fn aborts the iteration.
	History(ctx context.Context, afterID uint64, fn Handler) error

	// IsSelf reports whether the event was authored by the relay itself.
	IsSelf(ev models.Event) bool

	// Delete removes the origin message from the platform. Best effort;
	// only used when the delete-on-forward policy is enabled.
	Delete(ctx context.Context, ev models.Event) error
}
