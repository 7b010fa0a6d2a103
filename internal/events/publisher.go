// Package events models the notifications emitted by collections and the
// registry, and the sinks that carry them to indexers.
package events

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"chronostamp/pkg/requestcontext"
)

// Publisher stamps and persists events. It is append-only and synchronous:
// emission failing aborts the surrounding unit of work.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, e Event) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	return p.store.Append(ctx, e)
}

// List returns up to limit events emitted by source, oldest first. An empty
// kinds slice matches every kind.
func (p *Publisher) List(ctx context.Context, source common.Address, kinds []Kind, limit int) ([]Event, error) {
	return p.store.ListBySource(ctx, source, kinds, limit)
}

// Discard drops events; used where notifications are not wired.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }
