package events

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Kind names a notification consumed by off-chain indexers.
type Kind string

const (
	KindBadgeClaimed         Kind = "BadgeClaimed"
	KindBadgeCreated         Kind = "BadgeCreated"
	KindOwnershipTransferred Kind = "OwnershipTransferred"
)

// Event is emitted from domain logic inside the same unit of work as the state
// change it describes, so it exists if and only if the change committed.
//
// Source is the emitting entity: the collection for BadgeClaimed and a
// collection's OwnershipTransferred, the registry for BadgeCreated and the
// registry's OwnershipTransferred.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Kind      Kind           `json:"kind"`
	Source    common.Address `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id,omitempty"`

	// BadgeClaimed
	Claimant common.Address `json:"claimant,omitzero"`
	TokenID  uint64         `json:"token_id,omitzero"`

	// BadgeCreated
	Creator    common.Address `json:"creator,omitzero"`
	Collection common.Address `json:"collection,omitzero"`

	// OwnershipTransferred
	PreviousOwner common.Address `json:"previous_owner,omitzero"`
	NewOwner      common.Address `json:"new_owner,omitzero"`
}

func BadgeClaimed(collection, claimant common.Address, tokenID uint64) Event {
	return Event{Kind: KindBadgeClaimed, Source: collection, Claimant: claimant, TokenID: tokenID}
}

func BadgeCreated(registry, creator, collection common.Address) Event {
	return Event{Kind: KindBadgeCreated, Source: registry, Creator: creator, Collection: collection}
}

func OwnershipTransferred(source, previous, next common.Address) Event {
	return Event{Kind: KindOwnershipTransferred, Source: source, PreviousOwner: previous, NewOwner: next}
}

// Store persists events. Append must join the caller's transaction when one is
// present in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySource(ctx context.Context, source common.Address, kinds []Kind, limit int) ([]Event, error)
}
