package port

import (
	"context"

	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/entity"
)

// LedgerRepository is the port for the listing and proceeds tables.
// All mutations go through WithinTx; the plain getters read committed state.
type LedgerRepository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	GetListing(ctx context.Context, key entity.AssetKey) (entity.Listing, error)
	GetProceeds(ctx context.Context, seller string) (decimal.Decimal, error)
	Close() error
}

// LedgerTx is a unit of work. Writes become visible only when the function
// passed to WithinTx returns nil.
type LedgerTx interface {
	Listing(ctx context.Context, key entity.AssetKey) (entity.Listing, error)
	PutListing(ctx context.Context, key entity.AssetKey, listing entity.Listing) error
	DeleteListing(ctx context.Context, key entity.AssetKey) error
	Proceeds(ctx context.Context, seller string) (decimal.Decimal, error)
	SetProceeds(ctx context.Context, seller string, amount decimal.Decimal) error
	AppendEvent(ctx context.Context, event entity.Event) error
}

// EventLog exposes the committed notifications to readers and the outbox relay.
type EventLog interface {
	ListEvents(ctx context.Context, afterSequence int64, limit int) ([]entity.Event, error)
	PendingEvents(ctx context.Context, limit int) ([]entity.Event, error)
	MarkPublished(ctx context.Context, sequences []int64) error
}

// LedgerStore is a repository that also owns the event log.
type LedgerStore interface {
	LedgerRepository
	EventLog
}
