package repository

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"
)

// InMemoryLedger implements the LedgerStore port
type InMemoryLedger struct {
	txMu sync.Mutex // one transaction at a time

	mu        sync.RWMutex
	listings  map[entity.AssetKey]entity.Listing
	proceeds  map[string]decimal.Decimal
	events    []entity.Event
	published []bool
	logger    logger.Logger
}

// NewInMemoryLedger creates a new in-memory ledger
func NewInMemoryLedger(logger logger.Logger) port.LedgerStore {
	return &InMemoryLedger{
		listings: make(map[entity.AssetKey]entity.Listing),
		proceeds: make(map[string]decimal.Decimal),
		events:   make([]entity.Event, 0),
		logger:   logger,
	}
}

// WithinTx runs fn against staged writes and applies them only if fn succeeds
func (l *InMemoryLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	l.txMu.Lock()
	defer l.txMu.Unlock()

	tx := &memoryTx{
		ledger:   l,
		listings: make(map[entity.AssetKey]*entity.Listing),
		proceeds: make(map[string]decimal.Decimal),
	}
	if err := fn(ctx, tx); err != nil {
		l.logger.LogWarning(ctx, "Ledger transaction rolled back",
			"staged_listings", len(tx.listings),
			"staged_proceeds", len(tx.proceeds),
			"reason", err.Error())
		return err
	}

	l.commit(tx)
	return nil
}

func (l *InMemoryLedger) commit(tx *memoryTx) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, listing := range tx.listings {
		if listing == nil {
			delete(l.listings, key)
			continue
		}
		l.listings[key] = *listing
	}
	for seller, amount := range tx.proceeds {
		if amount.IsZero() {
			delete(l.proceeds, seller)
			continue
		}
		l.proceeds[seller] = amount
	}
	for _, event := range tx.events {
		event.Sequence = int64(len(l.events)) + 1
		l.events = append(l.events, event)
		l.published = append(l.published, false)
	}
}

// GetListing returns the committed listing for an asset
func (l *InMemoryLedger) GetListing(ctx context.Context, key entity.AssetKey) (entity.Listing, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listings[key], nil
}

// GetProceeds returns the committed proceeds of a seller
func (l *InMemoryLedger) GetProceeds(ctx context.Context, seller string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	amount, ok := l.proceeds[seller]
	if !ok {
		return decimal.Zero, nil
	}
	return amount, nil
}

// ListEvents returns up to limit events with a sequence above afterSequence
func (l *InMemoryLedger) ListEvents(ctx context.Context, afterSequence int64, limit int) ([]entity.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if afterSequence < 0 {
		afterSequence = 0
	}
	if afterSequence >= int64(len(l.events)) {
		return []entity.Event{}, nil
	}
	end := len(l.events)
	if limit > 0 && int(afterSequence)+limit < end {
		end = int(afterSequence) + limit
	}

	// Copy so callers cannot alias the log
	out := make([]entity.Event, end-int(afterSequence))
	copy(out, l.events[afterSequence:end])
	return out, nil
}

// PendingEvents returns up to limit events not yet marked published, oldest first
func (l *InMemoryLedger) PendingEvents(ctx context.Context, limit int) ([]entity.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]entity.Event, 0)
	for i, event := range l.events {
		if l.published[i] {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished flags events as delivered to the event bus
func (l *InMemoryLedger) MarkPublished(ctx context.Context, sequences []int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, seq := range sequences {
		if seq < 1 || seq > int64(len(l.published)) {
			continue
		}
		l.published[seq-1] = true
	}
	return nil
}

// Close is a no-op for the in-memory ledger
func (l *InMemoryLedger) Close() error {
	return nil
}

// memoryTx stages writes on top of the committed maps. A nil listing marks a delete.
type memoryTx struct {
	ledger   *InMemoryLedger
	listings map[entity.AssetKey]*entity.Listing
	proceeds map[string]decimal.Decimal
	events   []entity.Event
}

func (tx *memoryTx) Listing(ctx context.Context, key entity.AssetKey) (entity.Listing, error) {
	if staged, ok := tx.listings[key]; ok {
		if staged == nil {
			return entity.Listing{}, nil
		}
		return *staged, nil
	}
	return tx.ledger.GetListing(ctx, key)
}

func (tx *memoryTx) PutListing(ctx context.Context, key entity.AssetKey, listing entity.Listing) error {
	tx.listings[key] = &listing
	return nil
}

func (tx *memoryTx) DeleteListing(ctx context.Context, key entity.AssetKey) error {
	tx.listings[key] = nil
	return nil
}

func (tx *memoryTx) Proceeds(ctx context.Context, seller string) (decimal.Decimal, error) {
	if staged, ok := tx.proceeds[seller]; ok {
		return staged, nil
	}
	return tx.ledger.GetProceeds(ctx, seller)
}

func (tx *memoryTx) SetProceeds(ctx context.Context, seller string, amount decimal.Decimal) error {
	tx.proceeds[seller] = amount
	return nil
}

func (tx *memoryTx) AppendEvent(ctx context.Context, event entity.Event) error {
	tx.events = append(tx.events, event)
	return nil
}
