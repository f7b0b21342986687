package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"
)

// DefaultLockWait bounds how long a mutating operation waits for the ledger.
const DefaultLockWait = 5 * time.Second

// MarketplaceConfig holds the ledger settings
type MarketplaceConfig struct {
	// Operator is the identity the registry must have approved to move listed assets.
	Operator string
	LockWait time.Duration
	// FailFast rejects a call with ErrLedgerBusy as soon as another operation
	// holds the ledger instead of waiting up to LockWait.
	FailFast bool
	Clock    func() time.Time
}

// Marketplace is the listing and proceeds ledger. Every mutating operation is a
// single transaction on the repository, serialized through one critical section.
type Marketplace struct {
	repository port.LedgerRepository
	registry   port.AssetRegistry
	payments   port.PaymentGateway
	operator   string
	clock      func() time.Time
	guard      *reentrancyGuard
	logger     logger.Logger
}

// NewMarketplace creates a new Marketplace
func NewMarketplace(
	repository port.LedgerRepository,
	registry port.AssetRegistry,
	payments port.PaymentGateway,
	cfg MarketplaceConfig,
	log logger.Logger,
) *Marketplace {
	wait := cfg.LockWait
	if wait <= 0 {
		wait = DefaultLockWait
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	guard := newReentrancyGuard(wait)
	guard.failFast = cfg.FailFast

	return &Marketplace{
		repository: repository,
		registry:   registry,
		payments:   payments,
		operator:   cfg.Operator,
		clock:      clock,
		guard:      guard,
		logger:     log.With("module", "marketplace"),
	}
}

// Operator returns the identity the marketplace acts as at the registry.
func (m *Marketplace) Operator() string {
	return m.operator
}

func (m *Marketplace) requireOwner(ctx context.Context, key entity.AssetKey, caller string) error {
	owner, err := m.registry.OwnerOf(ctx, key)
	if err != nil {
		return fmt.Errorf("lookup owner: %w", err)
	}
	if owner != caller {
		return entity.NewNotOwnerError(key, caller)
	}
	return nil
}

func (m *Marketplace) newEvent(
	ctx context.Context,
	eventType entity.EventType,
	account string,
	key entity.AssetKey,
	price decimal.Decimal,
) entity.Event {
	return entity.Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Account:       account,
		Asset:         key,
		Price:         price,
		CorrelationID: CorrelationID(ctx),
		OccurredAt:    m.clock().UTC(),
	}
}

// logOutcome logs domain rejections as warnings and everything else as errors.
func (m *Marketplace) logOutcome(ctx context.Context, op string, err error, attrs ...any) {
	attrs = append(attrs, "operation", op)
	var ledgerErr *entity.LedgerError
	switch {
	case err == nil:
		m.logger.LogInfo(ctx, "Ledger operation committed", attrs...)
	case errors.As(err, &ledgerErr) && !errors.Is(err, entity.ErrTransferFailed),
		errors.Is(err, entity.ErrReentrantCall),
		errors.Is(err, entity.ErrLedgerBusy):
		m.logger.LogWarning(ctx, "Ledger operation rejected", append(attrs, "reason", err.Error())...)
	default:
		m.logger.LogError(ctx, "Ledger operation failed", err, attrs...)
	}
}
