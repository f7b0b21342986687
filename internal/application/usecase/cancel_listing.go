package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
)

// CancelListing removes the caller's listing
func (m *Marketplace) CancelListing(ctx context.Context, req entity.CancelListingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, release, err := m.guard.enter(ctx)
	if err != nil {
		m.logOutcome(ctx, "cancel", err, "asset", req.Asset.String(), "caller", req.Caller)
		return err
	}
	defer release()

	err = m.repository.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		listing, err := tx.Listing(ctx, req.Asset)
		if err != nil {
			return fmt.Errorf("load listing: %w", err)
		}
		if !listing.Active() {
			return entity.NewNotListedError(req.Asset)
		}
		if err := m.requireOwner(ctx, req.Asset, req.Caller); err != nil {
			return err
		}

		if err := tx.DeleteListing(ctx, req.Asset); err != nil {
			return fmt.Errorf("delete listing: %w", err)
		}
		return tx.AppendEvent(ctx, m.newEvent(ctx, entity.EventCancelled, req.Caller, req.Asset, decimal.Zero))
	})

	m.logOutcome(ctx, "cancel", err, "asset", req.Asset.String(), "caller", req.Caller)
	return err
}
