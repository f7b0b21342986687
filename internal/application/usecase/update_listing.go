package usecase

import (
	"context"
	"fmt"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
)

// UpdateListing changes the price of an active listing. The seller is kept.
// A zero price is accepted and leaves the asset unlisted.
func (m *Marketplace) UpdateListing(ctx context.Context, req entity.UpdateListingRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, release, err := m.guard.enter(ctx)
	if err != nil {
		m.logOutcome(ctx, "update", err, "asset", req.Asset.String(), "caller", req.Caller)
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

		listing.Price = req.NewPrice
		if err := tx.PutListing(ctx, req.Asset, listing); err != nil {
			return fmt.Errorf("store listing: %w", err)
		}
		return tx.AppendEvent(ctx, m.newEvent(ctx, entity.EventListed, req.Caller, req.Asset, req.NewPrice))
	})

	m.logOutcome(ctx, "update", err,
		"asset", req.Asset.String(),
		"caller", req.Caller,
		"price", req.NewPrice.String())
	return err
}
