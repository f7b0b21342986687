package usecase

import (
	"context"
	"fmt"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
)

// ListItem puts an asset up for sale at the given price. The owner keeps the
// asset until it is bought.
//
// Checks run in order and the first failure wins: already listed, not owner,
// price not above zero, marketplace not approved.
func (m *Marketplace) ListItem(ctx context.Context, req entity.ListItemRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	ctx, release, err := m.guard.enter(ctx)
	if err != nil {
		m.logOutcome(ctx, "list", err, "asset", req.Asset.String(), "caller", req.Caller)
		return err
	}
	defer release()

	err = m.repository.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		existing, err := tx.Listing(ctx, req.Asset)
		if err != nil {
			return fmt.Errorf("load listing: %w", err)
		}
		if existing.Active() {
			return entity.NewAlreadyListedError(req.Asset)
		}

		if err := m.requireOwner(ctx, req.Asset, req.Caller); err != nil {
			return err
		}

		if !req.Price.IsPositive() {
			return entity.NewPriceMustBeAboveZeroError(req.Asset)
		}

		approved, err := m.registry.IsApprovedForTransfer(ctx, req.Asset, m.operator)
		if err != nil {
			return fmt.Errorf("check approval: %w", err)
		}
		if !approved {
			return entity.NewNotApprovedError(req.Asset)
		}

		listing := entity.Listing{Price: req.Price, Seller: req.Caller}
		if err := tx.PutListing(ctx, req.Asset, listing); err != nil {
			return fmt.Errorf("store listing: %w", err)
		}
		return tx.AppendEvent(ctx, m.newEvent(ctx, entity.EventListed, req.Caller, req.Asset, req.Price))
	})

	m.logOutcome(ctx, "list", err,
		"asset", req.Asset.String(),
		"caller", req.Caller,
		"price", req.Price.String())
	return err
}
