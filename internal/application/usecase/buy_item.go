package usecase

import (
	"context"
	"errors"
	"fmt"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
)

// BuyItem sells a listed asset to the caller. The whole payment is credited to the
// seller, including any amount above the asking price.
//
// Ledger state is updated before any external call: proceeds are credited and the
// listing removed, then the payment is collected and the asset transferred. If
// either external step fails the transaction is rolled back.
//
// Once the guard is held the transaction runs on a context that ignores
// cancellation, so a caller going away after the transfer cannot undo the sale.
func (m *Marketplace) BuyItem(ctx context.Context, req entity.BuyItemRequest) (entity.Listing, error) {
	if err := req.Validate(); err != nil {
		return entity.Listing{}, err
	}

	ctx, release, err := m.guard.enter(ctx)
	if err != nil {
		m.logOutcome(ctx, "buy", err, "asset", req.Asset.String(), "caller", req.Caller)
		return entity.Listing{}, err
	}
	defer release()

	requestCtx := ctx
	var (
		sold        entity.Listing
		transferred bool
	)
	err = m.repository.WithinTx(context.WithoutCancel(ctx), func(ctx context.Context, tx port.LedgerTx) error {
		listing, err := tx.Listing(ctx, req.Asset)
		if err != nil {
			return fmt.Errorf("load listing: %w", err)
		}
		if !listing.Active() {
			return entity.NewNotListedError(req.Asset)
		}
		if req.Payment.LessThan(listing.Price) {
			return entity.NewNotEnoughFundsError(req.Asset, listing.Price)
		}

		proceeds, err := tx.Proceeds(ctx, listing.Seller)
		if err != nil {
			return fmt.Errorf("load proceeds: %w", err)
		}
		if err := tx.SetProceeds(ctx, listing.Seller, proceeds.Add(req.Payment)); err != nil {
			return fmt.Errorf("credit proceeds: %w", err)
		}
		if err := tx.DeleteListing(ctx, req.Asset); err != nil {
			return fmt.Errorf("delete listing: %w", err)
		}
		if err := tx.AppendEvent(ctx, m.newEvent(ctx, entity.EventBought, req.Caller, req.Asset, listing.Price)); err != nil {
			return fmt.Errorf("append event: %w", err)
		}

		// Nothing external has happened yet, so a cancelled request can still back out
		if err := requestCtx.Err(); err != nil {
			return err
		}

		receipt, err := m.payments.Collect(ctx, req.Caller, req.Payment)
		if err != nil {
			return entity.NewTransferFailedError(req.Caller, err)
		}

		if err := m.registry.Transfer(ctx, req.Asset, listing.Seller, req.Caller); err != nil {
			transferErr := entity.NewAssetTransferFailedError(req.Asset, req.Caller, err)
			if refundErr := m.payments.Refund(ctx, receipt); refundErr != nil {
				m.logger.LogError(ctx, "Refund after failed asset transfer failed", refundErr,
					"receipt", receipt.ID,
					"payer", receipt.Payer,
					"amount", receipt.Amount.String())
				return errors.Join(transferErr, fmt.Errorf("refund payment %s: %w", receipt.ID, refundErr))
			}
			return transferErr
		}

		transferred = true
		sold = listing
		return nil
	})

	if err != nil && transferred {
		// The buyer holds the asset and the payment stays collected; the seller's
		// credit has to be reconciled from this log entry.
		m.logger.LogError(ctx, "Ledger commit failed after asset transfer", err,
			"asset", req.Asset.String(),
			"buyer", req.Caller,
			"seller", sold.Seller,
			"payment", req.Payment.String())
		err = fmt.Errorf("settle sale of %s after asset transfer: %w", req.Asset, err)
	}

	m.logOutcome(ctx, "buy", err,
		"asset", req.Asset.String(),
		"caller", req.Caller,
		"payment", req.Payment.String())
	if err != nil {
		return entity.Listing{}, err
	}
	return sold, nil
}
