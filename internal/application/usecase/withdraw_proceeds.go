package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
)

// WithdrawProceeds pays the caller's whole pending balance out and returns the
// amount paid. The zeroed balance is committed before the payout is attempted,
// and a failed payout credits it back. A commit that fails therefore never
// leaves a paid seller still owed the same amount. Once the guard is held,
// cancelling ctx no longer stops the withdrawal.
func (m *Marketplace) WithdrawProceeds(ctx context.Context, caller string) (decimal.Decimal, error) {
	if caller == "" {
		return decimal.Zero, entity.ErrMissingCaller
	}

	ctx, release, err := m.guard.enter(ctx)
	if err != nil {
		m.logOutcome(ctx, "withdraw", err, "caller", caller)
		return decimal.Zero, err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		m.logOutcome(ctx, "withdraw", err, "caller", caller)
		return decimal.Zero, err
	}

	// From here on the caller going away cannot interrupt the settlement
	settleCtx := context.WithoutCancel(ctx)
	balance, err := m.drainProceeds(settleCtx, caller)
	if err != nil {
		m.logOutcome(ctx, "withdraw", err, "caller", caller)
		return decimal.Zero, err
	}

	if payoutErr := m.payments.Payout(settleCtx, caller, balance); payoutErr != nil {
		err = entity.NewTransferFailedError(caller, payoutErr)
		if restoreErr := m.restoreProceeds(settleCtx, caller, balance); restoreErr != nil {
			m.logger.LogError(settleCtx, "Restoring proceeds after failed payout failed", restoreErr,
				"caller", caller,
				"amount", balance.String())
			err = errors.Join(err, fmt.Errorf("restore proceeds: %w", restoreErr))
		}
		m.logOutcome(settleCtx, "withdraw", err, "caller", caller, "amount", balance.String())
		return decimal.Zero, err
	}

	m.logOutcome(settleCtx, "withdraw", nil, "caller", caller, "amount", balance.String())
	return balance, nil
}

// drainProceeds zeroes the caller's balance and returns what it held.
func (m *Marketplace) drainProceeds(ctx context.Context, caller string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := m.repository.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		current, err := tx.Proceeds(ctx, caller)
		if err != nil {
			return fmt.Errorf("load proceeds: %w", err)
		}
		if !current.IsPositive() {
			return entity.NewNoProceedsError(caller)
		}
		if err := tx.SetProceeds(ctx, caller, decimal.Zero); err != nil {
			return fmt.Errorf("zero proceeds: %w", err)
		}
		balance = current
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (m *Marketplace) restoreProceeds(ctx context.Context, caller string, amount decimal.Decimal) error {
	return m.repository.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		current, err := tx.Proceeds(ctx, caller)
		if err != nil {
			return fmt.Errorf("load proceeds: %w", err)
		}
		return tx.SetProceeds(ctx, caller, current.Add(amount))
	})
}
