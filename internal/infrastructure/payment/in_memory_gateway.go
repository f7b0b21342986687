package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"
)

var (
	ErrInsufficientBalance = errors.New("insufficient account balance")
	ErrUnknownReceipt      = errors.New("unknown payment receipt")
	ErrAlreadyRefunded     = errors.New("payment already refunded")
)

// PayoutHook runs after funds reach the payee, in the caller's context.
// A returned error reverts the payout.
type PayoutHook func(ctx context.Context, payee string, amount decimal.Decimal) error

// InMemoryGateway keeps account balances and a treasury holding collected funds
type InMemoryGateway struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	treasury decimal.Decimal
	receipts map[string]*heldPayment

	payoutHook PayoutHook
	failures   map[string]error
	logger     logger.Logger
}

type heldPayment struct {
	receipt  port.PaymentReceipt
	refunded bool
}

const (
	opCollect = "collect"
	opRefund  = "refund"
	opPayout  = "payout"
)

// NewInMemoryGateway creates a gateway with no funds
func NewInMemoryGateway(log logger.Logger) *InMemoryGateway {
	return &InMemoryGateway{
		balances: make(map[string]decimal.Decimal),
		receipts: make(map[string]*heldPayment),
		failures: make(map[string]error),
		logger:   log,
	}
}

// Deposit credits an account
func (g *InMemoryGateway) Deposit(account string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[account] = g.balances[account].Add(amount)
}

// Balance returns the spendable funds of an account
func (g *InMemoryGateway) Balance(account string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[account]
}

// Treasury returns the funds collected and not yet paid out or refunded
func (g *InMemoryGateway) Treasury() decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.treasury
}

func (g *InMemoryGateway) FailCollect(err error) { g.setFailure(opCollect, err) }
func (g *InMemoryGateway) FailRefund(err error)  { g.setFailure(opRefund, err) }
func (g *InMemoryGateway) FailPayout(err error)  { g.setFailure(opPayout, err) }

func (g *InMemoryGateway) setFailure(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, op)
		return
	}
	g.failures[op] = err
}

// SetPayoutHook installs a callback invoked on every successful payout
func (g *InMemoryGateway) SetPayoutHook(hook PayoutHook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payoutHook = hook
}

func (g *InMemoryGateway) Collect(ctx context.Context, payer string, amount decimal.Decimal) (port.PaymentReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.failures[opCollect]; err != nil {
		return port.PaymentReceipt{}, err
	}
	if amount.IsNegative() {
		return port.PaymentReceipt{}, fmt.Errorf("negative payment %s", amount)
	}
	balance := g.balances[payer]
	if balance.LessThan(amount) {
		return port.PaymentReceipt{}, fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, payer, balance, amount)
	}

	g.balances[payer] = balance.Sub(amount)
	g.treasury = g.treasury.Add(amount)

	receipt := port.PaymentReceipt{ID: uuid.NewString(), Payer: payer, Amount: amount}
	g.receipts[receipt.ID] = &heldPayment{receipt: receipt}
	return receipt, nil
}

func (g *InMemoryGateway) Refund(ctx context.Context, receipt port.PaymentReceipt) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.failures[opRefund]; err != nil {
		return err
	}
	held, ok := g.receipts[receipt.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReceipt, receipt.ID)
	}
	if held.refunded {
		return fmt.Errorf("%w: %s", ErrAlreadyRefunded, receipt.ID)
	}

	held.refunded = true
	g.treasury = g.treasury.Sub(held.receipt.Amount)
	g.balances[held.receipt.Payer] = g.balances[held.receipt.Payer].Add(held.receipt.Amount)
	return nil
}

func (g *InMemoryGateway) Payout(ctx context.Context, payee string, amount decimal.Decimal) error {
	g.mu.Lock()
	if err := g.failures[opPayout]; err != nil {
		g.mu.Unlock()
		return err
	}
	if g.treasury.LessThan(amount) {
		treasury := g.treasury
		g.mu.Unlock()
		return fmt.Errorf("%w: treasury has %s, needs %s", ErrInsufficientBalance, treasury, amount)
	}
	g.treasury = g.treasury.Sub(amount)
	g.balances[payee] = g.balances[payee].Add(amount)
	hook := g.payoutHook
	g.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, payee, amount); err != nil {
		g.mu.Lock()
		g.balances[payee] = g.balances[payee].Sub(amount)
		g.treasury = g.treasury.Add(amount)
		g.mu.Unlock()
		g.logger.LogWarning(ctx, "Payout reverted by receiver hook",
			"payee", payee,
			"amount", amount.String(),
			"reason", err.Error())
		return fmt.Errorf("payout hook: %w", err)
	}
	return nil
}
