package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentReceipt identifies a collected payment so it can be refunded.
type PaymentReceipt struct {
	ID     string          `json:"id"`
	Payer  string          `json:"payer"`
	Amount decimal.Decimal `json:"amount"`
}

// PaymentGateway is the port for value transfer in and out of the ledger.
// Every call reports success or failure synchronously.
type PaymentGateway interface {
	Collect(ctx context.Context, payer string, amount decimal.Decimal) (PaymentReceipt, error)
	Refund(ctx context.Context, receipt PaymentReceipt) error
	Payout(ctx context.Context, payee string, amount decimal.Decimal) error
}
