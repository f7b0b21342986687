package entity

import (
	"github.com/shopspring/decimal"
)

// ProceedsResponse represents the pending proceeds of a seller
type ProceedsResponse struct {
	Seller   string          `json:"seller"`
	Proceeds decimal.Decimal `json:"proceeds"`
}

// ParseAmount parses a whole amount in the smallest currency unit. The sign is
// checked by the request that carries the amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsInteger() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
