package entity

import (
	"github.com/shopspring/decimal"
)

// ListItemRequest represents a request to put an asset up for sale
type ListItemRequest struct {
	Caller string
	Asset  AssetKey
	Price  decimal.Decimal
}

// Validate validates the list request. The sign of the price is left to the
// listing checks, which report PriceMustBeAboveZero after AlreadyListed and NotOwner.
func (r *ListItemRequest) Validate() error {
	if r.Caller == "" {
		return ErrMissingCaller
	}
	if err := validateAsset(r.Asset); err != nil {
		return err
	}
	if !r.Price.IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}

// BuyItemRequest represents a purchase with the payment sent along with it
type BuyItemRequest struct {
	Caller  string
	Asset   AssetKey
	Payment decimal.Decimal
}

// Validate validates the buy request
func (r *BuyItemRequest) Validate() error {
	if r.Caller == "" {
		return ErrMissingCaller
	}
	if err := validateAsset(r.Asset); err != nil {
		return err
	}
	if r.Payment.IsNegative() || !r.Payment.IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}

// CancelListingRequest represents a request to withdraw an asset from sale
type CancelListingRequest struct {
	Caller string
	Asset  AssetKey
}

// Validate validates the cancel request
func (r *CancelListingRequest) Validate() error {
	if r.Caller == "" {
		return ErrMissingCaller
	}
	return validateAsset(r.Asset)
}

// UpdateListingRequest represents a price change of an active listing
type UpdateListingRequest struct {
	Caller   string
	Asset    AssetKey
	NewPrice decimal.Decimal
}

// Validate validates the update request. A zero price is accepted.
func (r *UpdateListingRequest) Validate() error {
	if r.Caller == "" {
		return ErrMissingCaller
	}
	if err := validateAsset(r.Asset); err != nil {
		return err
	}
	if r.NewPrice.IsNegative() || !r.NewPrice.IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}

func validateAsset(k AssetKey) error {
	if k.Contract == "" {
		return ErrMissingContract
	}
	if k.TokenID == "" {
		return ErrMissingTokenID
	}
	return nil
}
