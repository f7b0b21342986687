package entity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AssetKey identifies a unique asset by collection contract and token id.
type AssetKey struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
}

func (k AssetKey) String() string {
	return fmt.Sprintf("%s/%s", k.Contract, k.TokenID)
}

// IsZero reports whether the key is unset.
func (k AssetKey) IsZero() bool {
	return k.Contract == "" && k.TokenID == ""
}

// Listing holds the sale terms of an asset. The zero value is an absent listing.
type Listing struct {
	Price  decimal.Decimal `json:"price"`
	Seller string          `json:"seller"`
}

// Active reports whether the listing is for sale. A zero price counts as absent,
// which includes a listing whose price was updated to zero.
func (l Listing) Active() bool {
	return l.Price.IsPositive()
}

// ListingResponse is the query view of a listing.
type ListingResponse struct {
	AssetKey
	Listing
	Active bool `json:"active"`
}
