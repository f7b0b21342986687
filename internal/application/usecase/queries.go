package usecase

import (
	"context"

	"bazaar.com/internal/domain/entity"
)

// GetListing returns the listing of an asset. An unlisted asset yields the zero listing.
func (m *Marketplace) GetListing(ctx context.Context, key entity.AssetKey) (*entity.ListingResponse, error) {
	listing, err := m.repository.GetListing(ctx, key)
	if err != nil {
		return nil, err
	}
	return &entity.ListingResponse{
		AssetKey: key,
		Listing:  listing,
		Active:   listing.Active(),
	}, nil
}

// GetProceeds returns the amount owed to a seller, zero if nothing is owed.
func (m *Marketplace) GetProceeds(ctx context.Context, seller string) (*entity.ProceedsResponse, error) {
	amount, err := m.repository.GetProceeds(ctx, seller)
	if err != nil {
		return nil, err
	}
	return &entity.ProceedsResponse{
		Seller:   seller,
		Proceeds: amount,
	}, nil
}
