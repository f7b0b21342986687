package port

import (
	"context"

	"bazaar.com/internal/domain/entity"
)

// AssetRegistry is the port to the external system of record for asset ownership.
type AssetRegistry interface {
	OwnerOf(ctx context.Context, key entity.AssetKey) (string, error)
	IsApprovedForTransfer(ctx context.Context, key entity.AssetKey, operator string) (bool, error)
	Transfer(ctx context.Context, key entity.AssetKey, from, to string) error
}
