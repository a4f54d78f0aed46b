package repository

import (
	"context"

	"shopflow/internal/domain/model"
)

type WishlistRepository interface {
	ListByUserID(ctx context.Context, userID int64) ([]model.WishlistItem, error)
	FindByUserAndProduct(ctx context.Context, userID int64, productID int64) (model.WishlistItem, error)
	Create(ctx context.Context, item model.WishlistItem) error
	Delete(ctx context.Context, itemID int64) error
}
