package repository

import (
	"context"

	"shopflow/internal/domain/model"
)

type CartItemRepository interface {
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	FindByCartAndProduct(ctx context.Context, cartID int64, productID int64) (model.CartItem, error)
	Create(ctx context.Context, item model.CartItem) (int64, error)
	UpdateQuantity(ctx context.Context, itemID int64, quantity int64) error
	Delete(ctx context.Context, itemID int64) error
}
