package repository

import (
	"context"

	"shopflow/internal/domain/model"
)

type CartRepository interface {
	// ACTIVEなカートを返す。無ければErrNotFound
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	Create(ctx context.Context, cart model.Cart) (int64, error)
	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error

	// 明細を全部消す
	Clear(ctx context.Context, cartID int64) error
}
