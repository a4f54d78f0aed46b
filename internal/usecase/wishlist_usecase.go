package usecase

import (
	"context"
	"errors"
	"time"

	"shopflow/internal/apperr"
	"shopflow/internal/domain/model"
	repo "shopflow/internal/repository"
)

// WishlistUsecase はトグル方式。既に入っていれば外す
type WishlistUsecase struct {
	tx repo.TransactionManager
}

func NewWishlistUsecase(tx repo.TransactionManager) *WishlistUsecase {
	return &WishlistUsecase{tx: tx}
}

type WishlistEntryOutput struct {
	ProductID int64         `json:"product_id"`
	Product   model.Product `json:"product"`
	AddedAt   time.Time     `json:"added_at"`
}

type ToggleWishlistOutput struct {
	Added bool `json:"added"`
}

func (u *WishlistUsecase) ToggleProduct(ctx context.Context, userID int64, productID int64) (ToggleWishlistOutput, error) {
	var out ToggleWishlistOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Users().FindByID(ctx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return apperr.Wrap(apperr.ErrNotFound, "user %d", userID)
			}
			return apperr.Wrap(apperr.ErrInternal, "find user: %v", err)
		}

		if _, err := r.Products().FindByID(ctx, productID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return apperr.Wrap(apperr.ErrNotFound, "product %d", productID)
			}
			return apperr.Wrap(apperr.ErrInternal, "find product: %v", err)
		}

		existing, err := r.Wishlist().FindByUserAndProduct(ctx, userID, productID)
		if err == nil {
			if err := r.Wishlist().Delete(ctx, existing.ID); err != nil {
				return apperr.Wrap(apperr.ErrInternal, "delete wishlist item: %v", err)
			}
			out = ToggleWishlistOutput{Added: false}
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrInternal, "find wishlist item: %v", err)
		}

		if err := r.Wishlist().Create(ctx, model.WishlistItem{
			UserID:    userID,
			ProductID: productID,
			CreatedAt: time.Now(),
		}); err != nil {
			return apperr.Wrap(apperr.ErrInternal, "create wishlist item: %v", err)
		}
		out = ToggleWishlistOutput{Added: true}
		return nil
	})

	if err != nil {
		return ToggleWishlistOutput{}, err
	}
	return out, nil
}

// ListWishlist は消えた商品を除外して返す
func (u *WishlistUsecase) ListWishlist(ctx context.Context, userID int64) ([]WishlistEntryOutput, error) {
	var outs []WishlistEntryOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, err := r.Wishlist().ListByUserID(ctx, userID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list wishlist: %v", err)
		}

		outs = make([]WishlistEntryOutput, 0, len(items))
		for _, it := range items {
			p, err := r.Products().FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			if err != nil {
				return apperr.Wrap(apperr.ErrInternal, "find product: %v", err)
			}
			outs = append(outs, WishlistEntryOutput{
				ProductID: it.ProductID,
				Product:   p,
				AddedAt:   it.CreatedAt,
			})
		}
		return nil
	})

	if err != nil {
		return []WishlistEntryOutput{}, err
	}
	return outs, nil
}
