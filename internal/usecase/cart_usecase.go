package usecase

import (
	"context"
	"errors"
	"time"

	"shopflow/internal/apperr"
	"shopflow/internal/domain/model"
	repo "shopflow/internal/repository"
)

// CartUsecase はカートの業務ロジック。
// 価格は追加時点のoffer_priceを保存する
type CartUsecase struct {
	tx repo.TransactionManager
}

func NewCartUsecase(tx repo.TransactionManager) *CartUsecase {
	return &CartUsecase{tx: tx}
}

type CartItemOutput struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type CartOutput struct {
	Items []CartItemOutput `json:"items"`
	Total int64            `json:"total"`
}

type AddCartItemInput struct {
	ProductID int64
	Quantity  int64
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	var out CartOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := u.findOrCreateActiveCart(ctx, r, userID)
		if err != nil {
			return err
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list cart items: %v", err)
		}

		out = toCartOutput(items)
		return nil
	})

	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

// AddItem は同じ商品なら数量を加算する。在庫を超える数量は弾く
func (u *CartUsecase) AddItem(ctx context.Context, userID int64, in AddCartItemInput) (CartOutput, error) {
	if in.Quantity <= 0 {
		return CartOutput{}, apperr.Wrap(apperr.ErrInvalidQuantity, "quantity %d", in.Quantity)
	}

	var out CartOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, "product %d", in.ProductID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find product: %v", err)
		}
		if !p.IsActive {
			return apperr.Wrap(apperr.ErrNotFound, "product %d", in.ProductID)
		}

		cart, err := u.findOrCreateActiveCart(ctx, r, userID)
		if err != nil {
			return err
		}

		existing, err := r.CartItems().FindByCartAndProduct(ctx, cart.ID, in.ProductID)
		newQty := in.Quantity
		switch {
		case err == nil:
			newQty += existing.Quantity
		case errors.Is(err, repo.ErrNotFound):
			// 新規明細
		default:
			return apperr.Wrap(apperr.ErrInternal, "find cart item: %v", err)
		}

		if newQty > p.Stock {
			return apperr.Wrap(apperr.ErrInvalidQuantity, "quantity %d exceeds stock %d", newQty, p.Stock)
		}

		if existing.ID != 0 {
			if err := r.CartItems().UpdateQuantity(ctx, existing.ID, newQty); err != nil {
				return apperr.Wrap(apperr.ErrInternal, "update cart item: %v", err)
			}
		} else {
			now := time.Now()
			if _, err := r.CartItems().Create(ctx, model.CartItem{
				CartID:            cart.ID,
				ProductID:         in.ProductID,
				Quantity:          in.Quantity,
				UnitPriceSnapshot: p.OfferPrice,
				CreatedAt:         now,
				UpdatedAt:         now,
			}); err != nil {
				return apperr.Wrap(apperr.ErrInternal, "create cart item: %v", err)
			}
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list cart items: %v", err)
		}
		out = toCartOutput(items)
		return nil
	})

	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

// UpdateItemQuantity は0以下を許さない。削除はRemoveItemで
func (u *CartUsecase) UpdateItemQuantity(ctx context.Context, userID int64, itemID int64, quantity int64) (CartOutput, error) {
	if quantity <= 0 {
		return CartOutput{}, apperr.Wrap(apperr.ErrInvalidQuantity, "quantity %d", quantity)
	}

	var out CartOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, "cart for user %d", userID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find cart: %v", err)
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list cart items: %v", err)
		}

		//他人のカートの明細は触らせない
		var target *model.CartItem
		for i := range items {
			if items[i].ID == itemID {
				target = &items[i]
				break
			}
		}
		if target == nil {
			return apperr.Wrap(apperr.ErrNotFound, "cart item %d", itemID)
		}

		p, err := r.Products().FindByID(ctx, target.ProductID)
		if err == nil && quantity > p.Stock {
			return apperr.Wrap(apperr.ErrInvalidQuantity, "quantity %d exceeds stock %d", quantity, p.Stock)
		}

		if err := r.CartItems().UpdateQuantity(ctx, itemID, quantity); err != nil {
			return apperr.Wrap(apperr.ErrInternal, "update cart item: %v", err)
		}

		items, err = r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list cart items: %v", err)
		}
		out = toCartOutput(items)
		return nil
	})

	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) RemoveItem(ctx context.Context, userID int64, itemID int64) (CartOutput, error) {
	var out CartOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, "cart for user %d", userID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find cart: %v", err)
		}

		items, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list cart items: %v", err)
		}

		found := false
		for _, it := range items {
			if it.ID == itemID {
				found = true
				break
			}
		}
		if !found {
			return apperr.Wrap(apperr.ErrNotFound, "cart item %d", itemID)
		}

		if err := r.CartItems().Delete(ctx, itemID); err != nil {
			return apperr.Wrap(apperr.ErrInternal, "delete cart item: %v", err)
		}

		items, err = r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list cart items: %v", err)
		}
		out = toCartOutput(items)
		return nil
	})

	if err != nil {
		return CartOutput{}, err
	}
	return out, nil
}

func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil // 空のカートは空のまま
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find cart: %v", err)
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return apperr.Wrap(apperr.ErrInternal, "clear cart: %v", err)
		}
		return nil
	})
}

func (u *CartUsecase) findOrCreateActiveCart(ctx context.Context, r repo.TxRepos, userID int64) (model.Cart, error) {
	cart, err := r.Carts().FindActiveByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, apperr.Wrap(apperr.ErrInternal, "find cart: %v", err)
	}

	now := time.Now()
	cart = model.Cart{
		UserID:    userID,
		Status:    model.CartStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := r.Carts().Create(ctx, cart)
	if err != nil {
		return model.Cart{}, apperr.Wrap(apperr.ErrInternal, "create cart: %v", err)
	}
	cart.ID = id
	return cart, nil
}

func toCartOutput(items []model.CartItem) CartOutput {
	outItems := make([]CartItemOutput, 0, len(items))
	var total int64 = 0
	for _, it := range items {
		outItems = append(outItems, CartItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
		})
		total += it.UnitPriceSnapshot * it.Quantity
	}
	return CartOutput{Items: outItems, Total: total}
}
