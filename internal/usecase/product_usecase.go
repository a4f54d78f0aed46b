package usecase

import (
	"context"
	"errors"

	"shopflow/internal/apperr"
	"shopflow/internal/domain/model"
	repo "shopflow/internal/repository"
)

// ProductUsecase は公開カタログの読み取りだけ
type ProductUsecase struct {
	productRepo repo.ProductRepository
}

func NewProductUsecase(productRepo repo.ProductRepository) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo}
}

type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	Brand    string
	Category string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 || in.Limit > 100 {
		in.Limit = 20
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        in.Q,
		Brand:    in.Brand,
		Category: in.Category,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, apperr.Wrap(apperr.ErrInternal, "list products: %v", err)
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, productID int64) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, apperr.Wrap(apperr.ErrNotFound, "product %d", productID)
	}
	if err != nil {
		return model.Product{}, apperr.Wrap(apperr.ErrInternal, "find product: %v", err)
	}
	//非公開商品は存在しない扱い
	if !p.IsActive {
		return model.Product{}, apperr.Wrap(apperr.ErrNotFound, "product %d", productID)
	}
	return p, nil
}
