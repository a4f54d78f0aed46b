package repository

import (
	"context"

	"shopflow/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)

	// 注文側の遷移に合わせて明細をまとめて更新する
	UpdateStatusByOrderID(ctx context.Context, orderID int64, status model.OrderStatus, pay model.PaymentStatus) error
}
