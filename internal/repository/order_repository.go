package repository

import (
	"context"
	"errors"

	"shopflow/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type OrderListFilter struct {
	Status string // 空なら全件
	Page   int
	Limit  int
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, f OrderListFilter) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// TransitionStatus は現在statusがfromの行だけを書き換える条件付きUPDATE。
	// 書けたかどうかを行数で返す（同時実行の勝敗判定に使う）。
	// paymentIDが空でなければ一緒に保存する
	TransitionStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus, pay model.PaymentStatus, paymentID string) (bool, error)

	// SetProviderRefIfPending はPENDINGの間だけゲートウェイの注文参照を書く
	SetProviderRefIfPending(ctx context.Context, orderID int64, razorpayOrderID string) (bool, error)
}
