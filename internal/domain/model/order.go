package model

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// 遷移表はここだけ。エンドポイント側で状態文字列を直接比較しない
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusCancelled},
	OrderStatusFailed:    {},
	OrderStatusCancelled: {},
}

// CanTransitionTo は s から next への遷移が許されるか
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Order は1回のチェックアウト。
// TotalAmount は作成時に確定（最小通貨単位）。以後の更新は状態系フィールドと決済参照だけ
type Order struct {
	ID              int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64         `gorm:"not null;index" json:"user_id"`
	Status          OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus   PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	TotalAmount     int64         `gorm:"not null" json:"total_amount"`
	Currency        string        `gorm:"type:varchar(3);not null" json:"currency"`
	RazorpayOrderID string        `gorm:"type:varchar(64);not null;default:''" json:"razorpay_order_id,omitempty"`
	PaymentID       string        `gorm:"type:varchar(64);not null;default:''" json:"payment_id,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
