package model

import "time"

// OrderItem は注文の明細。
// 価格は注文時点のスナップショット。カタログ側の値下げ/値上げは遡及しない
type OrderItem struct {
	ID                  int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64         `gorm:"not null;index" json:"order_id"`
	ProductID           int64         `gorm:"not null;index" json:"product_id"`
	ProductNameSnapshot string        `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   int64         `gorm:"not null" json:"unit_price_snapshot"`
	Quantity            int64         `gorm:"not null" json:"quantity"`
	Status              OrderStatus   `gorm:"type:varchar(20);not null" json:"status"`
	PaymentStatus       PaymentStatus `gorm:"type:varchar(20);not null" json:"payment_status"`
	CreatedAt           time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
}
