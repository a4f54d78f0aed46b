package event

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// OrderStatusEvent は注文の状態変化を下流へ流すイベント
type OrderStatusEvent struct {
	OrderID       int64     `json:"order_id"`
	UserID        int64     `json:"user_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PaymentID     string    `json:"payment_id,omitempty"`
	TotalAmount   int64     `json:"total_amount"`
	Currency      string    `json:"currency"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	PublishOrderStatus(ctx context.Context, evt OrderStatusEvent) error
	Close() error
}

// NopPublisher はブローカー未設定の環境用
type NopPublisher struct{}

func (NopPublisher) PublishOrderStatus(ctx context.Context, evt OrderStatusEvent) error { return nil }
func (NopPublisher) Close() error                                                       { return nil }

// AsyncPublisher は発行を投げっぱなしにしてリクエスト経路からブローカーを外す。
// 失敗はログに残すだけで、注文の状態には影響させない
type AsyncPublisher struct {
	inner   Publisher
	logger  *zap.Logger
	timeout time.Duration
}

func NewAsyncPublisher(inner Publisher, logger *zap.Logger) *AsyncPublisher {
	return &AsyncPublisher{
		inner:   inner,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (p *AsyncPublisher) PublishOrderStatus(_ context.Context, evt OrderStatusEvent) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		if err := p.inner.PublishOrderStatus(ctx, evt); err != nil {
			p.logger.Error("order status event publish failed",
				zap.Int64("order_id", evt.OrderID),
				zap.String("status", evt.Status),
				zap.Error(err))
		}
	}()
	return nil
}

func (p *AsyncPublisher) Close() error {
	return p.inner.Close()
}
