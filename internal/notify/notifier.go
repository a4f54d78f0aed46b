package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type OrderSummary struct {
	OrderID  int64
	Total    int64
	Currency string
	Status   string
}

// Notifier は実際にメールを送る側
type Notifier interface {
	SendOrderStatusEmail(ctx context.Context, to string, summary OrderSummary) error
}

// StatusNotifier はusecaseが見る面。投げっぱなしで、失敗しても注文の状態は巻き戻さない
type StatusNotifier interface {
	NotifyOrderStatus(to string, summary OrderSummary)
}

// Dispatcher はNotifierを非同期化し、失敗はログに残すだけにする
type Dispatcher struct {
	notifier Notifier
	logger   *zap.Logger
	timeout  time.Duration
}

func NewDispatcher(n Notifier, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: n,
		logger:   logger,
		timeout:  30 * time.Second,
	}
}

func (d *Dispatcher) NotifyOrderStatus(to string, summary OrderSummary) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.SendOrderStatusEmail(ctx, to, summary); err != nil {
			d.logger.Error("order status email failed",
				zap.Int64("order_id", summary.OrderID),
				zap.String("status", summary.Status),
				zap.Error(err))
		}
	}()
}
