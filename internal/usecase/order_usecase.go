package usecase

import (
	"context"
	"errors"
	"time"

	"shopflow/internal/apperr"
	"shopflow/internal/domain/model"
	"shopflow/internal/event"
	"shopflow/internal/notify"
	repo "shopflow/internal/repository"

	"go.uber.org/zap"
)

// OrderUsecase は注文の作成・照会・キャンセル。
// 決済まわり（チェックアウト開始と確定）はCheckoutUsecase
type OrderUsecase struct {
	tx        repo.TransactionManager
	notifier  notify.StatusNotifier
	publisher event.Publisher
	logger    *zap.Logger
	currency  string
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	notifier notify.StatusNotifier,
	publisher event.Publisher,
	logger *zap.Logger,
	currency string,
) *OrderUsecase {
	return &OrderUsecase{
		tx:        tx,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		currency:  currency,
	}
}

type OrderItemInput struct {
	ProductID int64
	Quantity  int64
}

type CreateOrderInput struct {
	Items []OrderItemInput
}

type OrderItemOutput struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	Quantity      int64  `json:"quantity"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

type OrderOutput struct {
	ID              int64             `json:"id"`
	UserID          int64             `json:"user_id"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	TotalAmount     int64             `json:"total_amount"`
	Currency        string            `json:"currency"`
	RazorpayOrderID string            `json:"razorpay_order_id,omitempty"`
	PaymentID       string            `json:"payment_id,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	Items           []OrderItemOutput `json:"items"`
}

// CreateOrder は注文と明細を1トランザクションで作る。
// 価格はこの時点のoffer_priceを固定。在庫は動かさない
func (u *OrderUsecase) CreateOrder(ctx context.Context, userID int64, in CreateOrderInput) (OrderOutput, error) {
	if len(in.Items) == 0 {
		return OrderOutput{}, apperr.Wrap(apperr.ErrInvalidQuantity, "order needs at least one item")
	}
	//数量チェックは読み取りより前
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return OrderOutput{}, apperr.Wrap(apperr.ErrInvalidQuantity, "product %d: quantity %d", it.ProductID, it.Quantity)
		}
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Users().FindByID(ctx, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return apperr.Wrap(apperr.ErrNotFound, "user %d", userID)
			}
			return apperr.Wrap(apperr.ErrInternal, "find user: %v", err)
		}

		//スナップショット
		now := time.Now()
		orderItems := make([]model.OrderItem, 0, len(in.Items))
		var total int64 = 0

		for _, it := range in.Items {
			p, err := r.Products().FindByID(ctx, it.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return apperr.Wrap(apperr.ErrNotFound, "product %d", it.ProductID)
			}
			if err != nil {
				return apperr.Wrap(apperr.ErrInternal, "find product: %v", err)
			}

			orderItems = append(orderItems, model.OrderItem{
				ProductID:           p.ID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   p.OfferPrice,
				Quantity:            it.Quantity,
				Status:              model.OrderStatusPending,
				PaymentStatus:       model.PaymentStatusPending,
				CreatedAt:           now,
			})
			total += p.OfferPrice * it.Quantity
		}

		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:        userID,
			Status:        model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusPending,
			TotalAmount:   total,
			Currency:      u.currency,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "create order: %v", err)
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return apperr.Wrap(apperr.ErrInternal, "create order items: %v", err)
		}

		created := model.Order{
			ID:            orderID,
			UserID:        userID,
			Status:        model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusPending,
			TotalAmount:   total,
			Currency:      u.currency,
			CreatedAt:     now,
		}
		out = toOrderOutput(created, orderItems)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// CancelOrder はPENDINGかCONFIRMEDの注文だけをCANCELLEDへ落とす。
// 返金はここでは呼ばない
func (u *OrderUsecase) CancelOrder(ctx context.Context, orderID int64) (OrderOutput, error) {
	var out OrderOutput
	var userEmail string

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, "order %d", orderID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find order: %v", err)
		}

		if !o.Status.CanTransitionTo(model.OrderStatusCancelled) {
			return apperr.Wrap(apperr.ErrInvalidState, "cannot cancel order in %s", o.Status)
		}

		ok, err := r.Orders().TransitionStatus(ctx, orderID, o.Status, model.OrderStatusCancelled, model.PaymentStatusCancelled, "")
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "update order: %v", err)
		}
		if !ok {
			//同時に誰かが遷移させた
			return apperr.Wrap(apperr.ErrInvalidState, "order %d changed concurrently", orderID)
		}

		if err := r.OrderItems().UpdateStatusByOrderID(ctx, orderID, model.OrderStatusCancelled, model.PaymentStatusCancelled); err != nil {
			return apperr.Wrap(apperr.ErrInternal, "update order items: %v", err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list order items: %v", err)
		}

		if user, err := r.Users().FindByID(ctx, o.UserID); err == nil {
			userEmail = user.Email
		} else {
			u.logger.Debug("user lookup for notification failed",
				zap.Int64("order_id", orderID),
				zap.Int64("user_id", o.UserID),
				zap.Error(err))
		}

		o.Status = model.OrderStatusCancelled
		o.PaymentStatus = model.PaymentStatusCancelled
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	u.afterTransition(userEmail, out)
	return out, nil
}

// GetOrder は読み取りのみ
func (u *OrderUsecase) GetOrder(ctx context.Context, orderID int64) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, "order %d", orderID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find order: %v", err)
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list order items: %v", err)
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// ListUserOrders はstatusFilterが空なら全件
func (u *OrderUsecase) ListUserOrders(ctx context.Context, userID int64, statusFilter string) ([]OrderOutput, error) {
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, repo.OrderListFilter{Status: statusFilter})
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list orders: %v", err)
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return apperr.Wrap(apperr.ErrInternal, "list order items: %v", err)
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// afterTransition はコミット後の後処理
func (u *OrderUsecase) afterTransition(userEmail string, out OrderOutput) {
	fanOutStatusChange(u.notifier, u.publisher, u.logger, userEmail, out)
}

// コミット後の後処理。メールもイベントも投げっぱなしで、失敗は記録するだけ。
// 待ち時間は notify.Dispatcher / event.AsyncPublisher 側が持つ
func fanOutStatusChange(n notify.StatusNotifier, p event.Publisher, logger *zap.Logger, userEmail string, out OrderOutput) {
	if userEmail != "" {
		n.NotifyOrderStatus(userEmail, notify.OrderSummary{
			OrderID:  out.ID,
			Total:    out.TotalAmount,
			Currency: out.Currency,
			Status:   out.Status,
		})
	}

	if err := p.PublishOrderStatus(context.Background(), event.OrderStatusEvent{
		OrderID:       out.ID,
		UserID:        out.UserID,
		Status:        out.Status,
		PaymentStatus: out.PaymentStatus,
		PaymentID:     out.PaymentID,
		TotalAmount:   out.TotalAmount,
		Currency:      out.Currency,
		OccurredAt:    time.Now(),
	}); err != nil {
		logger.Error("publish order status event failed", zap.Int64("order_id", out.ID), zap.Error(err))
	}
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:     it.ProductID,
			Name:          it.ProductNameSnapshot,
			Price:         it.UnitPriceSnapshot,
			Quantity:      it.Quantity,
			Status:        string(it.Status),
			PaymentStatus: string(it.PaymentStatus),
		})
	}

	return OrderOutput{
		ID:              o.ID,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		TotalAmount:     o.TotalAmount,
		Currency:        o.Currency,
		RazorpayOrderID: o.RazorpayOrderID,
		PaymentID:       o.PaymentID,
		CreatedAt:       o.CreatedAt,
		Items:           outItems,
	}
}
