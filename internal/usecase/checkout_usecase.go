package usecase

import (
	"context"
	"errors"

	"shopflow/internal/apperr"
	"shopflow/internal/domain/model"
	"shopflow/internal/event"
	"shopflow/internal/notify"
	"shopflow/internal/payment"
	repo "shopflow/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutUsecase はチェックアウト開始と決済確定。
// ゲートウェイ呼び出しはトランザクションの外、状態の書き込みは条件付きUPDATEで1回だけ
type CheckoutUsecase struct {
	tx        repo.TransactionManager
	gateway   payment.Gateway
	notifier  notify.StatusNotifier
	publisher event.Publisher
	logger    *zap.Logger
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	gateway payment.Gateway,
	notifier notify.StatusNotifier,
	publisher event.Publisher,
	logger *zap.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		gateway:   gateway,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
	}
}

type CheckoutOutput struct {
	Order OrderOutput `json:"order"`
	//ゲートウェイの応答は解釈せずそのまま返す
	RazorpayOrder payment.GatewayOrder `json:"razorpay_order"`
}

type VerifyPaymentInput struct {
	OrderID         int64
	RazorpayOrderID string
	PaymentID       string
	Signature       string
}

// InitiateCheckout はゲートウェイ側に支払いオブジェクトを作り、参照を注文へ保存する。
// ゲートウェイが失敗したら注文は一切変えない
func (u *CheckoutUsecase) InitiateCheckout(ctx context.Context, orderID int64) (CheckoutOutput, error) {
	var order model.Order
	var items []model.OrderItem

	//状態チェックは読むだけ。ロックを持ったままゲートウェイへは行かない
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, "order %d", orderID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find order: %v", err)
		}

		if o.Status != model.OrderStatusPending || o.PaymentStatus != model.PaymentStatusPending {
			return apperr.Wrap(apperr.ErrInvalidState, "order %d is %s/%s", orderID, o.Status, o.PaymentStatus)
		}

		its, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "list order items: %v", err)
		}
		for _, it := range its {
			if it.Status != model.OrderStatusPending || it.PaymentStatus != model.PaymentStatusPending {
				return apperr.Wrap(apperr.ErrInvalidState, "order item %d is %s/%s", it.ID, it.Status, it.PaymentStatus)
			}
		}

		order = o
		items = its
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	receipt := "order_rcpt_" + uuid.NewString()
	gw, err := u.gateway.CreateOrder(ctx, order.TotalAmount, order.Currency, receipt)
	if err != nil {
		return CheckoutOutput{}, apperr.Wrap(apperr.ErrGateway, "create gateway order: %v", err)
	}

	var out CheckoutOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().SetProviderRefIfPending(ctx, orderID, gw.ID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "save provider ref: %v", err)
		}
		if !ok {
			//ゲートウェイ呼び出し中に状態が動いた。プロバイダ側の注文は放棄する
			return apperr.Wrap(apperr.ErrInvalidState, "order %d changed during checkout", orderID)
		}

		order.RazorpayOrderID = gw.ID
		out = CheckoutOutput{
			Order:         toOrderOutput(order, items),
			RazorpayOrder: gw,
		}
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}
	return out, nil
}

// VerifyPayment はリダイレクト/Webhook経路。
// 署名の検証は一切の状態変更より前。検証対象は {razorpayOrderId}|{paymentId}
func (u *CheckoutUsecase) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (OrderOutput, error) {
	if in.RazorpayOrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return OrderOutput{}, apperr.Wrap(apperr.ErrInvalidSignature, "missing payment parameters")
	}

	payload := in.RazorpayOrderID + "|" + in.PaymentID
	if !u.gateway.VerifySignature(payload, in.Signature) {
		return OrderOutput{}, apperr.Wrap(apperr.ErrInvalidSignature, "order %d", in.OrderID)
	}

	return u.confirm(ctx, in.OrderID, in.RazorpayOrderID, in.PaymentID)
}

// bindProviderRef は支払いが本当にこの注文のものかを突き合わせる。
// 署名もcapturedステータスも別の注文の支払いに対して本物でありうるので、
// チェックアウトを経ていない注文と参照の食い違う注文はここで止める
func bindProviderRef(o model.Order, razorpayOrderID string) error {
	if o.RazorpayOrderID == "" {
		return apperr.Wrap(apperr.ErrInvalidState, "order %d has no checkout session", o.ID)
	}
	if razorpayOrderID != "" && o.RazorpayOrderID != razorpayOrderID {
		return apperr.Wrap(apperr.ErrInvalidState, "payment belongs to another order, not %d", o.ID)
	}
	return nil
}

// PollPayment は問い合わせ経路。ゲートウェイの返すステータスだけを信じる。
// 支払いがどの注文に属するかもゲートウェイに訊き、confirm/failの突き合わせに使う
func (u *CheckoutUsecase) PollPayment(ctx context.Context, orderID int64, paymentID string) (OrderOutput, error) {
	info, err := u.gateway.FetchPaymentStatus(ctx, paymentID)
	if err != nil {
		return OrderOutput{}, apperr.Wrap(apperr.ErrGateway, "fetch payment status: %v", err)
	}

	switch info.Status {
	case payment.StatusCaptured:
		return u.confirm(ctx, orderID, info.OrderID, paymentID)
	case payment.StatusFailed:
		return u.fail(ctx, orderID, info.OrderID, paymentID)
	default:
		//まだ確定していない。何も書かずに現状を返す
		return u.currentState(ctx, orderID)
	}
}

// confirm はPENDING→CONFIRMEDを1回だけ通す。
// 条件付きUPDATEの勝者だけがメールとイベントを出す
func (u *CheckoutUsecase) confirm(ctx context.Context, orderID int64, razorpayOrderID string, paymentID string) (OrderOutput, error) {
	var out OrderOutput
	var userEmail string
	var won bool

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, "order %d", orderID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find order: %v", err)
		}

		if err := bindProviderRef(o, razorpayOrderID); err != nil {
			return err
		}

		ok, err := r.Orders().TransitionStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusConfirmed, paymentID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "update order: %v", err)
		}

		if !ok {
			//負けた側。確定済みなら同じ結果を返すだけで副作用は出さない
			o2, err := r.Orders().FindByID(ctx, orderID)
			if err != nil {
				return apperr.Wrap(apperr.ErrInternal, "reread order: %v", err)
			}
			if o2.Status == model.OrderStatusConfirmed && o2.PaymentID == paymentID {
				items, err := r.OrderItems().ListByOrderID(ctx, orderID)
				if err != nil {
					return apperr.Wrap(apperr.ErrInternal, "list order items: %v", err)
				}
				out = toOrderOutput(o2, items)
				return nil
			}
			return apperr.Wrap(apperr.ErrInvalidState, "cannot confirm order in %s", o2.Status)
		}

		if err := r.OrderItems().UpdateStatusByOrderID(ctx, orderID, model.OrderStatusConfirmed, model.PaymentStatusConfirmed); err != nil {
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

		o.Status = model.OrderStatusConfirmed
		o.PaymentStatus = model.PaymentStatusConfirmed
		o.PaymentID = paymentID
		out = toOrderOutput(o, items)
		won = true
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	if won {
		u.fanOut(userEmail, out)
	}
	return out, nil
}

func (u *CheckoutUsecase) fail(ctx context.Context, orderID int64, razorpayOrderID string, paymentID string) (OrderOutput, error) {
	var out OrderOutput
	var userEmail string
	var won bool

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return apperr.Wrap(apperr.ErrNotFound, "order %d", orderID)
		}
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "find order: %v", err)
		}

		if err := bindProviderRef(o, razorpayOrderID); err != nil {
			return err
		}

		ok, err := r.Orders().TransitionStatus(ctx, orderID, model.OrderStatusPending, model.OrderStatusFailed, model.PaymentStatusFailed, paymentID)
		if err != nil {
			return apperr.Wrap(apperr.ErrInternal, "update order: %v", err)
		}

		if !ok {
			o2, err := r.Orders().FindByID(ctx, orderID)
			if err != nil {
				return apperr.Wrap(apperr.ErrInternal, "reread order: %v", err)
			}
			if o2.Status == model.OrderStatusFailed {
				items, err := r.OrderItems().ListByOrderID(ctx, orderID)
				if err != nil {
					return apperr.Wrap(apperr.ErrInternal, "list order items: %v", err)
				}
				out = toOrderOutput(o2, items)
				return nil
			}
			return apperr.Wrap(apperr.ErrInvalidState, "cannot fail order in %s", o2.Status)
		}

		if err := r.OrderItems().UpdateStatusByOrderID(ctx, orderID, model.OrderStatusFailed, model.PaymentStatusFailed); err != nil {
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

		o.Status = model.OrderStatusFailed
		o.PaymentStatus = model.PaymentStatusFailed
		o.PaymentID = paymentID
		out = toOrderOutput(o, items)
		won = true
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}

	if won {
		u.fanOut(userEmail, out)
	}
	return out, nil
}

func (u *CheckoutUsecase) currentState(ctx context.Context, orderID int64) (OrderOutput, error) {
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

func (u *CheckoutUsecase) fanOut(userEmail string, out OrderOutput) {
	fanOutStatusChange(u.notifier, u.publisher, u.logger, userEmail, out)
}
