package usecase_test

import (
	"context"
	"errors"
	"testing"

	"shopflow/internal/apperr"
	"shopflow/internal/domain/model"
	"shopflow/internal/payment"
	repo "shopflow/internal/repository"
	"shopflow/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type checkoutFixture struct {
	tx         *TxManagerMock
	orders     *OrderRepoMock
	orderItems *OrderItemRepoMock
	users      *UserRepoMock
	gateway    *GatewayMock
	notifier   *NotifierMock
	publisher  *PublisherMock
	uc         *usecase.CheckoutUsecase
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		orders:     new(OrderRepoMock),
		orderItems: new(OrderItemRepoMock),
		users:      new(UserRepoMock),
		gateway:    new(GatewayMock),
		notifier:   new(NotifierMock),
		publisher:  new(PublisherMock),
	}
	f.tx = &TxManagerMock{Repos: &TxReposMock{
		orders:     f.orders,
		orderItems: f.orderItems,
		users:      f.users,
	}}
	f.tx.On("WithinTx", mock.Anything).Return(nil)
	f.uc = usecase.NewCheckoutUsecase(f.tx, f.gateway, f.notifier, f.publisher, zap.NewNop())
	return f
}

func pendingOrder(id int64) model.Order {
	return model.Order{
		ID:            id,
		UserID:        7,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		TotalAmount:   2500,
		Currency:      "INR",
	}
}

func pendingItems(orderID int64) []model.OrderItem {
	return []model.OrderItem{
		{ID: 1, OrderID: orderID, ProductID: 101, UnitPriceSnapshot: 1000, Quantity: 2,
			Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending},
		{ID: 2, OrderID: orderID, ProductID: 102, UnitPriceSnapshot: 500, Quantity: 1,
			Status: model.OrderStatusPending, PaymentStatus: model.PaymentStatusPending},
	}
}

// =====================
// InitiateCheckout
// =====================

func TestInitiateCheckout_CallsGatewayWithMinorUnits(t *testing.T) {
	f := newCheckoutFixture()

	f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(10), nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(10)).Return(pendingItems(10), nil)
	f.gateway.On("CreateOrder", mock.Anything, int64(2500), "INR", mock.Anything).
		Return(payment.GatewayOrder{ID: "order_xyz", Amount: 2500, Currency: "INR", Status: "created"}, nil)
	f.orders.On("SetProviderRefIfPending", mock.Anything, int64(10), "order_xyz").Return(true, nil)

	out, err := f.uc.InitiateCheckout(context.Background(), 10)

	assert.NoError(t, err)
	assert.Equal(t, "order_xyz", out.RazorpayOrder.ID)
	assert.Equal(t, "order_xyz", out.Order.RazorpayOrderID)
	//注文自体はまだPENDINGのまま
	assert.Equal(t, "PENDING", out.Order.Status)
	f.gateway.AssertExpectations(t)
}

func TestInitiateCheckout_NonPendingOrder_NoGatewayCall(t *testing.T) {
	f := newCheckoutFixture()

	o := pendingOrder(10)
	o.Status = model.OrderStatusConfirmed
	o.PaymentStatus = model.PaymentStatusConfirmed
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)

	_, err := f.uc.InitiateCheckout(context.Background(), 10)

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiateCheckout_GatewayFailure_NoStateChange(t *testing.T) {
	f := newCheckoutFixture()

	f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(10), nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(10)).Return(pendingItems(10), nil)
	f.gateway.On("CreateOrder", mock.Anything, int64(2500), "INR", mock.Anything).
		Return(payment.GatewayOrder{}, errors.New("connection refused"))

	_, err := f.uc.InitiateCheckout(context.Background(), 10)

	assert.ErrorIs(t, err, apperr.ErrGateway)
	f.orders.AssertNotCalled(t, "SetProviderRefIfPending", mock.Anything, mock.Anything, mock.Anything)
}

func TestInitiateCheckout_OrderNotFound(t *testing.T) {
	f := newCheckoutFixture()

	f.orders.On("FindByID", mock.Anything, int64(99)).Return(model.Order{}, repo.ErrNotFound)

	_, err := f.uc.InitiateCheckout(context.Background(), 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// =====================
// VerifyPayment
// =====================

func confirmedItems(orderID int64) []model.OrderItem {
	items := pendingItems(orderID)
	for i := range items {
		items[i].Status = model.OrderStatusConfirmed
		items[i].PaymentStatus = model.PaymentStatusConfirmed
	}
	return items
}

func TestVerifyPayment_Success_ConfirmsOrderAndItems(t *testing.T) {
	f := newCheckoutFixture()

	o := pendingOrder(10)
	o.RazorpayOrderID = "order_xyz"

	f.gateway.On("VerifySignature", "order_xyz|pay_abc", "valid_sig").Return(true)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)
	f.orders.On("TransitionStatus", mock.Anything, int64(10),
		model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusConfirmed, "pay_abc").
		Return(true, nil)
	f.orderItems.On("UpdateStatusByOrderID", mock.Anything, int64(10),
		model.OrderStatusConfirmed, model.PaymentStatusConfirmed).Return(nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(10)).Return(confirmedItems(10), nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(model.User{ID: 7, Email: "u@example.com"}, nil)
	f.notifier.On("NotifyOrderStatus", "u@example.com", mock.Anything).Return()
	f.publisher.On("PublishOrderStatus", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.VerifyPayment(context.Background(), usecase.VerifyPaymentInput{
		OrderID:         10,
		RazorpayOrderID: "order_xyz",
		PaymentID:       "pay_abc",
		Signature:       "valid_sig",
	})

	assert.NoError(t, err)
	assert.Equal(t, "CONFIRMED", out.Status)
	assert.Equal(t, "CONFIRMED", out.PaymentStatus)
	assert.Equal(t, "pay_abc", out.PaymentID)
	for _, it := range out.Items {
		assert.Equal(t, "CONFIRMED", it.Status)
		assert.Equal(t, "CONFIRMED", it.PaymentStatus)
	}
	//メールは1回だけ
	f.notifier.AssertNumberOfCalls(t, "NotifyOrderStatus", 1)
}

func TestVerifyPayment_InvalidSignature_NoMutation(t *testing.T) {
	f := newCheckoutFixture()

	f.gateway.On("VerifySignature", "order_xyz|pay_abc", "bad_sig").Return(false)

	_, err := f.uc.VerifyPayment(context.Background(), usecase.VerifyPaymentInput{
		OrderID:         10,
		RazorpayOrderID: "order_xyz",
		PaymentID:       "pay_abc",
		Signature:       "bad_sig",
	})

	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)
	//署名が落ちたらDBには一切行かない
	f.tx.AssertNotCalled(t, "WithinTx", mock.Anything)
}

func TestVerifyPayment_MissingParams(t *testing.T) {
	f := newCheckoutFixture()

	_, err := f.uc.VerifyPayment(context.Background(), usecase.VerifyPaymentInput{OrderID: 10})
	assert.ErrorIs(t, err, apperr.ErrInvalidSignature)
}

func TestVerifyPayment_AlreadyConfirmed_IdempotentNoSecondEmail(t *testing.T) {
	f := newCheckoutFixture()

	o := pendingOrder(10)
	o.Status = model.OrderStatusConfirmed
	o.PaymentStatus = model.PaymentStatusConfirmed
	o.RazorpayOrderID = "order_xyz"
	o.PaymentID = "pay_abc"

	f.gateway.On("VerifySignature", "order_xyz|pay_abc", "valid_sig").Return(true)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)
	//すでにCONFIRMEDなので条件付きUPDATEは0行
	f.orders.On("TransitionStatus", mock.Anything, int64(10),
		model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusConfirmed, "pay_abc").
		Return(false, nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(10)).Return(confirmedItems(10), nil)

	out, err := f.uc.VerifyPayment(context.Background(), usecase.VerifyPaymentInput{
		OrderID:         10,
		RazorpayOrderID: "order_xyz",
		PaymentID:       "pay_abc",
		Signature:       "valid_sig",
	})

	assert.NoError(t, err)
	assert.Equal(t, "CONFIRMED", out.Status)
	assert.Equal(t, "pay_abc", out.PaymentID)
	f.notifier.AssertNotCalled(t, "NotifyOrderStatus", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "PublishOrderStatus", mock.Anything, mock.Anything)
	f.orderItems.AssertNotCalled(t, "UpdateStatusByOrderID", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPayment_CancelledOrder_InvalidState(t *testing.T) {
	f := newCheckoutFixture()

	o := pendingOrder(10)
	o.Status = model.OrderStatusCancelled
	o.PaymentStatus = model.PaymentStatusCancelled
	o.RazorpayOrderID = "order_xyz"

	f.gateway.On("VerifySignature", "order_xyz|pay_abc", "valid_sig").Return(true)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)
	f.orders.On("TransitionStatus", mock.Anything, int64(10),
		model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusConfirmed, "pay_abc").
		Return(false, nil)

	_, err := f.uc.VerifyPayment(context.Background(), usecase.VerifyPaymentInput{
		OrderID:         10,
		RazorpayOrderID: "order_xyz",
		PaymentID:       "pay_abc",
		Signature:       "valid_sig",
	})

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	f.notifier.AssertNotCalled(t, "NotifyOrderStatus", mock.Anything, mock.Anything)
}

func TestVerifyPayment_OrderWithoutCheckoutSession(t *testing.T) {
	f := newCheckoutFixture()

	//チェックアウトを経ていない注文。署名は別注文の支払いに対して本物でありうる
	o := pendingOrder(10)
	o.RazorpayOrderID = ""

	f.gateway.On("VerifySignature", "order_other|pay_other", "valid_sig").Return(true)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)

	_, err := f.uc.VerifyPayment(context.Background(), usecase.VerifyPaymentInput{
		OrderID:         10,
		RazorpayOrderID: "order_other",
		PaymentID:       "pay_other",
		Signature:       "valid_sig",
	})

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	f.orders.AssertNotCalled(t, "TransitionStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "NotifyOrderStatus", mock.Anything, mock.Anything)
}

func TestVerifyPayment_ProviderRefMismatch(t *testing.T) {
	f := newCheckoutFixture()

	o := pendingOrder(10)
	o.RazorpayOrderID = "order_other"

	f.gateway.On("VerifySignature", "order_xyz|pay_abc", "valid_sig").Return(true)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)

	_, err := f.uc.VerifyPayment(context.Background(), usecase.VerifyPaymentInput{
		OrderID:         10,
		RazorpayOrderID: "order_xyz",
		PaymentID:       "pay_abc",
		Signature:       "valid_sig",
	})

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	f.orders.AssertNotCalled(t, "TransitionStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// PollPayment
// =====================

func TestPollPayment_Captured_Confirms(t *testing.T) {
	f := newCheckoutFixture()

	o := pendingOrder(10)
	o.RazorpayOrderID = "order_xyz"

	f.gateway.On("FetchPaymentStatus", mock.Anything, "pay_abc").
		Return(payment.PaymentInfo{Status: payment.StatusCaptured, OrderID: "order_xyz"}, nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)
	f.orders.On("TransitionStatus", mock.Anything, int64(10),
		model.OrderStatusPending, model.OrderStatusConfirmed, model.PaymentStatusConfirmed, "pay_abc").
		Return(true, nil)
	f.orderItems.On("UpdateStatusByOrderID", mock.Anything, int64(10),
		model.OrderStatusConfirmed, model.PaymentStatusConfirmed).Return(nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(10)).Return(confirmedItems(10), nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(model.User{ID: 7, Email: "u@example.com"}, nil)
	f.notifier.On("NotifyOrderStatus", "u@example.com", mock.Anything).Return()
	f.publisher.On("PublishOrderStatus", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.PollPayment(context.Background(), 10, "pay_abc")

	assert.NoError(t, err)
	assert.Equal(t, "CONFIRMED", out.Status)
	f.notifier.AssertNumberOfCalls(t, "NotifyOrderStatus", 1)
}

func TestPollPayment_Failed_MarksFailed(t *testing.T) {
	f := newCheckoutFixture()

	o := pendingOrder(10)
	o.RazorpayOrderID = "order_xyz"

	f.gateway.On("FetchPaymentStatus", mock.Anything, "pay_abc").
		Return(payment.PaymentInfo{Status: payment.StatusFailed, OrderID: "order_xyz"}, nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)
	f.orders.On("TransitionStatus", mock.Anything, int64(10),
		model.OrderStatusPending, model.OrderStatusFailed, model.PaymentStatusFailed, "pay_abc").
		Return(true, nil)
	f.orderItems.On("UpdateStatusByOrderID", mock.Anything, int64(10),
		model.OrderStatusFailed, model.PaymentStatusFailed).Return(nil)

	failed := pendingItems(10)
	for i := range failed {
		failed[i].Status = model.OrderStatusFailed
		failed[i].PaymentStatus = model.PaymentStatusFailed
	}
	f.orderItems.On("ListByOrderID", mock.Anything, int64(10)).Return(failed, nil)
	f.users.On("FindByID", mock.Anything, int64(7)).Return(model.User{ID: 7, Email: "u@example.com"}, nil)
	f.notifier.On("NotifyOrderStatus", "u@example.com", mock.Anything).Return()
	f.publisher.On("PublishOrderStatus", mock.Anything, mock.Anything).Return(nil)

	out, err := f.uc.PollPayment(context.Background(), 10, "pay_abc")

	assert.NoError(t, err)
	assert.Equal(t, "FAILED", out.Status)
	assert.Equal(t, "FAILED", out.PaymentStatus)
}

func TestPollPayment_PaymentForAnotherOrder(t *testing.T) {
	f := newCheckoutFixture()

	//自分の安い注文の支払いで、自分の高いPENDING注文を確定させようとする
	o := pendingOrder(10)
	o.RazorpayOrderID = "order_xyz"

	f.gateway.On("FetchPaymentStatus", mock.Anything, "pay_other").
		Return(payment.PaymentInfo{Status: payment.StatusCaptured, OrderID: "order_other"}, nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(o, nil)

	_, err := f.uc.PollPayment(context.Background(), 10, "pay_other")

	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	f.orders.AssertNotCalled(t, "TransitionStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "NotifyOrderStatus", mock.Anything, mock.Anything)
}

func TestPollPayment_StillPending_NoWrite(t *testing.T) {
	f := newCheckoutFixture()

	f.gateway.On("FetchPaymentStatus", mock.Anything, "pay_abc").
		Return(payment.PaymentInfo{Status: payment.StatusPending}, nil)
	f.orders.On("FindByID", mock.Anything, int64(10)).Return(pendingOrder(10), nil)
	f.orderItems.On("ListByOrderID", mock.Anything, int64(10)).Return(pendingItems(10), nil)

	out, err := f.uc.PollPayment(context.Background(), 10, "pay_abc")

	assert.NoError(t, err)
	assert.Equal(t, "PENDING", out.Status)
	f.orders.AssertNotCalled(t, "TransitionStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPollPayment_GatewayDown(t *testing.T) {
	f := newCheckoutFixture()

	f.gateway.On("FetchPaymentStatus", mock.Anything, "pay_abc").
		Return(payment.PaymentInfo{}, errors.New("timeout"))

	_, err := f.uc.PollPayment(context.Background(), 10, "pay_abc")
	assert.ErrorIs(t, err, apperr.ErrGateway)
}
