package handler

import (
	"net/http"
	"strconv"

	"shopflow/internal/config"
	"shopflow/internal/middleware"
	"shopflow/internal/usecase"

	"github.com/labstack/echo/v4"
)

type OrderHandler struct {
	orders   *usecase.OrderUsecase
	checkout *usecase.CheckoutUsecase
}

func NewOrderHandler(orders *usecase.OrderUsecase, checkout *usecase.CheckoutUsecase) *OrderHandler {
	return &OrderHandler{orders: orders, checkout: checkout}
}

type OrderCreateRequest struct {
	Items []struct {
		ProductID int64 `json:"product_id"`
		Quantity  int64 `json:"quantity"`
	} `json:"items"`
}

type VerifyPaymentRequest struct {
	RazorpayOrderID string `json:"razorpay_order_id"`
	PaymentID       string `json:"payment_id"`
	Signature       string `json:"signature"`
}

type PollPaymentRequest struct {
	PaymentID string `json:"payment_id"`
}

func (h *OrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/orders")
	g.Use(middleware.AuthJWT(cfg))

	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.detail)
	g.POST("/:id/checkout", h.checkoutOrder)
	g.POST("/:id/verify", h.verifyPayment)
	g.POST("/:id/poll", h.pollPayment)
	g.POST("/:id/cancel", h.cancel)
}

func (h *OrderHandler) create(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	var req OrderCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	in := usecase.CreateOrderInput{}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.OrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	out, err := h.orders.CreateOrder(c.Request().Context(), userID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *OrderHandler) list(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.orders.ListUserOrders(c.Request().Context(), userID, c.QueryParam("status"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) detail(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.orders.GetOrder(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	//他人の注文は「存在しない扱い」にする
	if out.UserID != userID {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) checkoutOrder(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	if handled, rerr := h.ensureOwner(c, id, userID); handled {
		return rerr
	}

	out, err := h.checkout.InitiateCheckout(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) verifyPayment(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.checkout.VerifyPayment(c.Request().Context(), usecase.VerifyPaymentInput{
		OrderID:         id,
		RazorpayOrderID: req.RazorpayOrderID,
		PaymentID:       req.PaymentID,
		Signature:       req.Signature,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) pollPayment(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	if handled, rerr := h.ensureOwner(c, id, userID); handled {
		return rerr
	}

	var req PollPaymentRequest
	if err := c.Bind(&req); err != nil || req.PaymentID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.checkout.PollPayment(c.Request().Context(), id, req.PaymentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *OrderHandler) cancel(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}
	if handled, rerr := h.ensureOwner(c, id, userID); handled {
		return rerr
	}

	out, err := h.orders.CancelOrder(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 所有チェック。他人の注文は404で隠す。
// handledがtrueなら応答済みなのでそのままreturnする
func (h *OrderHandler) ensureOwner(c echo.Context, orderID int64, userID int64) (bool, error) {
	out, err := h.orders.GetOrder(c.Request().Context(), orderID)
	if err != nil {
		return true, writeError(c, err)
	}
	if out.UserID != userID {
		return true, c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	}
	return false, nil
}

func parseID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}
