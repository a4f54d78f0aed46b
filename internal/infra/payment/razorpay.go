package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"shopflow/internal/payment"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

// RazorpayGateway はRazorpay REST APIのアダプタ。
// key/secretはBasic認証、secretは署名検証にも使う
type RazorpayGateway struct {
	keyID   string
	secret  string
	baseURL string
	client  *http.Client
}

func NewRazorpayGateway(keyID string, secret string) *RazorpayGateway {
	return &RazorpayGateway{
		keyID:   keyID,
		secret:  secret,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// NewRazorpayGatewayWithBaseURL はテスト用（httptestに向ける）
func NewRazorpayGatewayWithBaseURL(keyID string, secret string, baseURL string) *RazorpayGateway {
	g := NewRazorpayGateway(keyID, secret)
	g.baseURL = baseURL
	return g
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency string, receipt string) (payment.GatewayOrder, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return payment.GatewayOrder{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return payment.GatewayOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return payment.GatewayOrder{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return payment.GatewayOrder{}, fmt.Errorf("razorpay create order: status %d", resp.StatusCode)
	}

	var out payment.GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return payment.GatewayOrder{}, err
	}
	return out, nil
}

type fetchPaymentResponse struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (g *RazorpayGateway) FetchPaymentStatus(ctx context.Context, paymentID string) (payment.PaymentInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return payment.PaymentInfo{}, err
	}
	req.SetBasicAuth(g.keyID, g.secret)

	resp, err := g.client.Do(req)
	if err != nil {
		return payment.PaymentInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return payment.PaymentInfo{}, fmt.Errorf("razorpay fetch payment: status %d", resp.StatusCode)
	}

	var out fetchPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return payment.PaymentInfo{}, err
	}

	info := payment.PaymentInfo{OrderID: out.OrderID}

	// created/authorizedはまだ確定ではない
	switch out.Status {
	case "captured":
		info.Status = payment.StatusCaptured
	case "failed":
		info.Status = payment.StatusFailed
	default:
		info.Status = payment.StatusPending
	}
	return info, nil
}

// Razorpayの署名はHMAC-SHA256のhex表現
func (g *RazorpayGateway) VerifySignature(payload string, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
