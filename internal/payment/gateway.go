// Package payment は決済ゲートウェイへの出口。
// 金額はシステム内部と同じ最小通貨単位で渡す
package payment

import "context"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusCaptured Status = "CAPTURED"
	StatusFailed   Status = "FAILED"
)

// GatewayOrder はプロバイダ側に作られた支払いオブジェクト。
// 中身は解釈せずそのまま呼び出し元へ返す
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// PaymentInfo はゲートウェイが知っている支払いの事実。
// OrderIDはその支払いが属するプロバイダ側注文の参照
type PaymentInfo struct {
	Status  Status
	OrderID string
}

type Gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string, receipt string) (GatewayOrder, error)

	// FetchPaymentStatus はゲートウェイに問い合わせる。クライアント申告は信用しない
	FetchPaymentStatus(ctx context.Context, paymentID string) (PaymentInfo, error)

	// VerifySignature はpayloadに対する署名をサーバー側シークレットで検証する
	VerifySignature(payload string, signature string) bool
}
