package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"shopflow/internal/notify"

	"go.uber.org/zap"
)

// SMTPNotifier は注文ステータスの更新メールを送る
type SMTPNotifier struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

func NewSMTPNotifier(host string, port int, user string, password string, from string) *SMTPNotifier {
	return &SMTPNotifier{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
	}
}

func (n *SMTPNotifier) SendOrderStatusEmail(ctx context.Context, to string, s notify.OrderSummary) error {
	subject := "SHOPFLOW Order Update"
	body := fmt.Sprintf(
		"Your order #%d is now %s.\r\nTotal: %d %s\r\n",
		s.OrderID, s.Status, s.Total, s.Currency,
	)

	msg := []byte(
		"From: " + n.from + "\r\n" +
			"To: " + to + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"\r\n" +
			body,
	)

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.user, n.password, n.host)

	// net/smtpはctxを直接は受けない。送信全体はDispatcher側のtimeoutで抑える
	if err := ctx.Err(); err != nil {
		return err
	}
	return smtp.SendMail(addr, auth, n.from, []string{to}, msg)
}

// LogNotifier はSMTP未設定の環境用。送った体でログだけ残す
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOrderStatusEmail(ctx context.Context, to string, s notify.OrderSummary) error {
	n.logger.Info("order status email (smtp disabled)",
		zap.String("to", to),
		zap.Int64("order_id", s.OrderID),
		zap.String("status", s.Status))
	return nil
}
