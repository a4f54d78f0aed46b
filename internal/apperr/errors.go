// Package apperr はユースケース境界で返すエラーの分類。
// HTTPステータスへの変換は handler 側の writeError に寄せる
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrGateway          = errors.New("gateway error")
	ErrInternal         = errors.New("internal error")
)

// Wrap は分類タグを保ったまま文脈を足す
func Wrap(tag error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{tag}, args...)...)
}
