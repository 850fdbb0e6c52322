package inventory

import (
	"errors"
	"fmt"
)

// Common inventory errors
// 共通の在庫エラー定義

var (
	// ErrProductNotFound is returned when no product has the given ID
	// 商品が存在しない場合のエラー
	ErrProductNotFound = errors.New("商品が見つかりません")

	// ErrDuplicateProduct is returned when a product ID is already in the catalog
	// 既に存在する商品IDを登録しようとした場合のエラー
	ErrDuplicateProduct = errors.New("商品は既に存在します")

	// ErrInvalidQuantity is returned when a movement quantity is not positive
	// 数量が正の値でない場合のエラー
	ErrInvalidQuantity = errors.New("数量は正の値である必要があります")

	// ErrCapacityExceeded is returned when an entry would exceed max stock
	// 入庫により最大在庫を超える場合のエラー
	ErrCapacityExceeded = errors.New("保管スペースが不足しています")

	// ErrInsufficientStock is returned when there's not enough stock
	// 在庫不足の場合のエラー
	ErrInsufficientStock = errors.New("在庫が不足しています")

	// ErrImmutableID is returned when an update tries to change the product ID
	ErrImmutableID = errors.New("商品IDは変更できません")
)

// ValidationError represents a validation error with details
// 詳細付きバリデーションエラーを表現
type ValidationError struct {
	Field   string `json:"field"`   // エラーフィールド
	Message string `json:"message"` // エラーメッセージ
	Value   string `json:"value"`   // 無効な値
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("バリデーションエラー [%s]: %s (値: %s)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
// 新しいバリデーションエラーを作成
func NewValidationError(field, message, value string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsValidationError reports whether err carries a *ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// movementError wraps a business sentinel with a readable message.
// errors.Is(err, ErrInsufficientStock) などで判定可能
func movementError(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
