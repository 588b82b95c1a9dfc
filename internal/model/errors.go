// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// ストレージ層の内部事情（SQL等）はMessageに含めない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, fire, payment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInitData          = "INVALID_INIT_DATA"
	ErrCodeMalformedInitData        = "MALFORMED_INIT_DATA"
	ErrCodeUnauthorized             = "UNAUTHORIZED"
	ErrCodeUserNotFound             = "USER_NOT_FOUND"
	ErrCodeDuplicateFire            = "DUPLICATE_FIRE"
	ErrCodeInsufficientScores       = "INSUFFICIENT_SCORES"
	ErrCodePaymentNotFound          = "PAYMENT_NOT_FOUND"
	ErrCodePaymentAlreadyProcessed  = "PAYMENT_ALREADY_PROCESSED"
	ErrCodePaymentCannotBeCancelled = "PAYMENT_CANNOT_BE_CANCELLED"
	ErrCodeValidation               = "VALIDATION_ERROR"
)

// NewInvalidInitDataError は署名検証に失敗したinitDataに対するエラーを生成する。
func NewInvalidInitDataError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInitData,
		Message:  "initDataの署名検証に失敗しました。",
		Category: "auth",
		Action:   "Telegramミニアプリから再度起動してください。",
	}
}

// NewMalformedInitDataError は解析できないinitDataに対するエラーを生成する。
func NewMalformedInitDataError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedInitData,
		Message:  fmt.Sprintf("initDataを解析できませんでした: %s", reason),
		Category: "validation",
		Action:   "Telegramミニアプリから再度起動してください。",
	}
}

// NewUnauthorizedError は認証されていないリクエストに対するエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(tgID int64) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %d", tgID),
		Category: "auth",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewDuplicateFireError は同一相手への再評価に対するエラーを生成する。
func NewDuplicateFireError(targetID int64) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFire,
		Message:  fmt.Sprintf("このユーザーは既に評価済みです: %d", targetID),
		Category: "fire",
		Action:   "同じ相手を二度評価することはできません。",
	}
}

// NewInsufficientScoresError はスコア残高不足に対するエラーを生成する。
func NewInsufficientScoresError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientScores,
		Message:  "スコアが不足しています。",
		Category: "fire",
		Action:   "スコアを購入してから再度お試しください。",
	}
}

// NewPaymentNotFoundError は決済が見つからない場合のエラーを生成する。
func NewPaymentNotFoundError(paymentID string) *APIError {
	return &APIError{
		Code:     ErrCodePaymentNotFound,
		Message:  fmt.Sprintf("指定された決済が見つかりません: %s", paymentID),
		Category: "payment",
		Action:   "決済IDを確認してください。",
	}
}

// NewPaymentAlreadyProcessedError は処理済み決済の再処理に対するエラーを生成する。
func NewPaymentAlreadyProcessedError() *APIError {
	return &APIError{
		Code:     ErrCodePaymentAlreadyProcessed,
		Message:  "この決済は既に処理されています。",
		Category: "payment",
		Action:   "決済履歴を確認してください。",
	}
}

// NewPaymentCannotBeCancelledError はキャンセル不可能な決済に対するエラーを生成する。
func NewPaymentCannotBeCancelledError() *APIError {
	return &APIError{
		Code:     ErrCodePaymentCannotBeCancelled,
		Message:  "キャンセルできるのは処理待ちの決済のみです。",
		Category: "payment",
		Action:   "決済の状態を確認してください。",
	}
}

// NewValidationError はリクエストパラメータの検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("パラメータ %s が不正です: %s", field, reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}
