// Package model はドメインモデルを定義する。
package model

import "time"

// PaymentStatus は決済の状態を表す。
type PaymentStatus string

// PaymentStatus の取りうる値。
const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// Payment はTelegram Stars（XTR）によるスコア購入の決済記録を表す。
// 決済プロバイダとの通信そのものは扱わず、帳簿としての状態遷移のみを持つ。
// pending → completed / cancelled / failed の一方向遷移。
type Payment struct {
	ID            string        `json:"id"`
	UserID        int64         `json:"userId"`
	Amount        int           `json:"amount"`
	Currency      string        `json:"currency"`
	Description   string        `json:"description"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
}
