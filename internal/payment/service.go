// Package payment はTelegram Stars決済によるスコア購入のビジネスロジックを提供する。
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/matcha/internal/model"
	"github.com/hitoshi/matcha/internal/repository"
)

// CurrencyXTR はTelegram Starsの通貨コード。
const CurrencyXTR = "XTR"

// ScoresPerStar は1 Starあたりに付与するスコア。
const ScoresPerStar = 10

// Service は決済のビジネスロジックを提供する。
// 決済プロバイダとの通信は扱わず、帳簿の状態遷移とスコア付与のみを持つ。
type Service struct {
	payments repository.PaymentRepository
	users    repository.UserRepository
	now      func() time.Time
}

// NewService はServiceを生成する。nowがnilの場合はtime.Nowを使う。
func NewService(
	payments repository.PaymentRepository,
	users repository.UserRepository,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		payments: payments,
		users:    users,
		now:      now,
	}
}

// Create はpending状態の決済レコードを作成する。
// amountはStars建てで1以上でなければならない。
func (s *Service) Create(ctx context.Context, userID int64, amount int, description string) (*model.Payment, error) {
	if amount <= 0 {
		return nil, model.NewValidationError("amount", "must be positive")
	}

	payment := &model.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		Amount:      amount,
		Currency:    CurrencyXTR,
		Description: description,
		Status:      model.PaymentPending,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	slog.Info("payment created",
		slog.String("payment_id", payment.ID),
		slog.Int64("user_id", userID),
		slog.Int("amount", amount),
	)

	return payment, nil
}

// History はユーザーの決済履歴を作成日時降順で返す。
func (s *Service) History(ctx context.Context, userID int64, offset, limit int) ([]*model.Payment, error) {
	payments, err := s.payments.ListByUserID(ctx, userID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	if payments == nil {
		payments = []*model.Payment{}
	}
	return payments, nil
}

// Verify は決済を確定し、ユーザーにスコアを付与する。
// pendingでない決済はPAYMENT_ALREADY_PROCESSEDを返す。
// 状態遷移はconditional UPDATEで行われ、並行した二重確定は片方だけが成功する。
func (s *Service) Verify(ctx context.Context, paymentID, transactionID string) (*model.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	if payment == nil {
		return nil, model.NewPaymentNotFoundError(paymentID)
	}

	completedAt := s.now().UTC()
	ok, err := s.payments.MarkCompleted(ctx, paymentID, transactionID, completedAt)
	if errors.Is(err, repository.ErrDuplicateKey) {
		// transaction_idの再利用は同じ決済イベントの再送とみなす
		return nil, model.NewPaymentAlreadyProcessedError()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}
	if !ok {
		return nil, model.NewPaymentAlreadyProcessedError()
	}

	scores := payment.Amount * ScoresPerStar
	balance, err := s.users.AddScores(ctx, payment.UserID, scores)
	if err != nil {
		// 決済は確定済み。付与失敗はログに残し、決済自体は成功として返す。
		// 帳簿にcompleted記録が残るため、復旧は手動で可能。
		slog.Error("failed to grant scores for completed payment",
			slog.String("payment_id", paymentID),
			slog.Int64("user_id", payment.UserID),
			slog.String("error", err.Error()),
		)
	} else {
		slog.Info("payment verified",
			slog.String("payment_id", paymentID),
			slog.Int64("user_id", payment.UserID),
			slog.Int("scores_granted", scores),
			slog.Int("balance", balance),
		)
	}

	payment.Status = model.PaymentCompleted
	payment.TransactionID = transactionID
	payment.CompletedAt = &completedAt
	return payment, nil
}

// Cancel はpending状態の決済をキャンセルする。
// pendingでない決済はPAYMENT_CANNOT_BE_CANCELLEDを返す。
func (s *Service) Cancel(ctx context.Context, paymentID string) (*model.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	if payment == nil {
		return nil, model.NewPaymentNotFoundError(paymentID)
	}

	ok, err := s.payments.MarkCancelled(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel payment: %w", err)
	}
	if !ok {
		return nil, model.NewPaymentCannotBeCancelledError()
	}

	slog.Info("payment cancelled", slog.String("payment_id", paymentID))

	payment.Status = model.PaymentCancelled
	return payment, nil
}
