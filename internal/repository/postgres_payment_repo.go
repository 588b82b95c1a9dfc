package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/matcha/internal/model"
)

// PostgresPaymentRepo はPostgreSQLを使用した決済リポジトリ。
type PostgresPaymentRepo struct {
	db *sql.DB
}

// NewPostgresPaymentRepo はPostgresPaymentRepoを生成する。
func NewPostgresPaymentRepo(db *sql.DB) *PostgresPaymentRepo {
	return &PostgresPaymentRepo{db: db}
}

const paymentColumns = `id, user_id, amount, currency, description, status,
	 transaction_id, created_at, completed_at`

func scanPayment(row interface {
	Scan(dest ...interface{}) error
}) (*model.Payment, error) {
	payment := &model.Payment{}
	var transactionID sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&payment.ID, &payment.UserID, &payment.Amount, &payment.Currency,
		&payment.Description, &payment.Status, &transactionID,
		&payment.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if transactionID.Valid {
		payment.TransactionID = transactionID.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		payment.CompletedAt = &t
	}
	return payment, nil
}

// Create は決済レコードを作成する。
func (r *PostgresPaymentRepo) Create(ctx context.Context, payment *model.Payment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (id, user_id, amount, currency, description, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		payment.ID, payment.UserID, payment.Amount, payment.Currency,
		payment.Description, payment.Status, payment.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// FindByID は指定IDの決済を取得する。見つからない場合はnilを返す。
func (r *PostgresPaymentRepo) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`,
		id,
	)

	payment, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}

	return payment, nil
}

// ListByUserID はユーザーの決済履歴を作成日時降順で返す。
func (r *PostgresPaymentRepo) ListByUserID(ctx context.Context, userID int64, offset, limit int) ([]*model.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+`
		 FROM payments
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 OFFSET $2 LIMIT $3`,
		userID, offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*model.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payments: %w", err)
	}

	return payments, nil
}

// MarkCompleted はpending状態の決済をcompletedに遷移させる。
// WHERE句のstatus条件により、並行した二重確定は片方だけが成功する。
func (r *PostgresPaymentRepo) MarkCompleted(ctx context.Context, id, transactionID string, completedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payments
		 SET status = $2, transaction_id = $3, completed_at = $4
		 WHERE id = $1 AND status = $5`,
		id, model.PaymentCompleted, transactionID, completedAt, model.PaymentPending,
	)
	if isUniqueViolation(err) {
		return false, ErrDuplicateKey
	}
	if err != nil {
		return false, fmt.Errorf("failed to complete payment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// MarkCancelled はpending状態の決済をcancelledに遷移させる。
func (r *PostgresPaymentRepo) MarkCancelled(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE payments
		 SET status = $2
		 WHERE id = $1 AND status = $3`,
		id, model.PaymentCancelled, model.PaymentPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel payment: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// compile-time interface check
var _ PaymentRepository = (*PostgresPaymentRepo)(nil)
