package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/matcha/internal/metrics"
	"github.com/hitoshi/matcha/internal/middleware"
	"github.com/hitoshi/matcha/internal/model"
)

// defaultHistoryLimit は決済履歴のデフォルト件数。
const defaultHistoryLimit = 20

// PaymentServiceInterface は決済ハンドラーが必要とするサービスインターフェース。
type PaymentServiceInterface interface {
	// Create はpending状態の決済レコードを作成する。
	Create(ctx context.Context, userID int64, amount int, description string) (*model.Payment, error)
	// History はユーザーの決済履歴を作成日時降順で返す。
	History(ctx context.Context, userID int64, offset, limit int) ([]*model.Payment, error)
	// Verify は決済を確定し、スコアを付与する。
	Verify(ctx context.Context, paymentID, transactionID string) (*model.Payment, error)
	// Cancel はpending状態の決済をキャンセルする。
	Cancel(ctx context.Context, paymentID string) (*model.Payment, error)
}

// PaymentHandler は決済のHTTPハンドラー。
type PaymentHandler struct {
	service PaymentServiceInterface
	metrics metrics.MetricsCollector // nilの場合は記録しない
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface, collector metrics.MetricsCollector) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		metrics: collector,
	}
}

// createPaymentRequest は決済作成リクエストのボディ。
type createPaymentRequest struct {
	Amount      int    `json:"amount"`
	Description string `json:"description"`
}

// verifyPaymentRequest は決済確定リクエストのボディ。
type verifyPaymentRequest struct {
	TransactionID string `json:"transactionId"`
}

// Create は決済の作成を処理する。
// POST /api/payments
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	payment, err := h.service.Create(r.Context(), user.TgID, req.Amount, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, payment)
}

// History は決済履歴を返す。
// GET /api/payments?offset=&limit=
func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("offset", "must be a non-negative integer"))
			return
		}
		offset = parsed
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit", "must be a positive integer"))
			return
		}
		limit = parsed
	}

	payments, err := h.service.History(r.Context(), user.TgID, offset, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payments)
}

// Verify は決済の確定を処理する。
// POST /api/payments/{id}/verify
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.TransactionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("transactionId", "must not be empty"))
		return
	}

	payment, err := h.service.Verify(r.Context(), paymentID, req.TransactionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordPaymentCompleted(payment.Amount)
	}

	writeJSON(w, http.StatusOK, payment)
}

// Cancel は決済のキャンセルを処理する。
// POST /api/payments/{id}/cancel
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")

	payment, err := h.service.Cancel(r.Context(), paymentID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, payment)
}
