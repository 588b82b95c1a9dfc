package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/matcha/internal/model"
)

// PreCheckoutAnswerer はStars決済の事前確認に応答するインターフェース。
// botapi.Clientの部分集合として定義する。
type PreCheckoutAnswerer interface {
	AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error
}

// PaymentVerifier は決済確定のインターフェース。
// payment.Serviceの部分集合として定義する。
type PaymentVerifier interface {
	Verify(ctx context.Context, paymentID, transactionID string) (*model.Payment, error)
}

// WebhookHandler はTelegram Bot APIからのWebhook更新を処理する。
// 決済フローで受け取る更新は2種類:
//   - pre_checkout_query: 請求の事前確認。invoice_payload（決済ID）の存在を確認して応答する。
//   - message.successful_payment: 決済完了。帳簿を確定しスコアを付与する。
//
// Telegramは2xx以外の応答を再送するため、処理失敗もログに残した上で200を返す。
// 決済確定は冪等（conditional UPDATE）なので再送されても二重付与は起こらない。
type WebhookHandler struct {
	answerer PreCheckoutAnswerer
	verifier PaymentVerifier
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(answerer PreCheckoutAnswerer, verifier PaymentVerifier) *WebhookHandler {
	return &WebhookHandler{
		answerer: answerer,
		verifier: verifier,
	}
}

// webhookUpdate はTelegram Bot APIのUpdateのうち決済フローで使う部分。
type webhookUpdate struct {
	PreCheckoutQuery *preCheckoutQuery `json:"pre_checkout_query"`
	Message          *webhookMessage   `json:"message"`
}

type preCheckoutQuery struct {
	ID             string `json:"id"`
	InvoicePayload string `json:"invoice_payload"`
}

type webhookMessage struct {
	SuccessfulPayment *successfulPayment `json:"successful_payment"`
}

type successfulPayment struct {
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
}

// Handle はWebhook更新を処理する。
// POST /api/webhook/telegram
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var update webhookUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		// 解析できない更新は捨てる。Telegramへの再送要求はしない。
		slog.Warn("failed to parse webhook update", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusOK)
		return
	}

	switch {
	case update.PreCheckoutQuery != nil:
		h.handlePreCheckout(r.Context(), update.PreCheckoutQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		h.handleSuccessfulPayment(r.Context(), update.Message.SuccessfulPayment)
	}

	w.WriteHeader(http.StatusOK)
}

// handlePreCheckout は事前確認に応答する。
// invoice_payloadには決済作成時に発行したIDが入る。
func (h *WebhookHandler) handlePreCheckout(ctx context.Context, q *preCheckoutQuery) {
	if q.InvoicePayload == "" {
		if err := h.answerer.AnswerPreCheckoutQuery(ctx, q.ID, false, "unknown payment"); err != nil {
			slog.Error("failed to answer pre-checkout query",
				slog.String("query_id", q.ID),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	if err := h.answerer.AnswerPreCheckoutQuery(ctx, q.ID, true, ""); err != nil {
		slog.Error("failed to answer pre-checkout query",
			slog.String("query_id", q.ID),
			slog.String("error", err.Error()),
		)
	}
}

// handleSuccessfulPayment は決済完了を帳簿に反映する。
func (h *WebhookHandler) handleSuccessfulPayment(ctx context.Context, p *successfulPayment) {
	if _, err := h.verifier.Verify(ctx, p.InvoicePayload, p.TelegramPaymentChargeID); err != nil {
		// 再送で既に確定済みの場合もここに来る。冪等なのでログのみ。
		slog.Warn("failed to verify payment from webhook",
			slog.String("payment_id", p.InvoicePayload),
			slog.String("error", err.Error()),
		)
	}
}
