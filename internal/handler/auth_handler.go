package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/matcha/internal/metrics"
	"github.com/hitoshi/matcha/internal/middleware"
	"github.com/hitoshi/matcha/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はinitDataを検証し、ユーザーをupsertしてセッションを発行する。
	Login(ctx context.Context, initData string) (*model.User, *model.Session, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler は認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics metrics.MetricsCollector // nilの場合は記録しない
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, collector metrics.MetricsCollector) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: collector,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	InitData string `json:"initData"`
}

// loginResponse はログインレスポンス。
type loginResponse struct {
	User      *model.User `json:"user"`
	SessionID string      `json:"sessionId"`
}

// Login はTelegram initDataによるログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.InitData == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("initData", "must not be empty"))
		return
	}

	user, session, err := h.service.Login(r.Context(), req.InitData)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLogin(user.CreatedAt.Equal(user.UpdatedAt))
	}

	writeJSON(w, http.StatusOK, loginResponse{
		User:      user,
		SessionID: session.ID,
	})
}

// Me は現在のユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Logout はセッションを破棄する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(middleware.SessionHeaderName)
	if sessionID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Logout(r.Context(), sessionID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
