package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/matcha/internal/metrics"
	"github.com/hitoshi/matcha/internal/middleware"
	"github.com/hitoshi/matcha/internal/model"
)

// defaultRecommendationLimit は候補一覧のデフォルト件数。
const defaultRecommendationLimit = 20

// maxRecommendationLimit は候補一覧の最大件数。
const maxRecommendationLimit = 100

// MatchServiceInterface はマッチングハンドラーが必要とするサービスインターフェース。
type MatchServiceInterface interface {
	// RecordFire は評価を記録し、相互ライクの成立を判定する。
	RecordFire(ctx context.Context, actorID, targetID int64, isLike bool) (*model.FireResult, error)
	// ListMatches は相互マッチ済みの相手のユーザー一覧を返す。
	ListMatches(ctx context.Context, actorID int64) ([]*model.User, error)
	// ListRecommendations は未評価の候補一覧を返す。
	ListRecommendations(ctx context.Context, user *model.User, limit int) ([]*model.User, error)
}

// MatchHandler は評価・マッチング・候補推薦のHTTPハンドラー。
type MatchHandler struct {
	service MatchServiceInterface
	metrics metrics.MetricsCollector // nilの場合は記録しない
}

// NewMatchHandler はMatchHandlerを生成する。
func NewMatchHandler(service MatchServiceInterface, collector metrics.MetricsCollector) *MatchHandler {
	return &MatchHandler{
		service: service,
		metrics: collector,
	}
}

// fireRequest は評価リクエストのボディ。
type fireRequest struct {
	TargetUserID int64 `json:"targetUserId"`
	IsLike       bool  `json:"isLike"`
}

// Fire は評価の記録を処理する。
// POST /api/fire
func (h *MatchHandler) Fire(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req fireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.TargetUserID == 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("targetUserId", "must not be empty"))
		return
	}

	result, err := h.service.RecordFire(r.Context(), user.TgID, req.TargetUserID, req.IsLike)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordFire(req.IsLike)
		if result.IsMatch {
			h.metrics.RecordMatch()
		}
	}

	writeJSON(w, http.StatusCreated, result)
}

// Recommendations は未評価の候補一覧を返す。
// GET /api/recommendations?limit=
func (h *MatchHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	limit := defaultRecommendationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limit", "must be a positive integer"))
			return
		}
		if parsed > maxRecommendationLimit {
			parsed = maxRecommendationLimit
		}
		limit = parsed
	}

	candidates, err := h.service.ListRecommendations(r.Context(), user, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, candidates)
}

// Matches は相互マッチ済みの相手一覧を返す。
// GET /api/matches
func (h *MatchHandler) Matches(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	matches, err := h.service.ListMatches(r.Context(), user.TgID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, matches)
}
