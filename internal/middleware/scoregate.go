package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/matcha/internal/model"
)

// NewScoreGateMiddleware はスコア残高がないユーザーの評価操作を遮断するミドルウェアを返す。
// セッションミドルウェアの後に配置し、評価エンドポイントのみに適用する。
// 残高チェックは評価の記録自体とは独立したゲートであり、
// 評価の記録はスコアを消費しない。
func NewScoreGateMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r.Context())
			if err != nil {
				writeUnauthorized(w)
				return
			}

			if user.RestScores <= 0 {
				slog.Warn("score gate blocked request",
					slog.Int64("tg_id", user.TgID),
					slog.Int("rest_scores", user.RestScores),
				)
				writeAPIError(w, http.StatusForbidden, model.NewInsufficientScoresError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
