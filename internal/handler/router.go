package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/matcha/internal/metrics"
	"github.com/hitoshi/matcha/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface

	// マッチング
	MatchService MatchServiceInterface

	// プロフィール
	ProfileUpdater    ProfileUpdater
	TextSanitizer     TextSanitizer
	PhotoURLValidator PhotoURLValidator
	PhotoStorage      PhotoStorage // nilの場合は写真アップロード無効

	// 決済
	PaymentService      PaymentServiceInterface
	PreCheckoutAnswerer PreCheckoutAnswerer

	// システム
	DB      Pinger
	Version string

	// メトリクス
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics → [Session → RateLimit(General)]
//
// ログイン・ヘルスチェック・Webhook・メトリクスは認証グループの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Metrics)
	matchHandler := NewMatchHandler(deps.MatchService, deps.Metrics)
	profileHandler := NewProfileHandler(deps.ProfileUpdater, deps.TextSanitizer, deps.PhotoURLValidator, deps.PhotoStorage)
	paymentHandler := NewPaymentHandler(deps.PaymentService, deps.Metrics)
	webhookHandler := NewWebhookHandler(deps.PreCheckoutAnswerer, deps.PaymentService)
	systemHandler := NewSystemHandler(deps.DB, deps.Version)

	// --- 認証不要のルート ---

	r.Post("/api/auth/login", authHandler.Login)
	r.Post("/api/webhook/telegram", webhookHandler.Handle)
	r.Get("/api/health", systemHandler.Health)
	r.Get("/api/version", systemHandler.Version)

	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.UserResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/auth/me", authHandler.Me)
		r.Post("/api/auth/logout", authHandler.Logout)

		// 評価（評価専用レート制限 + スコアゲートを追加）
		r.With(
			deps.RateLimiter.FireMiddleware(),
			middleware.NewScoreGateMiddleware(),
		).Post("/api/fire", matchHandler.Fire)

		r.Get("/api/recommendations", matchHandler.Recommendations)
		r.Get("/api/matches", matchHandler.Matches)

		// プロフィール管理
		r.Put("/api/profile", profileHandler.UpdateProfile)
		r.Post("/api/profile/photo", profileHandler.CreatePhotoUpload)

		// 決済管理
		r.Route("/api/payments", func(r chi.Router) {
			r.Post("/", paymentHandler.Create)
			r.Get("/", paymentHandler.History)
			r.Post("/{id}/verify", paymentHandler.Verify)
			r.Post("/{id}/cancel", paymentHandler.Cancel)
		})
	})

	return r
}
