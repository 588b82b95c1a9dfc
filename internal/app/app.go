// Package app はアプリケーションの起動とDIワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/matcha/internal/auth"
	"github.com/hitoshi/matcha/internal/botapi"
	"github.com/hitoshi/matcha/internal/config"
	"github.com/hitoshi/matcha/internal/database"
	"github.com/hitoshi/matcha/internal/handler"
	"github.com/hitoshi/matcha/internal/logger"
	"github.com/hitoshi/matcha/internal/match"
	"github.com/hitoshi/matcha/internal/metrics"
	"github.com/hitoshi/matcha/internal/middleware"
	"github.com/hitoshi/matcha/internal/payment"
	"github.com/hitoshi/matcha/internal/repository"
	"github.com/hitoshi/matcha/internal/security"
	"github.com/hitoshi/matcha/internal/storage"
	"github.com/hitoshi/matcha/internal/worker/cleanup"
)

// Version はビルド時にldflagsで上書きされるバージョン文字列。
var Version = "dev"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("version", Version),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// クリーンアップワーカーはバックグラウンドgoroutineとして同居する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	fireRepo := repository.NewPostgresFireRepo(db)
	paymentRepo := repository.NewPostgresPaymentRepo(db)

	// 3. Bot APIクライアントの初期化
	botClient := botapi.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		slog.Default(), cfg.BotAPIBaseURL, cfg.BotToken,
	)

	// Webhook URLを登録する。失敗してもサーバー起動は継続する
	// （手動登録済みのデプロイやBot API側の一時障害を想定）。
	webhookURL := cfg.BaseURL + "/api/webhook/telegram"
	if err := botClient.SetWebhook(context.Background(), webhookURL); err != nil {
		slog.Warn("failed to register webhook",
			slog.String("url", webhookURL),
			slog.String("error", err.Error()),
		)
	}

	// 4. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		BotToken:      cfg.BotToken,
		SessionTTL:    cfg.SessionTTL,
		InitialScores: cfg.InitialScores,
		DefaultLocale: cfg.DefaultLocale,
	}, nil)

	matchService := match.NewService(userRepo, fireRepo, botClient, nil)
	paymentService := payment.NewService(paymentRepo, userRepo, nil)

	// 5. セキュリティサービスの初期化
	sanitizer := security.NewProfileSanitizer()
	photoGuard := security.NewPhotoURLGuard()

	// 6. 写真ストレージの初期化（S3設定がある場合のみ）
	var photoStorage handler.PhotoStorage
	if cfg.PhotoStorageEnabled() {
		store, err := storage.NewPhotoStore(storage.Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize photo storage: %w", err)
		}
		photoStorage = store
		slog.Info("photo storage enabled", slog.String("bucket", cfg.S3Bucket))
	} else {
		slog.Info("photo storage disabled")
	}

	// 7. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 8. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitFire),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		UserResolver:      authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService:  authService,
		MatchService: matchService,

		ProfileUpdater:    userRepo,
		TextSanitizer:     sanitizer,
		PhotoURLValidator: photoGuard,
		PhotoStorage:      photoStorage,

		PaymentService:      paymentService,
		PreCheckoutAnswerer: botClient,

		DB:      db,
		Version: Version,

		Metrics:         collector,
		MetricsGatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 9. クリーンアップワーカーの起動
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	cleanupWorker := cleanup.NewWorker(sessionRepo, fireRepo, slog.Default())
	go cleanupWorker.Start(workerCtx, cfg.CleanupInterval)

	// 10. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/api/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
