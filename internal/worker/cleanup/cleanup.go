// Package cleanup は失効セッションの削除とマッチ整合性の修復を行う
// バックグラウンドワーカーを提供する。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// SessionCleaner は失効セッション削除のインターフェース。
type SessionCleaner interface {
	// DeleteExpired はnow以前に失効した全セッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// MatchRepairer は片側マッチ修復のインターフェース。
type MatchRepairer interface {
	// RepairHalfMatched は片側のみis_matchが立っている組の逆側を修復し、修復件数を返す。
	RepairHalfMatched(ctx context.Context) (int64, error)
}

// Worker は定期的にセッション削除とマッチ修復を実行する。
type Worker struct {
	sessions SessionCleaner
	fires    MatchRepairer
	logger   *slog.Logger

	// テストで現在時刻を固定するためのフック
	now func() time.Time
}

// NewWorker はWorkerの新しいインスタンスを生成する。
func NewWorker(sessions SessionCleaner, fires MatchRepairer, logger *slog.Logger) *Worker {
	return &Worker{
		sessions: sessions,
		fires:    fires,
		logger:   logger,
		now:      time.Now,
	}
}

// Start は指定間隔のティッカーでワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("cleanup worker started",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce はセッション削除とマッチ修復を1回ずつ実行する。
// 片方が失敗してももう片方は実行される。
func (w *Worker) RunOnce(ctx context.Context) {
	start := time.Now()

	deleted, err := w.sessions.DeleteExpired(ctx, w.now().UTC())
	if err != nil {
		w.logger.Error("failed to delete expired sessions",
			slog.String("error", err.Error()),
		)
	} else if deleted > 0 {
		w.logger.Info("expired sessions deleted",
			slog.Int64("count", deleted),
		)
	}

	repaired, err := w.fires.RepairHalfMatched(ctx)
	if err != nil {
		w.logger.Error("failed to repair half-matched pairs",
			slog.String("error", err.Error()),
		)
	} else if repaired > 0 {
		w.logger.Warn("half-matched pairs repaired",
			slog.Int64("count", repaired),
		)
	}

	w.logger.Info("cleanup cycle completed",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}
