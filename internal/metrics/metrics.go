// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordLogin(newUser bool)
	RecordFire(isLike bool)
	RecordMatch()
	RecordPaymentCompleted(amount int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins            *prometheus.CounterVec
	fires             *prometheus.CounterVec
	matches           prometheus.Counter
	paymentsCompleted prometheus.Counter
	starsCollected    prometheus.Counter
	httpStatus        *prometheus.CounterVec
	requestLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matcha_logins_total",
			Help: "ログイン成功の合計数（新規/既存ユーザー別）",
		}, []string{"new_user"}),
		fires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matcha_fires_total",
			Help: "記録された評価の合計数（ライク/ディスライク別）",
		}, []string{"is_like"}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matcha_matches_total",
			Help: "成立した相互マッチの合計数",
		}),
		paymentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matcha_payments_completed_total",
			Help: "確定した決済の合計数",
		}),
		starsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matcha_stars_collected_total",
			Help: "確定した決済のStars合計額",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matcha_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matcha_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.fires,
		c.matches,
		c.paymentsCompleted,
		c.starsCollected,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordLogin はログイン成功を記録する。
func (c *Collector) RecordLogin(newUser bool) {
	c.logins.WithLabelValues(strconv.FormatBool(newUser)).Inc()
}

// RecordFire は評価の記録を記録する。
func (c *Collector) RecordFire(isLike bool) {
	c.fires.WithLabelValues(strconv.FormatBool(isLike)).Inc()
}

// RecordMatch は相互マッチの成立を記録する。
func (c *Collector) RecordMatch() {
	c.matches.Inc()
}

// RecordPaymentCompleted は決済の確定を記録する。
func (c *Collector) RecordPaymentCompleted(amount int) {
	c.paymentsCompleted.Inc()
	c.starsCollected.Add(float64(amount))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
