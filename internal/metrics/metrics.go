// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はゲートウェイのPrometheusメトリクスを収集する。
// 各パッケージが定義する記録用インターフェースをまとめて満たす。
type Collector struct {
	guardDecisions   *prometheus.CounterVec
	gateDecisions    *prometheus.CounterVec
	planFetch        *prometheus.CounterVec
	backendRequests  *prometheus.CounterVec
	backendLatency   *prometheus.HistogramVec
	forcedLogouts    prometheus.Counter
	submissionStarts *prometheus.CounterVec
	cleanupDeleted   *prometheus.CounterVec

	reg prometheus.Registerer
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanux_guard_decisions_total",
			Help: "ルートガードの判定結果別の件数",
		}, []string{"guard", "state"}),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanux_gate_decisions_total",
			Help: "フィーチャーゲート・アクションガードの判定結果別の件数",
		}, []string{"feature", "result"}),
		planFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanux_plan_fetch_total",
			Help: "プラン取得の結果別の件数",
		}, []string{"result"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanux_backend_requests_total",
			Help: "バックエンドAPI呼び出しのエンドポイント・ステータス別の件数",
		}, []string{"endpoint", "status_code"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kanux_backend_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kanux_forced_logouts_total",
			Help: "バックエンドの401による強制ログアウトの件数",
		}),
		submissionStarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanux_submission_starts_total",
			Help: "受験開始の種別（新規・再開）別の件数",
		}, []string{"mode"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kanux_cleanup_deleted_total",
			Help: "クリーンアップで削除した行数",
		}, []string{"kind"}),
		reg: reg,
	}

	reg.MustRegister(
		c.guardDecisions,
		c.gateDecisions,
		c.planFetch,
		c.backendRequests,
		c.backendLatency,
		c.forcedLogouts,
		c.submissionStarts,
		c.cleanupDeleted,
	)

	return c
}

// RegisterPlanScopes は現在のプランスコープ数を返す関数をゲージとして登録する。
func (c *Collector) RegisterPlanScopes(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "kanux_plan_scopes",
		Help: "現在保持しているプランスコープ数",
	}, func() float64 { return float64(count()) }))
}

// RecordGuardDecision はルートガードの判定を記録する。
func (c *Collector) RecordGuardDecision(guard, state string) {
	c.guardDecisions.WithLabelValues(guard, state).Inc()
}

// RecordGateDecision はフィーチャーゲート・アクションガードの判定を記録する。
func (c *Collector) RecordGateDecision(feature, result string) {
	c.gateDecisions.WithLabelValues(feature, result).Inc()
}

// RecordPlanFetch はプラン取得の結果を記録する。
func (c *Collector) RecordPlanFetch(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.planFetch.WithLabelValues(result).Inc()
}

// RecordBackendRequest はバックエンド呼び出しを記録する。通信失敗はステータス0で記録される。
func (c *Collector) RecordBackendRequest(endpoint string, statusCode int, duration time.Duration) {
	c.backendRequests.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
	c.backendLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordForcedLogout は強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout() {
	c.forcedLogouts.Inc()
}

// RecordSubmissionStart は受験開始を記録する。
func (c *Collector) RecordSubmissionStart(mode string) {
	c.submissionStarts.WithLabelValues(mode).Inc()
}

// RecordCleanup はクリーンアップで削除した行数を記録する。
func (c *Collector) RecordCleanup(kind string, deleted int64) {
	c.cleanupDeleted.WithLabelValues(kind).Add(float64(deleted))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
