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
// オーケストレーターやワーカーから利用する。
type MetricsCollector interface {
	RecordSyncSuccess(platform string)
	RecordSyncFailure(platform string)
	RecordRefreshResult(platform string, success bool)
	RecordPlatformHTTPStatus(platform string, statusCode int)
	RecordSyncLatency(platform string, duration time.Duration)
	RecordSnapshotsWritten(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess      *prometheus.CounterVec
	syncFail         *prometheus.CounterVec
	refreshResult    *prometheus.CounterVec
	platformStatus   *prometheus.CounterVec
	syncLatency      *prometheus.HistogramVec
	snapshotsWritten prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsync_sync_success_total",
			Help: "アカウント同期成功の合計数",
		}, []string{"platform"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsync_sync_fail_total",
			Help: "アカウント同期失敗の合計数",
		}, []string{"platform"}),
		refreshResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsync_token_refresh_total",
			Help: "トークンリフレッシュの結果別合計数",
		}, []string{"platform", "result"}),
		platformStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "socialsync_platform_http_status_total",
			Help: "プラットフォームAPIのHTTPステータスコード別レスポンス数",
		}, []string{"platform", "status_code"}),
		syncLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "socialsync_sync_latency_seconds",
			Help:    "アカウント同期のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"platform"}),
		snapshotsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "socialsync_snapshots_written_total",
			Help: "保存されたスナップショットの合計数",
		}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.refreshResult,
		c.platformStatus,
		c.syncLatency,
		c.snapshotsWritten,
	)

	return c
}

// RecordSyncSuccess はアカウント同期成功を記録する。
func (c *Collector) RecordSyncSuccess(platform string) {
	c.syncSuccess.WithLabelValues(platform).Inc()
}

// RecordSyncFailure はアカウント同期失敗を記録する。
func (c *Collector) RecordSyncFailure(platform string) {
	c.syncFail.WithLabelValues(platform).Inc()
}

// RecordRefreshResult はトークンリフレッシュの結果を記録する。
func (c *Collector) RecordRefreshResult(platform string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.refreshResult.WithLabelValues(platform, result).Inc()
}

// RecordPlatformHTTPStatus はプラットフォームAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordPlatformHTTPStatus(platform string, statusCode int) {
	c.platformStatus.WithLabelValues(platform, strconv.Itoa(statusCode)).Inc()
}

// RecordSyncLatency はアカウント同期のレイテンシを記録する。
func (c *Collector) RecordSyncLatency(platform string, duration time.Duration) {
	c.syncLatency.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordSnapshotsWritten は保存されたスナップショット数を記録する。
func (c *Collector) RecordSnapshotsWritten(count int) {
	c.snapshotsWritten.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
