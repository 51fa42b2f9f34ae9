// Package metrics 定义推荐生成、批处理与推送的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal 单用户生成次数（status: success / failure / fallback）
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recflow_generations_total",
			Help: "Total number of single-user recommendation generations",
		},
		[]string{"algorithm", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recflow_generation_duration_seconds",
			Help:    "Duration of single-user recommendation generation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"algorithm"},
	)

	// BatchRunsTotal 批处理次数（status: done / failed / unreported）
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recflow_batch_runs_total",
			Help: "Total number of batch recommendation runs",
		},
		[]string{"status"},
	)

	BatchUsers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recflow_batch_users_total",
			Help: "Users processed by batch runs by outcome",
		},
		[]string{"outcome"},
	)

	// NotificationsTotal 推送次数（status: sent / failed / rejected）
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recflow_notifications_total",
			Help: "Total number of push notification attempts",
		},
		[]string{"dispatcher", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recflow_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// ObserveGeneration 记录一次单用户生成。
func ObserveGeneration(algorithm, status string, started time.Time) {
	GenerationsTotal.WithLabelValues(algorithm, status).Inc()
	GenerationDuration.WithLabelValues(algorithm).Observe(time.Since(started).Seconds())
}
