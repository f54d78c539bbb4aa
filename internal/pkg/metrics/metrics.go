// Package metrics 定義 Prometheus 指標
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 模型請求結果
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCacheHit = "cache_hit"
)

var (
	completionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitchen_completion_requests_total",
			Help: "Completion gateway calls by task and outcome",
		},
		[]string{"task", "outcome"},
	)

	completionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kitchen_completion_duration_seconds",
			Help:    "Completion gateway latency including retries",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"task"},
	)

	dialogueEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitchen_dialogue_events_total",
			Help: "Inbound dialogue events by kind",
		},
		[]string{"kind"},
	)

	staleReferences = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitchen_stale_references_total",
			Help: "Button presses or completions rejected as stale",
		},
	)

	sessionsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kitchen_sessions_reaped_total",
			Help: "Sessions deleted by the reaper",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kitchen_queue_depth",
			Help: "Events waiting in the worker queue",
		},
	)
)

// RecordCompletion 記錄一次模型請求
func RecordCompletion(task, outcome string, d time.Duration) {
	completionRequests.WithLabelValues(task, outcome).Inc()
	if outcome != OutcomeCacheHit {
		completionDuration.WithLabelValues(task).Observe(d.Seconds())
	}
}

// RecordEvent 記錄一次對話事件
func RecordEvent(kind string) {
	dialogueEvents.WithLabelValues(kind).Inc()
}

// RecordStale 記錄一次過期引用
func RecordStale() {
	staleReferences.Inc()
}

// RecordReaped 記錄清除的會話數
func RecordReaped(n int64) {
	if n > 0 {
		sessionsReaped.Add(float64(n))
	}
}

// SetQueueDepth 更新隊列深度
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}
