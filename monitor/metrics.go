package monitor

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	ChecklistReconcileCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_reconcile_total",
			Help: "Checklist reconciliations by outcome",
		},
		[]string{"outcome"}, // written, unchanged, failed
	)

	ChecklistTransitionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checklist_item_transitions_total",
			Help: "Checklist items promoted to UPLOADED by signal source",
		},
		[]string{"source"},
	)

	StageAdvanceCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "project_stage_advance_total",
			Help: "Automatic project stage transitions",
		},
		[]string{"from", "to"},
	)

	EmailSentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "email_sent_total",
			Help: "Outbound e-mails by template and status",
		},
		[]string{"template", "status"},
	)

	OnboardingReminderCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_reminders_total",
			Help: "Onboarding reminders by status",
		},
		[]string{"status"},
	)

	LLMCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_call_latency_ms",
			Help:    "LLM completion latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"purpose", "status"},
	)
)

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementChecklistReconcile(outcome string) {
	ChecklistReconcileCount.WithLabelValues(outcome).Inc()
}

func IncrementChecklistTransition(source string) {
	ChecklistTransitionCount.WithLabelValues(source).Inc()
}

func IncrementStageAdvance(from, to string) {
	StageAdvanceCount.WithLabelValues(from, to).Inc()
}

func IncrementEmailSent(template, status string) {
	EmailSentCount.WithLabelValues(template, status).Inc()
}

func IncrementOnboardingReminder(status string) {
	OnboardingReminderCount.WithLabelValues(status).Inc()
}

func RecordLLMCallLatency(purpose, status string, duration time.Duration) {
	LLMCallLatency.WithLabelValues(purpose, status).Observe(float64(duration.Milliseconds()))
}

// Middleware observes request duration labelled by the matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// RegisterMetricsRoute exposes the Prometheus registry on /metrics.
func RegisterMetricsRoute(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
