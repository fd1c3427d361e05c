package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Invocation metrics
	Invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_invocations_total",
			Help: "Total number of gateway invocations",
		},
		[]string{"action", "provider", "model", "status"}, // status: success|error
	)

	InvocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_invocation_duration_seconds",
			Help:    "End-to-end invocation duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"action"},
	)

	InvocationRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_invocation_retries_total",
			Help: "Total number of provider call retries",
		},
		[]string{"provider", "reason"}, // reason: rate_limited|timeout|unknown
	)

	// Provider metrics
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_provider_latency_seconds",
			Help:    "Provider API call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model"},
	)

	ProviderTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_provider_tokens_total",
			Help: "Total tokens consumed per provider",
		},
		[]string{"provider", "model", "type"}, // type: input|output
	)

	ProviderCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_provider_cost_usd",
			Help: "Estimated AI spend in USD",
		},
		[]string{"provider", "model"},
	)

	// Dispatch queue metrics
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hermes_dispatch_queue_depth",
			Help: "Current number of invocations waiting in the dispatch queue",
		},
	)

	QueueRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hermes_dispatch_queue_rejections_total",
			Help: "Total number of invocations rejected because the queue was full",
		},
	)

	// Template metrics
	TemplateRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_template_renders_total",
			Help: "Total number of prompt template renders",
		},
		[]string{"status"}, // status: success|error
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(Invocations)
	prometheus.MustRegister(InvocationDuration)
	prometheus.MustRegister(InvocationRetries)

	prometheus.MustRegister(ProviderLatency)
	prometheus.MustRegister(ProviderTokens)
	prometheus.MustRegister(ProviderCost)

	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(QueueRejections)

	prometheus.MustRegister(TemplateRenders)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordInvocation records a finished invocation.
func RecordInvocation(action, provider, model string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	Invocations.WithLabelValues(action, provider, model, status).Inc()
	InvocationDuration.WithLabelValues(action).Observe(duration.Seconds())
}

// RecordProviderCall records one provider API call.
func RecordProviderCall(provider, model string, latency time.Duration, promptTokens, completionTokens int, cost float64) {
	ProviderLatency.WithLabelValues(provider, model).Observe(latency.Seconds())

	if promptTokens > 0 {
		ProviderTokens.WithLabelValues(provider, model, "input").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		ProviderTokens.WithLabelValues(provider, model, "output").Add(float64(completionTokens))
	}
	if cost > 0 {
		ProviderCost.WithLabelValues(provider, model).Add(cost)
	}
}

// RecordTemplateRender records a template render attempt.
func RecordTemplateRender(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TemplateRenders.WithLabelValues(status).Inc()
}
