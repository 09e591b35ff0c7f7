package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	GenerationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qg_generation_attempts_total",
			Help: "Calls made to the generation endpoint, by persona.",
		},
		[]string{"persona"},
	)

	QuotaRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qg_generation_quota_retries_total",
			Help: "Rate-limited generation calls that were retried after backoff.",
		},
		[]string{"persona"},
	)

	Fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qg_generation_fallbacks_total",
			Help: "Generations that ended in the fixed apology text, by reason.",
		},
		[]string{"persona", "reason"},
	)

	GenerationLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "qg_generation_seconds",
			Help:    "Latency of a single generation call.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"persona"},
	)

	Turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qg_turns_total",
			Help: "Composed user turns, by mode.",
		},
		[]string{"mode"},
	)

	MessagesPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qg_messages_persisted_total",
			Help: "Messages written by the orchestrator, by role.",
		},
		[]string{"role"},
	)
)

func init() {
	prometheus.MustRegister(GenerationAttempts)
	prometheus.MustRegister(QuotaRetries)
	prometheus.MustRegister(Fallbacks)
	prometheus.MustRegister(GenerationLatency)
	prometheus.MustRegister(Turns)
	prometheus.MustRegister(MessagesPersisted)
}

// Handler serves the default registry on a fasthttp route.
func Handler() fasthttp.RequestHandler {
	return fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
}
