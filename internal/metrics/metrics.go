// Package metrics defines the gateway's prometheus collectors. All
// collectors register against the default registry and are served by the
// gateway's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts first-time instance registrations
	// (refreshes of an existing record are not counted).
	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codebridge",
		Name:      "registrations_total",
		Help:      "Number of backend instances registered for the first time.",
	})

	// UnregistrationsTotal counts explicit graceful unregistrations.
	UnregistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codebridge",
		Name:      "unregistrations_total",
		Help:      "Number of backend instances removed by explicit unregister.",
	})

	// EvictionsTotal counts records removed by the staleness reaper.
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codebridge",
		Name:      "evictions_total",
		Help:      "Number of backend instances evicted as stale.",
	})

	// ResolutionsTotal counts successful routing decisions by strategy:
	// explicit_port, solution_name, file_path, first_available.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codebridge",
		Name:      "resolutions_total",
		Help:      "Successful instance resolutions by strategy.",
	}, []string{"strategy"})

	// ResolutionFailuresTotal counts requests no instance could serve.
	ResolutionFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codebridge",
		Name:      "resolution_failures_total",
		Help:      "Routing attempts that matched no registered instance.",
	})

	// ForwardErrorsTotal counts forwards that failed at the transport
	// layer (unreachable backend, timeout, malformed response).
	ForwardErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codebridge",
		Name:      "forward_errors_total",
		Help:      "Query forwards that failed before a backend answered.",
	})

	// ForwardDuration observes end-to-end forward latency in seconds.
	ForwardDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "codebridge",
		Name:      "forward_duration_seconds",
		Help:      "Latency of forwarded backend queries.",
		Buckets:   prometheus.DefBuckets,
	})
)
