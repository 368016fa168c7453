package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gatherly"

// Registry is the registry behind /metrics. Using a dedicated registry
// keeps default-registry users (libraries, tests) from leaking in.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// NotificationsCreated counts notification rows written, by type.
var NotificationsCreated = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Total number of notifications created",
	},
	[]string{"type"},
)

// SideEffectFailures counts suppressed notification/email failures.
// These never fail the primary operation, so the counter is the only
// place they surface besides logs.
var SideEffectFailures = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "side_effect_failures_total",
		Help:      "Total number of suppressed notification/email side-effect failures",
	},
	[]string{"kind"},
)

// RegistrationTransitions counts registration workflow transitions.
var RegistrationTransitions = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registration_transitions_total",
		Help:      "Total number of registration workflow transitions",
	},
	[]string{"transition"},
)

// Handler serves the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
