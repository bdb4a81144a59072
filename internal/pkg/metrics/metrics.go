package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow metrics for the order service. Registered on the default registry;
// exposed on /metrics by the bootstrap HTTP server.
var (
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orderflow_orders_created_total",
		Help: "Orders successfully created.",
	})

	SagaFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_saga_failures_total",
		Help: "Order processing failures by stage.",
	}, []string{"stage"})

	Compensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_compensations_total",
		Help: "Compensating actions executed, by step.",
	}, []string{"step"})

	PaymentDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "orderflow_payment_duration_seconds",
		Help:    "Wall time of payment capture calls.",
		Buckets: prometheus.DefBuckets,
	})

	StateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orderflow_state_transitions_total",
		Help: "Lifecycle transitions by target state.",
	}, []string{"state"})
)
