package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vidtube/backend/internal/apperr"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts served requests by method, route and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vidtube_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"route"},
	)

	// RateLimitRejectionsTotal counts requests refused by the limiter, by scope.
	RateLimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"scope"},
	)
)

// Core metrics
var (
	// OperationsTotal counts core operations by name and outcome kind.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_operations_total",
			Help: "Core operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// RelationTogglesTotal counts toggles by target kind and resulting state.
	RelationTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vidtube_relation_toggles_total",
			Help: "Relation toggles by target kind and result (created/removed)",
		},
		[]string{"kind", "result"},
	)

	// RefreshRejectionsTotal counts refresh attempts refused for reuse of a rotated-out token.
	RefreshRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vidtube_refresh_reuse_rejections_total",
			Help: "Refresh attempts rejected because the token was rotated out or revoked",
		},
	)

	// CircuitBreakerState tracks breaker state per component (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vidtube_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Outcome labels an operation result by its error kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch kind := apperr.KindOf(err); {
	case errors.Is(kind, apperr.ErrValidation):
		return "validation"
	case errors.Is(kind, apperr.ErrConflict):
		return "conflict"
	case errors.Is(kind, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(kind, apperr.ErrAuth):
		return "auth"
	case errors.Is(kind, apperr.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

// ObserveOperation records one completed core operation.
func ObserveOperation(operation string, err error) {
	OperationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
}
