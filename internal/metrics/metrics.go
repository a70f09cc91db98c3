package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gateway", Name: "requests_total", Help: "Inference requests by category and outcome."},
		[]string{"category", "outcome"},
	)
	BackendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gateway", Name: "backend_failures_total", Help: "Predictor call failures by category and kind."},
		[]string{"category", "kind"},
	)
	AuditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gateway", Name: "audit_writes_total", Help: "Audit store writes by status (ok, error, dropped, skipped)."},
		[]string{"status"},
	)
	LiveClients = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "gateway", Name: "live_clients", Help: "Connected live-feed websocket clients."},
	)
)

// Outcome labels for RequestsTotal.
const (
	OutcomeSucceeded        = "succeeded"
	OutcomeBackendFailed    = "backend_failed"
	OutcomeValidationFailed = "validation_failed"
)

// Audit write statuses.
const (
	AuditOK      = "ok"
	AuditError   = "error"
	AuditDropped = "dropped"
	AuditSkipped = "skipped"
)

func init() {
	_ = prometheus.Register(RequestsTotal)
	_ = prometheus.Register(BackendFailures)
	_ = prometheus.Register(AuditWrites)
	_ = prometheus.Register(LiveClients)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
