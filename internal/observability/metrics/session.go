package metrics

// Package metrics exposes session lifecycle and outbound API metrics through Prometheus.

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainauth "github.com/agrimarket/agrimarket-ui/internal/domain/auth"
	obserrors "github.com/agrimarket/agrimarket-ui/internal/observability/errors"
	"github.com/agrimarket/agrimarket-ui/internal/ports"
)

// Result constants for metric labels.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

const namespace = "agrimarket"

var _ ports.SessionMetrics = (*Recorder)(nil)

// Recorder records session and API client metrics on a Prometheus registry.
type Recorder struct {
	operations   *prometheus.CounterVec
	phase        *prometheus.GaugeVec
	unauthorized prometheus.Counter
	requests     *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors with reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Session operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "phase",
			Help:      "1 for the current session phase, 0 otherwise.",
		}, []string{"phase"}),
		unauthorized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "unauthorized_signals_total",
			Help:      "Responses from the remote API that rejected the session credential.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Authenticated API requests by result and error class.",
		}, []string{"result", "error_class"}),
	}

	for _, c := range []prometheus.Collector{r.operations, r.phase, r.unauthorized, r.requests} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) ObserveOperation(op, outcome string) {
	r.operations.WithLabelValues(op, outcome).Inc()
}

func (r *Recorder) ObservePhase(phase domainauth.Phase) {
	for _, p := range []domainauth.Phase{
		domainauth.PhaseUnchecked,
		domainauth.PhaseChecking,
		domainauth.PhaseAuthenticated,
		domainauth.PhaseUnauthenticated,
	} {
		v := 0.0
		if p == phase {
			v = 1
		}
		r.phase.WithLabelValues(p.String()).Set(v)
	}
}

func (r *Recorder) ObserveUnauthorized() {
	r.unauthorized.Inc()
}

// ObserveRequest counts an outbound API request. err is classified for the error_class label.
func (r *Recorder) ObserveRequest(err error) {
	if err == nil {
		r.requests.WithLabelValues(ResultSuccess, "").Inc()
		return
	}
	r.requests.WithLabelValues(ResultError, obserrors.Classify(err)).Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
