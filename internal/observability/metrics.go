package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "helpdesk"

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errors            *prometheus.CounterVec
	ticketsCreated    *prometheus.CounterVec
	numberRetries     prometheus.Counter
	transitions       *prometheus.CounterVec
	authzDenials      *prometheus.CounterVec
	complianceResults *prometheus.CounterVec
	policyReloads     *prometheus.CounterVec
}

// NewMetrics registers collectors on reg. A nil reg uses a private registry,
// which keeps tests from colliding on the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by error code.",
		}, []string{"path", "method", "code"}),
		ticketsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "Tickets created, by priority.",
		}, []string{"priority"}),
		numberRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_number_retries_total",
			Help:      "Ticket creations retried after a duplicate ticket number.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticket_transitions_total",
			Help:      "Ticket transition attempts by event and result.",
		}, []string{"event", "result"}),
		authzDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_denials_total",
			Help:      "Denied authorization checks by role, action and subject.",
		}, []string{"role", "action", "subject"}),
		complianceResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_evaluations_total",
			Help:      "SLA evaluations by target and resulting status.",
		}, []string{"target", "status"}),
		policyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authz_policy_reloads_total",
			Help:      "Permission policy reloads by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.errors,
		m.ticketsCreated,
		m.numberRetries,
		m.transitions,
		m.authzDenials,
		m.complianceResults,
		m.policyReloads,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// TicketCreated counts a persisted ticket.
func (m *Metrics) TicketCreated(priority string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(priority).Inc()
}

// TicketNumberRetry counts a creation retried after a number collision.
func (m *Metrics) TicketNumberRetry() {
	if m == nil {
		return
	}
	m.numberRetries.Inc()
}

// Transition counts a transition attempt; result is "applied", "noop" or "rejected".
func (m *Metrics) Transition(event, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, result).Inc()
}

// AuthzDenied counts a denied authorization check.
func (m *Metrics) AuthzDenied(role, action, subject string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(role, action, subject).Inc()
}

// ComplianceEvaluated counts the outcome of one SLA target evaluation.
func (m *Metrics) ComplianceEvaluated(target, status string) {
	if m == nil {
		return
	}
	m.complianceResults.WithLabelValues(target, status).Inc()
}

// PolicyReload counts a permission policy reload attempt.
func (m *Metrics) PolicyReload(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.policyReloads.WithLabelValues(result).Inc()
}
