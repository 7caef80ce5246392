package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelRule     = "rule"
	LabelAction   = "action"
	LabelStatus   = "status"
	LabelMethod   = "method"
	LabelPath     = "path"
	LabelAuth     = "auth_type"
	LabelOutcome  = "outcome"
	LabelPolicy   = "policy"
	LabelDecision = "decision"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikeyauth_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apikeyauth_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// AuthenticationTotal counts authentication attempts by scheme and outcome
	AuthenticationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikeyauth_authentication_total",
			Help: "Total number of authentication attempts by outcome",
		},
		[]string{LabelAuth, LabelOutcome},
	)

	// ValidatorErrorsTotal counts validator errors, split by whether a
	// failure hook recovered them
	ValidatorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikeyauth_validator_errors_total",
			Help: "Total number of errors raised by credential validators",
		},
		[]string{LabelAuth, "handled"},
	)

	// AuthorizationTotal counts policy checks by policy and decision
	AuthorizationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikeyauth_authorization_total",
			Help: "Total number of authorization checks",
		},
		[]string{LabelPolicy, LabelDecision},
	)

	// RuleMatchTotal counts rule matches by rule name and action
	RuleMatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikeyauth_rule_match_total",
			Help: "Total number of rule matches",
		},
		[]string{LabelRule, LabelAction},
	)

	// UpstreamRequestTotal counts requests to upstream services
	UpstreamRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikeyauth_upstream_requests_total",
			Help: "Total number of requests to upstream services",
		},
		[]string{LabelMethod, "upstream", LabelStatus},
	)

	// UpstreamRequestDuration tracks the duration of upstream requests
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apikeyauth_upstream_request_duration_seconds",
			Help:    "Duration of requests to upstream services in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, "upstream"},
	)
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest records metrics for an HTTP request
func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAuthentication records the outcome of one authentication attempt
func (c *Collector) RecordAuthentication(authType, outcome string) {
	AuthenticationTotal.WithLabelValues(authType, outcome).Inc()
}

// RecordValidatorError records a validator error and whether a hook handled it
func (c *Collector) RecordValidatorError(authType string, handled bool) {
	ValidatorErrorsTotal.WithLabelValues(authType, strconv.FormatBool(handled)).Inc()
}

// RecordAuthorization records a policy check
func (c *Collector) RecordAuthorization(policy, decision string) {
	AuthorizationTotal.WithLabelValues(policy, decision).Inc()
}

// RecordRuleMatch records a rule match
func (c *Collector) RecordRuleMatch(ruleName, action string) {
	RuleMatchTotal.WithLabelValues(ruleName, action).Inc()
}

// RecordUpstreamRequest records a request to an upstream service
func (c *Collector) RecordUpstreamRequest(method, upstream string, status int, duration time.Duration) {
	UpstreamRequestTotal.WithLabelValues(method, upstream, strconv.Itoa(status)).Inc()
	UpstreamRequestDuration.WithLabelValues(method, upstream).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
