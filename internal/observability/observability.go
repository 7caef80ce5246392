// internal/observability/observability.go
package observability

import (
	"net/http"
	"time"

	"apikeyauth/internal/config"
	"apikeyauth/internal/httputils"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"

	"github.com/google/uuid"
)

// TraceHeader carries the trace ID in requests and responses
const TraceHeader = "X-Trace-ID"

// Provider provides observability capabilities
type Provider struct {
	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// NewProvider creates a new observability provider
func NewProvider(cfg *config.Config) (*Provider, error) {
	logger, err := logging.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Logger:  logger,
		Metrics: metrics.NewCollector(),
	}, nil
}

// Middleware creates an HTTP middleware for request observation. A valid
// UUID in the incoming X-Trace-ID header is kept as the trace ID.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ctx := r.Context()
		traceID := logging.GetTraceIDFromContext(ctx)
		if traceID == "" {
			traceID = inboundTraceID(r)
		}
		if traceID == "" {
			traceID = logging.NewTraceID()
		}
		spanID := logging.NewSpanID()

		ctx = logging.ContextWithTraceID(ctx, traceID)
		ctx = logging.ContextWithSpanID(ctx, spanID)

		logger := p.Logger.WithTracing(traceID, spanID)
		ctx = logging.ContextWithLogger(ctx, logger)

		recorder := httputils.NewStatusRecorder(w)
		recorder.Header().Set(TraceHeader, traceID)

		logger.Debug("Request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		r = r.WithContext(ctx)
		next.ServeHTTP(recorder, r)

		duration := time.Since(startTime)
		p.Metrics.RecordRequest(r.Method, r.URL.Path, recorder.StatusCode, duration)

		logger.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.StatusCode,
			"duration_ms", duration.Milliseconds(),
			"bytes_written", recorder.BytesWritten,
		)
	})
}

// MetricsHandler returns an HTTP handler for exposing metrics
func (p *Provider) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func inboundTraceID(r *http.Request) string {
	id, err := uuid.Parse(r.Header.Get(TraceHeader))
	if err != nil {
		return ""
	}
	return id.String()
}
