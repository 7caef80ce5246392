package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T, buf *bytes.Buffer) *Provider {
	t.Helper()
	logger, err := logging.New(buf, "debug", logging.FormatJSON)
	require.NoError(t, err)
	return &Provider{Logger: logger, Metrics: metrics.NewCollector()}
}

func TestMiddlewareTracing(t *testing.T) {
	var buf bytes.Buffer
	p := newProvider(t, &buf)

	var ctxTrace string
	handler := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxTrace = logging.GetTraceIDFromContext(r.Context())
		assert.NotEmpty(t, logging.GetSpanIDFromContext(r.Context()))
		assert.NotNil(t, logging.LoggerFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/values/anon", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	traceID := w.Header().Get(TraceHeader)
	require.NotEmpty(t, traceID)
	assert.Equal(t, traceID, ctxTrace)
	_, err := uuid.Parse(traceID)
	assert.NoError(t, err)

	var completed map[string]any
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &completed))
	assert.Equal(t, "Request completed", completed["msg"])
	assert.EqualValues(t, http.StatusTeapot, completed["status"])
	assert.Equal(t, traceID, completed[logging.TraceIDKey])
}

func TestMiddlewareKeepsInboundTraceID(t *testing.T) {
	var buf bytes.Buffer
	p := newProvider(t, &buf)
	handler := p.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	inbound := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(TraceHeader, inbound)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, inbound, w.Header().Get(TraceHeader))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(TraceHeader, "not-a-uuid\nforged")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.NotEqual(t, "not-a-uuid\nforged", w.Header().Get(TraceHeader))
}
