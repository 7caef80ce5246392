package router_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/auth/apikey"
	"apikeyauth/internal/auth/manager"
	"apikeyauth/internal/authz/policy"
	"apikeyauth/internal/keystore"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"
	"apikeyauth/internal/proxy/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRules = []router.Rule{
	{Name: "anon", Action: router.ActionAllow, Paths: []string{"/api/values/anon"}},
	{Name: "general", Action: router.ActionAuthenticate, Paths: []string{"/api/values/generalauthorize"}},
	{Name: "policy", Action: router.ActionAuthenticate, Paths: []string{"/api/values/policyauthorize"}, Policy: "TestPolicy"},
	{Name: "missing-policy", Action: router.ActionAuthenticate, Paths: []string{"/api/values/misconfigured"}, Policy: "Nope"},
	{Name: "admin", Action: router.ActionDeny, Paths: []string{"/admin"}, MatchPrefix: true},
	{Name: "typo", Action: "alow", Paths: []string{"/typo"}},
	{Name: "reads", Action: router.ActionAllow, Paths: []string{"/readonly"}, Methods: []string{http.MethodGet}},
}

type harness struct {
	handler  http.Handler
	upstream *httptest.Server
	hits     atomic.Int64
}

func newHarness(t *testing.T, scheme string) *harness {
	t.Helper()
	h := &harness{}

	h.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hits.Add(1)
		_, _ = io.WriteString(w, "upstream:"+r.URL.Path)
	}))
	t.Cleanup(h.upstream.Close)

	store, err := keystore.New([]keystore.KeyEntry{
		{Key: "SpecificClaim", Name: "TestUser", Claims: map[string][]string{"TestClaim": {"Test"}}},
		{Key: "GeneralAuth", Name: "TestUser"},
	})
	require.NoError(t, err)

	logger := logging.Discard()
	collector := metrics.NewCollector()

	apiKeyAuth, err := apikey.New(apikey.Options{Scheme: scheme, Validator: store}, logger, collector)
	require.NoError(t, err)

	authManager, err := manager.NewManager([]auth.Authenticator{apiKeyAuth}, "", logger, collector)
	require.NoError(t, err)

	authorizer, err := policy.New(policy.DefaultPolicies(), logger, collector)
	require.NoError(t, err)

	upstreamURL, err := url.Parse(h.upstream.URL)
	require.NoError(t, err)

	r := router.New(router.Config{
		UpstreamURL:     upstreamURL,
		UpstreamTimeout: 5 * time.Second,
		Rules:           sampleRules,
	}, authManager, authorizer, logger, collector)

	h.handler = authManager.Middleware(r)
	return h
}

func (h *harness) do(method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set(apikey.DefaultHeader, key)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func TestSampleScenarios(t *testing.T) {
	h := newHarness(t, "")

	tests := []struct {
		name          string
		path          string
		key           string
		wantStatus    int
		wantChallenge bool
	}{
		{name: "anonymous route without key", path: "/api/values/anon", wantStatus: http.StatusOK},
		{name: "anonymous route with general key", path: "/api/values/anon", key: "GeneralAuth", wantStatus: http.StatusOK},
		{name: "anonymous route with unknown key", path: "/api/values/anon", key: "AnythingElse", wantStatus: http.StatusOK},
		{name: "protected route without key", path: "/api/values/generalauthorize", wantStatus: http.StatusUnauthorized, wantChallenge: true},
		{name: "protected route with general key", path: "/api/values/generalauthorize", key: "GeneralAuth", wantStatus: http.StatusOK},
		{name: "protected route with unknown key", path: "/api/values/generalauthorize", key: "AnythingElse", wantStatus: http.StatusUnauthorized, wantChallenge: true},
		{name: "policy route with general key", path: "/api/values/policyauthorize", key: "GeneralAuth", wantStatus: http.StatusForbidden},
		{name: "policy route with claim key", path: "/api/values/policyauthorize", key: "SpecificClaim", wantStatus: http.StatusOK},
		{name: "policy route without key", path: "/api/values/policyauthorize", wantStatus: http.StatusUnauthorized, wantChallenge: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(http.MethodGet, tt.path, tt.key)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantChallenge {
				assert.Equal(t, "X-API-KEY", w.Header().Get("WWW-Authenticate"))
				assert.Empty(t, w.Body.String())
			} else {
				assert.Empty(t, w.Header().Get("WWW-Authenticate"))
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "upstream:"+tt.path, w.Body.String())
			}
		})
	}
}

func TestSchemePrefix(t *testing.T) {
	h := newHarness(t, "ApiKey")

	w := h.do(http.MethodGet, "/api/values/generalauthorize", "ApiKey GeneralAuth")
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/api/values/generalauthorize", "GeneralAuth")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "X-API-KEY ApiKey", w.Header().Get("WWW-Authenticate"))

	w = h.do(http.MethodGet, "/api/values/generalauthorize", "ApiKey ")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRuleActions(t *testing.T) {
	h := newHarness(t, "")

	t.Run("deny", func(t *testing.T) {
		w := h.do(http.MethodGet, "/admin/users", "SpecificClaim")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown action denies", func(t *testing.T) {
		w := h.do(http.MethodGet, "/typo", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("unknown policy is a server error", func(t *testing.T) {
		w := h.do(http.MethodGet, "/api/values/misconfigured", "GeneralAuth")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("unmatched path", func(t *testing.T) {
		w := h.do(http.MethodGet, "/nowhere", "GeneralAuth")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("method not listed", func(t *testing.T) {
		w := h.do(http.MethodPost, "/readonly", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("rejected requests never reach upstream", func(t *testing.T) {
		before := h.hits.Load()
		h.do(http.MethodGet, "/api/values/generalauthorize", "")
		h.do(http.MethodGet, "/api/values/policyauthorize", "GeneralAuth")
		h.do(http.MethodGet, "/admin", "")
		assert.Equal(t, before, h.hits.Load())
	})
}

func TestUpstreamUnavailable(t *testing.T) {
	h := newHarness(t, "")
	h.upstream.Close()

	w := h.do(http.MethodGet, "/api/values/anon", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
