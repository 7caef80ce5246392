package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"apikeyauth/internal/authz/policy"
	"apikeyauth/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, upstream string) *config.Config {
	t.Helper()

	keysFile := filepath.Join(t.TempDir(), "keys.yaml")
	require.NoError(t, os.WriteFile(keysFile, []byte(`
keys:
  - key: SpecificClaim
    name: TestUser
    claims:
      TestClaim: [Test]
  - key: GeneralAuth
    name: TestUser
`), 0o600))

	upstreamURL, err := url.Parse(upstream)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Metrics.Address = "127.0.0.1:0"
	cfg.Upstream.URL = upstreamURL
	cfg.Upstream.Timeout = 5 * time.Second
	cfg.Auth.APIKey.Enabled = true
	cfg.Auth.APIKey.Name = "ApiKeyToken"
	cfg.Auth.APIKey.Header = "X-API-KEY"
	cfg.Auth.APIKey.KeysFile = keysFile
	cfg.Observability.LogLevel = "error"
	cfg.Observability.LogFormat = "json"
	cfg.Policies = policy.DefaultPolicies()
	cfg.Rules = []config.Rule{
		{Name: "anon", Action: "allow", Paths: []string{"/api/values/anon"}},
		{Name: "policy", Action: "authenticate", Paths: []string{"/api/values/policyauthorize"}, Policy: "TestPolicy"},
		{Name: "default", Action: "authenticate", Paths: []string{"/"}, MatchPrefix: true},
	}
	return cfg
}

func TestServerEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer upstream.Close()

	srv, err := NewFromConfig(context.Background(), testConfig(t, upstream.URL))
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- srv.Serve(listener) }()

	base := "http://" + listener.Addr().String()
	get := func(path, key string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, base+path, nil)
		require.NoError(t, err)
		if key != "" {
			req.Header.Set("X-API-KEY", key)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := get("/api/values/anon", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	resp = get("/api/values/generalauthorize", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "X-API-KEY", resp.Header.Get("WWW-Authenticate"))

	assert.Equal(t, http.StatusOK, get("/api/values/generalauthorize", "GeneralAuth").StatusCode)
	assert.Equal(t, http.StatusForbidden, get("/api/values/policyauthorize", "GeneralAuth").StatusCode)
	assert.Equal(t, http.StatusOK, get("/api/values/policyauthorize", "SpecificClaim").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, get("/api/values/generalauthorize", "AnythingElse").StatusCode)

	require.NoError(t, srv.Stop(context.Background()))
	assert.NoError(t, <-done)
}

func TestNewFromConfigRejectsBadPolicies(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Policies = []policy.Policy{{Name: "A"}, {Name: "A"}}

	_, err := NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}
