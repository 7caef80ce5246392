// internal/proxy/router/router.go
package router

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/authz"
	"apikeyauth/internal/httputils"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"

	"github.com/gorilla/mux"
)

// Rule actions
const (
	// ActionAllow proxies the request without looking at the caller
	ActionAllow = "allow"
	// ActionDeny rejects the request with 403
	ActionDeny = "deny"
	// ActionAuthenticate requires an identity satisfying the rule's policy
	ActionAuthenticate = "authenticate"
)

// Rule defines a routing rule
type Rule struct {
	// Name is a unique identifier for the rule
	Name string

	// Action determines what action to take for matched requests
	// Can be "allow", "deny", or "authenticate"
	Action string

	// Paths is a list of URL paths this rule applies to
	Paths []string

	// MatchPrefix indicates whether to match the path prefix instead of exact match
	MatchPrefix bool

	// Methods is a list of HTTP methods this rule applies to (empty = all methods)
	Methods []string

	// Policy is the authorization policy for the "authenticate" action.
	// Ignored for other actions
	Policy string
}

// Router is a proxy router that implements routing rules and authentication/authorization
type Router struct {
	*mux.Router
	target      *httputil.ReverseProxy
	challenger  auth.Challenger
	authorizer  authz.Authorizer
	rules       []Rule
	logger      *logging.Logger
	metrics     *metrics.Collector
	upstreamURL *url.URL
}

// Config holds router configuration
type Config struct {
	// UpstreamURL is the URL of the upstream service
	UpstreamURL *url.URL

	// UpstreamTimeout is the timeout for upstream service requests
	UpstreamTimeout time.Duration

	// Rules is the list of routing rules
	Rules []Rule
}

// New creates a new router. challenger answers requests that reach an
// "authenticate" rule without an identity.
func New(config Config, challenger auth.Challenger, authorizer authz.Authorizer, logger *logging.Logger, metricsCollector *metrics.Collector) *Router {
	logger = logger.WithModule("proxy.router")

	target := httputil.NewSingleHostReverseProxy(config.UpstreamURL)
	target.Transport = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: config.UpstreamTimeout,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	target.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		logging.LoggerOrDefault(req.Context(), logger).Error("Upstream request failed",
			logging.Err(err),
			"upstream", config.UpstreamURL.Host,
		)
		w.WriteHeader(http.StatusBadGateway)
	}

	r := &Router{
		Router:      mux.NewRouter(),
		target:      target,
		challenger:  challenger,
		authorizer:  authorizer,
		rules:       config.Rules,
		logger:      logger,
		metrics:     metricsCollector,
		upstreamURL: config.UpstreamURL,
	}

	r.setupRoutes()

	return r
}

// setupRoutes configures routes based on rules. The first matching rule wins.
func (r *Router) setupRoutes() {
	allowHandler := r.createAllowHandler()
	denyHandler := r.createDenyHandler()

	for _, rule := range r.rules {
		r.logger.Debug("Setting up route",
			"name", rule.Name,
			"action", rule.Action,
			"paths", rule.Paths,
			"methods", rule.Methods,
		)

		var handler http.Handler
		switch rule.Action {
		case ActionAllow:
			handler = allowHandler
		case ActionDeny:
			handler = denyHandler
		case ActionAuthenticate:
			handler = r.createAuthHandlerForRule(rule)
		default:
			r.logger.Warn("Unknown action in rule, defaulting to deny",
				"rule", rule.Name, "action", rule.Action)
			handler = denyHandler
		}

		for _, path := range rule.Paths {
			var route *mux.Route
			if rule.MatchPrefix {
				route = r.PathPrefix(path)
			} else {
				route = r.Path(path)
			}

			if len(rule.Methods) > 0 {
				route = route.Methods(rule.Methods...)
			}

			route.Name(rule.Name).Handler(handler)
		}
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.logger.Warn("Request received for undefined route", "path", req.URL.Path)
		http.Error(w, "404 page not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "405 method not allowed", http.StatusMethodNotAllowed)
	})
}

// createAllowHandler creates a reusable handler for "allow" rules
func (r *Router) createAllowHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ruleName := mux.CurrentRoute(req).GetName()
		logger := logging.LoggerOrDefault(req.Context(), r.logger)

		logger.Debug("Allow handler called",
			"rule", ruleName,
			"path", req.URL.Path,
			"method", req.Method,
		)

		r.metrics.RecordRuleMatch(ruleName, ActionAllow)
		r.proxy(w, req)
	})
}

// createDenyHandler creates a reusable handler for "deny" rules
func (r *Router) createDenyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ruleName := mux.CurrentRoute(req).GetName()
		logger := logging.LoggerOrDefault(req.Context(), r.logger)

		logger.Debug("Deny handler called",
			"rule", ruleName,
			"path", req.URL.Path,
			"method", req.Method,
		)

		r.metrics.RecordRuleMatch(ruleName, ActionDeny)
		http.Error(w, "Forbidden", http.StatusForbidden)
	})
}

// createAuthHandlerForRule creates a handler for a specific "authenticate" rule
func (r *Router) createAuthHandlerForRule(rule Rule) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		logger := logging.LoggerOrDefault(ctx, r.logger)

		logger.Debug("Auth handler called",
			"rule", rule.Name,
			"policy", rule.Policy,
			"path", req.URL.Path,
			"method", req.Method,
		)

		r.metrics.RecordRuleMatch(rule.Name, ActionAuthenticate)

		identity := auth.IdentityFromContext(ctx)
		resp := r.authorizer.Authorize(&authz.Request{
			Identity: identity,
			Policy:   rule.Policy,
			Context:  ctx,
		})

		switch resp.Decision {
		case authz.Allow:
			logger.Debug("Authorization successful",
				"subject", identity.Subject,
				"policy", rule.Policy,
				"rule", rule.Name,
			)
			r.proxy(w, req)

		case authz.Deny:
			logger.Info("Authorization failed: permission denied",
				"subject", identity.Subject,
				"policy", rule.Policy,
				"rule", rule.Name,
				"reason", resp.Reason,
			)
			http.Error(w, "Forbidden", http.StatusForbidden)

		case authz.Unauthorized:
			args := []any{"rule", rule.Name}
			if outcome, ok := auth.OutcomeFromContext(ctx); ok && outcome.IsFailed() {
				args = append(args, "reason", outcome.Failure().Error())
			}
			logger.Info("Authorization failed: unauthenticated", args...)
			r.challenger.Challenge(w, req)

		default:
			logger.Error("Authorization failed: error",
				logging.Err(resp.Error),
				"rule", rule.Name,
			)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}

// proxy forwards req upstream and records the upstream status and latency
func (r *Router) proxy(w http.ResponseWriter, req *http.Request) {
	startTime := time.Now()
	recorder := httputils.NewStatusRecorder(w)

	r.target.ServeHTTP(recorder, req)

	r.metrics.RecordUpstreamRequest(req.Method, r.upstreamURL.Host, recorder.StatusCode, time.Since(startTime))
}
