// Package handlers exposes the wiki pages and SEO metadata over HTTP.
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

// Option customises the router before construction.
type Option func(*routerConfig)

type mount struct {
	prefix string
	routes RouteRegistrar
}

type routerConfig struct {
	apiPrefix string
	chain     []func(http.Handler) http.Handler
	health    *HealthHandlers
	metrics   http.Handler
	root      []RouteRegistrar
	api       []mount
}

const (
	defaultAPIPrefix    = "/api/v1"
	defaultRouteTimeout = 30 * time.Second
	errorNotFoundCode   = "route_not_found"
)

// NewRouter builds the service router. Wiki pages hang off the root, the page
// metadata API off the API prefix, and probes plus metrics are always served.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		apiPrefix: defaultAPIPrefix,
		chain:     []func(http.Handler) http.Handler{middleware.RequestID, middleware.RealIP, middleware.Timeout(defaultRouteTimeout)},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.chain {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeRouteError(w, req, errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeRouteError(w, req, "method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed)
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)
	if cfg.metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metrics)
	}

	for _, reg := range cfg.root {
		reg(r)
	}
	if len(cfg.api) > 0 {
		r.Route(cfg.apiPrefix, func(api chi.Router) {
			for _, m := range cfg.api {
				api.Route(m.prefix, func(group chi.Router) { m.routes(group) })
			}
		})
	}
	return r
}

func writeRouteError(w http.ResponseWriter, req *http.Request, code, msg string, status int) {
	httpx.WriteError(req.Context(), w, httpx.NewError(code, msg, status))
}

// WithMiddlewares appends global middleware after the request id, real ip and timeout chain.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.chain = append(cfg.chain, mw...) }
}

// WithHealthHandlers replaces the default /healthz and /readyz handlers.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(cfg *routerConfig) { cfg.metrics = h }
}

// WithWikiRoutes mounts rendered wiki pages at the root.
func WithWikiRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		if reg != nil {
			cfg.root = append(cfg.root, reg)
		}
	}
}

// WithPageRoutes mounts the page metadata API under <prefix>/pages.
func WithPageRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		if reg != nil {
			cfg.api = append(cfg.api, mount{prefix: "/pages", routes: reg})
		}
	}
}

// WithBasePath overrides the API prefix.
func WithBasePath(path string) Option {
	return func(cfg *routerConfig) {
		if path != "" {
			cfg.apiPrefix = path
		}
	}
}
