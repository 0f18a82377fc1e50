package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/httpx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// HealthReporter produces the dependency report served on /readyz.
type HealthReporter interface {
	Collect(ctx context.Context) repositories.HealthReport
}

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	build    BuildInfo
	clock    func() time.Time
	reporter HealthReporter
}

// HealthOption configures HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata included in responses.
func WithHealthBuildInfo(info BuildInfo) HealthOption {
	return func(h *HealthHandlers) { h.build = info }
}

// WithHealthClock overrides the clock used for uptime.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithHealthReporter sets the dependency checks run by /readyz.
func WithHealthReporter(r HealthReporter) HealthOption {
	return func(h *HealthHandlers) { h.reporter = r }
}

// NewHealthHandlers constructs the probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.build.StartedAt.IsZero() {
		h.build.StartedAt = h.clock()
	}
	return h
}

// Healthz reports liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	_ = httpx.WriteJSON(w, "", http.StatusOK, h.payload(repositories.HealthOK))
}

// Readyz runs the dependency checks. Any failing check yields 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.reporter == nil {
		_ = httpx.WriteJSON(w, "", http.StatusOK, h.payload(repositories.HealthOK))
		return
	}

	report := h.reporter.Collect(r.Context())
	status := http.StatusOK
	if report.Status == repositories.HealthError {
		status = http.StatusServiceUnavailable
	}
	payload := h.payload(report.Status)
	payload["checks"] = report.Checks
	_ = httpx.WriteJSON(w, "", status, payload)
}

func (h *HealthHandlers) payload(status repositories.HealthStatus) map[string]any {
	now := h.clock()
	payload := map[string]any{
		"status":    status,
		"uptime":    now.Sub(h.build.StartedAt).String(),
		"timestamp": now.UTC().Format(time.RFC3339),
	}
	if h.build.Version != "" {
		payload["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		payload["commitSha"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}
	return payload
}
