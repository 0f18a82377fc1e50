// Package metrics exposes render and HTTP counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/observability"
)

const namespace = "seo"

// Recorder owns the Prometheus collectors. It implements hook.Observer.
type Recorder struct {
	registry     *prom.Registry
	rendered     *prom.CounterVec
	skipped      *prom.CounterVec
	fragments    prom.Histogram
	requests     *prom.CounterVec
	requestTimes *prom.HistogramVec
}

// NewRecorder registers the collectors on reg, or on a fresh registry when reg is
// nil. Process and Go runtime collectors are added to fresh registries only.
func NewRecorder(reg *prom.Registry) *Recorder {
	fresh := reg == nil
	if fresh {
		reg = prom.NewRegistry()
	}
	r := &Recorder{
		registry: reg,
		rendered: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pages_rendered_total",
			Help:      "Pages rendered with SEO head items by og:type",
		}, []string{"og_type"}),
		skipped: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pages_skipped_total",
			Help:      "Hook invocations that emitted nothing, by reason",
		}, []string{"reason"}),
		fragments: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "head_fragments",
			Help:      "Head items emitted per rendered page",
			Buckets:   prom.LinearBuckets(10, 10, 6),
		}),
		requests: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code",
		}, []string{"route", "status"}),
		requestTimes: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prom.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(r.rendered, r.skipped, r.fragments, r.requests, r.requestTimes)
	if fresh {
		reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	}
	return r
}

// PageRendered counts a rendered page.
func (r *Recorder) PageRendered(ogType string, fragments int) {
	if r == nil {
		return
	}
	r.rendered.WithLabelValues(ogType).Inc()
	r.fragments.Observe(float64(fragments))
}

// PageSkipped counts a hook invocation that emitted nothing.
func (r *Recorder) PageSkipped(reason string) {
	if r == nil {
		return
	}
	r.skipped.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Middleware counts requests by chi route pattern and status.
func (r *Recorder) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			rec := observability.NewStatusRecorder(w)
			next.ServeHTTP(rec, req)

			route := observability.RoutePattern(req)
			r.requests.WithLabelValues(route, strconv.Itoa(rec.Status())).Inc()
			r.requestTimes.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}
