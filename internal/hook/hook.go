// Package hook wires the SEO formatter into the page output pipeline.
package hook

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/metadata"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/requestctx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/seo"
)

const instrumentationName = "github.com/metastore-mediawiki/mediawiki-ext-seo/internal/hook"

// Skip reasons reported to observers and logs.
const (
	SkipNoPage         = "no_page"
	SkipNotContentPage = "not_content_page"
	SkipLookupFailed   = "lookup_failed"
)

// Observer receives render outcomes, typically a metrics registry.
type Observer interface {
	PageRendered(ogType string, fragments int)
	PageSkipped(reason string)
}

// SEO is the output hook. It is safe for concurrent use; all request state lives on
// the context.
type SEO struct {
	host      host.Host
	collector *metadata.Collector
	observer  Observer
	logger    *zap.Logger
	tracer    trace.Tracer

	pages     metric.Int64Counter
	fragments metric.Int64Counter
	skipped   metric.Int64Counter
}

// Option configures SEO.
type Option func(*options)

type options struct {
	collector *metadata.Collector
	observer  Observer
	logger    *zap.Logger
	tracer    trace.Tracer
	meter     metric.Meter
}

// WithCollector overrides the metadata collector.
func WithCollector(c *metadata.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithObserver registers an observer notified after every invocation.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithLogger sets the logger used outside request scope.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTracer overrides the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMeter overrides the meter used for render counters.
func WithMeter(m metric.Meter) Option {
	return func(o *options) { o.meter = m }
}

// New constructs the hook for h.
func New(h host.Host, opts ...Option) (*SEO, error) {
	if h == nil {
		return nil, errors.New("hook: host is required")
	}
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.collector == nil {
		o.collector = metadata.NewCollector()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(instrumentationName)
	}
	if o.meter == nil {
		o.meter = otel.Meter(instrumentationName)
	}

	s := &SEO{
		host:      h,
		collector: o.collector,
		observer:  o.observer,
		logger:    o.logger,
		tracer:    o.tracer,
	}

	var err error
	if s.pages, err = o.meter.Int64Counter("seo.render.pages",
		metric.WithDescription("Pages rendered with SEO head items"),
	); err != nil {
		return nil, err
	}
	if s.fragments, err = o.meter.Int64Counter("seo.render.fragments",
		metric.WithDescription("Head items emitted"),
	); err != nil {
		return nil, err
	}
	if s.skipped, err = o.meter.Int64Counter("seo.render.skipped",
		metric.WithDescription("Hook invocations that emitted nothing"),
	); err != nil {
		return nil, err
	}

	warnBareHandles(s.logger, h.Settings())
	return s, nil
}

// warnBareHandles flags unset Twitter handles. The card still carries "@" for them.
func warnBareHandles(logger *zap.Logger, settings host.Settings) {
	if settings.TwitterSite == "" {
		logger.Warn("twitter site handle is not configured; twitter:site will be emitted as a bare \"@\"")
	}
	if settings.TwitterCreator == "" {
		logger.Warn("twitter creator handle is not configured; twitter:creator will be emitted as a bare \"@\"")
	}
}

// OnOutputPageParserOutput adds the SEO head items to out when the request targets
// a content page. It reports whether anything was emitted.
func (s *SEO) OnOutputPageParserOutput(ctx context.Context, out host.OutputPage, po host.ParserOutput) bool {
	logger := requestctx.Logger(ctx)

	page, err := s.host.CurrentPage(ctx)
	switch {
	case err != nil && !host.IsNotFound(err):
		logger.Warn("seo: resolve current page", zap.Error(err))
		s.skip(ctx, SkipLookupFailed)
		return false
	case page == nil:
		s.skip(ctx, SkipNoPage)
		return false
	case !page.IsContentPage:
		s.skip(ctx, SkipNotContentPage)
		return false
	}

	if _, err := s.Render(ctx, page, out, po); err != nil {
		logger.Warn("seo: render", zap.Error(err))
		s.skip(ctx, SkipLookupFailed)
		return false
	}
	return true
}

// Render collects the record for page, builds the head fragments and adds them to
// out. It performs no content-page check.
func (s *SEO) Render(ctx context.Context, page *host.Page, out host.OutputPage, po host.ParserOutput) (seo.Fragments, error) {
	ctx, span := s.tracer.Start(ctx, "seo.render")
	defer span.End()

	rec, err := s.collector.Collect(ctx, s.host, page, out, po)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	frags := seo.Build(rec)
	if out != nil {
		for _, f := range frags {
			out.AddHeadItem(f.Key, f.HTML)
		}
	}

	ogType := rec.Article.OGType()
	span.SetAttributes(
		attribute.String("seo.page_id", page.ID),
		attribute.String("seo.og_type", ogType),
		attribute.Int("seo.fragments", len(frags)),
	)
	attrs := metric.WithAttributes(attribute.String("og_type", ogType))
	s.pages.Add(ctx, 1, attrs)
	s.fragments.Add(ctx, int64(len(frags)), attrs)
	if s.observer != nil {
		s.observer.PageRendered(ogType, len(frags))
	}

	requestctx.Logger(ctx).Debug("seo head rendered",
		zap.String("page_id", page.ID),
		zap.Int("fragments", len(frags)),
	)
	return frags, nil
}

// Collect returns the record for page without emitting anything.
func (s *SEO) Collect(ctx context.Context, page *host.Page, out host.OutputPage, po host.ParserOutput) (seo.Record, error) {
	return s.collector.Collect(ctx, s.host, page, out, po)
}

func (s *SEO) skip(ctx context.Context, reason string) {
	s.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	if s.observer != nil {
		s.observer.PageSkipped(reason)
	}
}
