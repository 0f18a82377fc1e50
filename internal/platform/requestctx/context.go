// Package requestctx carries request-scoped values shared by middleware, handlers and
// the render pipeline.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey contextKey = "mediawiki-ext-seo/requestctx/logger"
	traceKey  contextKey = "mediawiki-ext-seo/requestctx/trace"
	titleKey  contextKey = "mediawiki-ext-seo/requestctx/title"
)

var nop = zap.NewNop()

// TraceInfo is the Cloud Trace metadata attached to a request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// WithLogger stores logger on ctx. A nil logger stores the no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = nop
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger returns the logger stored on ctx, or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return nop
	}
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return nop
}

// NoopLogger returns the shared no-op logger.
func NoopLogger() *zap.Logger { return nop }

// WithTrace stores trace metadata on ctx.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, traceKey, info)
}

// Trace returns the trace metadata stored on ctx.
func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey).(TraceInfo)
	return info, ok
}

// TraceID returns the trace identifier stored on ctx, if any.
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithPageTitle records the page title the request targets.
func WithPageTitle(ctx context.Context, title string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, titleKey, title)
}

// PageTitle returns the page title the request targets, or "".
func PageTitle(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	title, _ := ctx.Value(titleKey).(string)
	return title
}
