package wiki

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/hook"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/requestctx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/seo"
)

// ErrPageNotFound is returned when a title does not resolve to a stored page.
var ErrPageNotFound = errors.New("wiki: page not found")

// Engine runs the page output pipeline: resolve, parse, run the SEO hook.
type Engine struct {
	host     *Host
	renderer *Renderer
	seo      *hook.SEO
}

// View is one rendered page with its head items.
type View struct {
	Page   host.Page
	Parsed *ParserOutput
	Output *Output
	// SEO reports whether the hook emitted head items.
	SEO bool
}

// NewEngine wires the pipeline. A nil renderer uses NewRenderer.
func NewEngine(h *Host, renderer *Renderer, seoHook *hook.SEO) (*Engine, error) {
	if h == nil || seoHook == nil {
		return nil, errors.New("wiki: host and seo hook are required")
	}
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Engine{host: h, renderer: renderer, seo: seoHook}, nil
}

// Host returns the engine's host.
func (e *Engine) Host() *Host { return e.host }

// View resolves title and runs the output hook for it.
func (e *Engine) View(ctx context.Context, title string) (View, error) {
	ctx, page, err := e.resolve(ctx, title)
	if err != nil {
		return View{}, err
	}

	parsed, err := e.parse(ctx, page)
	if err != nil {
		return View{}, err
	}
	out := NewOutput(parsed.Files)
	emitted := e.seo.OnOutputPageParserOutput(ctx, out, parsed)
	return View{Page: *page, Parsed: parsed, Output: out, SEO: emitted}, nil
}

// Record collects the SEO record for title without the content-page guard.
func (e *Engine) Record(ctx context.Context, title string) (seo.Record, error) {
	ctx, page, err := e.resolve(ctx, title)
	if err != nil {
		return seo.Record{}, err
	}
	parsed, err := e.parse(ctx, page)
	if err != nil {
		return seo.Record{}, err
	}
	return e.seo.Collect(ctx, page, NewOutput(parsed.Files), parsed)
}

// WriteDocument renders v as a full HTML page.
func (e *Engine) WriteDocument(ctx context.Context, w io.Writer, v View) error {
	var head seo.Fragments
	if v.Output != nil {
		head = v.Output.HeadItems()
	}
	return e.renderer.Document(ctx, w, v.Page, e.host.Settings(), head, v.Parsed)
}

func (e *Engine) resolve(ctx context.Context, title string) (context.Context, *host.Page, error) {
	ctx = e.host.WithPage(ctx, title)
	page, err := e.host.CurrentPage(ctx)
	if err != nil {
		return ctx, nil, err
	}
	if page == nil {
		return ctx, nil, ErrPageNotFound
	}
	return ctx, page, nil
}

func (e *Engine) parse(ctx context.Context, page *host.Page) (*ParserOutput, error) {
	rev, err := e.host.LatestRevision(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	content := ""
	if rev != nil {
		content = rev.Content
	}
	return e.renderer.Parse(ctx, content, e.findFile)
}

func (e *Engine) findFile(ctx context.Context, name string) (host.File, bool) {
	file, err := e.host.FindFile(ctx, name)
	if err != nil {
		requestctx.Logger(ctx).Warn("file lookup failed", zap.String("file", name), zap.Error(err))
		return host.File{}, false
	}
	if file == nil {
		return host.File{}, false
	}
	return *file, true
}
