package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/httpx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/requestctx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/seo"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/wiki"
)

const (
	jsonLDContentType = "application/ld+json"
	htmlContentType   = "text/html; charset=utf-8"
)

// PageHandlers serves rendered pages and their SEO metadata.
type PageHandlers struct {
	engine *wiki.Engine
}

// NewPageHandlers binds the handlers to engine.
func NewPageHandlers(engine *wiki.Engine) *PageHandlers {
	return &PageHandlers{engine: engine}
}

// WikiRoutes registers GET /wiki/{title}.
func (h *PageHandlers) WikiRoutes(r chi.Router) {
	r.Get("/wiki/{title}", h.page)
}

// Routes registers the metadata API under its group.
func (h *PageHandlers) Routes(r chi.Router) {
	r.Get("/{title}/head", h.head)
	r.Get("/{title}/jsonld", h.jsonLD)
	r.Get("/{title}/metadata", h.metadata)
}

type headResponse struct {
	Title string         `json:"title"`
	SEO   bool           `json:"seo"`
	Items []seo.Fragment `json:"items"`
}

func (h *PageHandlers) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view, err := h.engine.View(ctx, titleParam(r))
	if err != nil {
		writePageError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := h.engine.WriteDocument(ctx, &buf, view); err != nil {
		writePageError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", htmlContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *PageHandlers) head(w http.ResponseWriter, r *http.Request) {
	view, err := h.engine.View(r.Context(), titleParam(r))
	if err != nil {
		writePageError(w, r, err)
		return
	}
	items := []seo.Fragment(view.Output.HeadItems())
	_ = httpx.WriteJSON(w, "", http.StatusOK, headResponse{Title: view.Page.Title, SEO: view.SEO, Items: items})
}

func (h *PageHandlers) jsonLD(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Record(r.Context(), titleParam(r))
	if err != nil {
		writePageError(w, r, err)
		return
	}
	payload, err := seo.JSONLD(rec)
	if err != nil {
		writePageError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", jsonLDContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(payload))
}

func (h *PageHandlers) metadata(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Record(r.Context(), titleParam(r))
	if err != nil {
		writePageError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, "", http.StatusOK, rec)
}

func titleParam(r *http.Request) string {
	raw := chi.URLParam(r, "title")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.TrimSpace(raw)
}

func writePageError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, wiki.ErrPageNotFound) {
		httpx.WriteError(ctx, w, httpx.NotFound("page not found").WithDetails(map[string]any{"title": titleParam(r)}))
		return
	}
	if repositories.IsUnavailable(err) {
		requestctx.Logger(ctx).Warn("page store unavailable", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("unavailable", "page store unavailable", http.StatusServiceUnavailable))
		return
	}
	requestctx.Logger(ctx).Error("page request failed", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to render page", http.StatusInternalServerError))
}
