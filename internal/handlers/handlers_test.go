package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/hook"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/metadata"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/metrics"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories/memory"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/wiki"
)

const handlerFixture = `
users:
  - id: "u1"
    name: Alice
pages:
  - id: "p1"
    title: Main Page
    main_page: true
    revisions:
      - user_id: "u1"
        user_text: Alice
        timestamp: 2020-01-02T03:04:05Z
        content: "Welcome to the <wiki>."
  - id: "p2"
    title: Служебная:Поиск
    content_page: false
`

func newTestRouter(t *testing.T, opts ...Option) http.Handler {
	t.Helper()
	store, err := memory.ReadFixture(context.Background(), strings.NewReader(handlerFixture))
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return newRouterForStore(t, store, opts...)
}

func newRouterForStore(t *testing.T, store repositories.Registry, opts ...Option) http.Handler {
	t.Helper()
	settings := host.Settings{Server: "https://wiki.example.org", Sitename: "Wiki", Logo: "/logo.png", AuthorName: "Team"}
	h, err := wiki.NewHost(settings, store)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	prober := metadata.ProberFunc(func(context.Context, string) (int, int, error) { return 0, 0, errors.New("offline") })
	seoHook, err := hook.New(h,
		hook.WithCollector(metadata.NewCollector(metadata.WithProber(prober))),
		hook.WithMeter(noop.NewMeterProvider().Meter("test")),
	)
	if err != nil {
		t.Fatalf("hook: %v", err)
	}
	engine, err := wiki.NewEngine(h, nil, seoHook)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	pages := NewPageHandlers(engine)
	opts = append([]Option{WithWikiRoutes(pages.WikiRoutes), WithPageRoutes(pages.Routes)}, opts...)
	return NewRouter(opts...)
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestWikiPageRendersHead(t *testing.T) {
	rr := serve(newTestRouter(t), "/wiki/Main_Page")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`<script type="application/ld+json">`,
		`<meta property="og:type" content="website"/>`,
		`<meta name="twitter:site" content="@"/>`,
		`<link rel="dns-prefetch" href="//github.com"/>`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in page:\n%s", want, body)
		}
	}
}

func TestWikiPageUnknownTitle(t *testing.T) {
	rr := serve(newTestRouter(t), "/wiki/Nope")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "not_found" {
		t.Fatalf("unexpected error body %v", body)
	}
}

func TestHeadEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, "/api/v1/pages/Main_Page/head")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp headResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.SEO || len(resp.Items) == 0 || resp.Items[0].Key != "mw-ext-seo-json" {
		t.Fatalf("unexpected head response %+v", resp)
	}

	rr = serve(router, "/api/v1/pages/"+url.PathEscape("Служебная:Поиск")+"/head")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for special page, got %d", rr.Code)
	}
	resp = headResponse{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SEO || len(resp.Items) != 0 {
		t.Fatalf("special page must not get head items: %+v", resp)
	}
}

func TestJSONLDEndpoint(t *testing.T) {
	rr := serve(newTestRouter(t), "/api/v1/pages/Main_Page/jsonld")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != jsonLDContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
	if strings.Contains(rr.Body.String(), "<wiki>") {
		t.Fatal("markup must be escaped in JSON-LD")
	}
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["@type"] != "Article" || payload["headline"] != "Main Page" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestMetadataEndpoint(t *testing.T) {
	rr := serve(newTestRouter(t), "/api/v1/pages/Main_Page/metadata")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var payload struct {
		Author struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"author"`
		Image struct {
			URL string `json:"url"`
		} `json:"image"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Author.Name != "Alice" || payload.Author.URL != "https://wiki.example.org/wiki/User:Alice" {
		t.Fatalf("unexpected author %+v", payload.Author)
	}
	if payload.Image.URL != "https://wiki.example.org/logo.png" {
		t.Fatalf("expected logo fallback, got %q", payload.Image.URL)
	}
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	rr := serve(newTestRouter(t), "/nowhere")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), errorNotFoundCode) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestBasePathMovesPageAPI(t *testing.T) {
	router := newTestRouter(t, WithBasePath("/seo"))

	if rr := serve(router, "/seo/pages/Main_Page/head"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 under custom prefix, got %d", rr.Code)
	}
	if rr := serve(router, "/api/v1/pages/Main_Page/head"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected default prefix to be gone, got %d", rr.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	rec := metrics.NewRecorder(nil)
	router := newTestRouter(t, WithMetricsHandler(rec.Handler()), WithMiddlewares(rec.Middleware()))

	serve(router, "/wiki/Main_Page")
	rr := serve(router, "/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `seo_http_requests_total{route="/wiki/{title}",status="200"} 1`) {
		t.Fatalf("expected request counter in exposition:\n%s", rr.Body.String())
	}
}

type unavailableError struct{}

func (unavailableError) Error() string       { return "page store: deadline exceeded" }
func (unavailableError) IsNotFound() bool    { return false }
func (unavailableError) IsConflict() bool    { return false }
func (unavailableError) IsUnavailable() bool { return true }

type downPages struct {
	repositories.PageRepository
}

func (downPages) FindByTitle(context.Context, string) (host.Page, error) {
	return host.Page{}, unavailableError{}
}

type downStore struct {
	*memory.Store
}

func (s downStore) Pages() repositories.PageRepository { return downPages{s.Store.Pages()} }

func TestUnavailableStoreAnswers503(t *testing.T) {
	store, err := memory.ReadFixture(context.Background(), strings.NewReader(handlerFixture))
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	router := newRouterForStore(t, downStore{store})

	for _, path := range []string{"/wiki/Main_Page", "/api/v1/pages/Main_Page/head"} {
		rr := serve(router, path)
		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), `"unavailable"`) {
			t.Fatalf("%s: unexpected body %s", path, rr.Body.String())
		}
	}
}

type stubReporter struct {
	report repositories.HealthReport
}

func (s stubReporter) Collect(context.Context) repositories.HealthReport { return s.report }

func TestHealthHandlers(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	handlers := NewHealthHandlers(
		WithHealthBuildInfo(BuildInfo{Version: "1.0.0", StartedAt: start}),
		WithHealthClock(func() time.Time { return now }),
	)

	rr := httptest.NewRecorder()
	handlers.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["uptime"] != "30s" || body["version"] != "1.0.0" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthReporter(stubReporter{report: repositories.HealthReport{
		Status: repositories.HealthError,
		Checks: []repositories.CheckResult{{Name: "firestore", Status: repositories.HealthError, Detail: "timeout"}},
	}}))

	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"firestore"`) {
		t.Fatalf("expected check details, got %s", rr.Body.String())
	}
}
