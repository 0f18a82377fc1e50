package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/requestctx"
)

func TestParseCloudTrace(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		ok      bool
		span    string
		sampled bool
	}{
		{"hex span sampled", "105445aa7843bc8bf206b12000100000/1;o=1", true, "0000000000000001", true},
		{"decimal span", "105445aa7843bc8bf206b12000100000/12345678901234567890;o=0", true, "ab54a98ceb1f0ad2", false},
		{"no options", "105445aa7843bc8bf206b12000100000/00f067aa0ba902b7", true, "00f067aa0ba902b7", false},
		{"missing span", "105445aa7843bc8bf206b12000100000/;o=1", false, "", false},
		{"short trace", "abc/1;o=1", false, "", false},
		{"empty", "", false, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc, ok := ParseCloudTrace(tc.header)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			if sc.TraceID().String() != "105445aa7843bc8bf206b12000100000" {
				t.Fatalf("unexpected trace id %s", sc.TraceID())
			}
			if sc.SpanID().String() != tc.span {
				t.Fatalf("expected span %s, got %s", tc.span, sc.SpanID())
			}
			if sc.IsSampled() != tc.sampled {
				t.Fatalf("expected sampled=%v", tc.sampled)
			}
			if !sc.IsRemote() {
				t.Fatal("expected remote span context")
			}
		})
	}
}

func TestFormatCloudTrace(t *testing.T) {
	got := FormatCloudTrace(requestctx.TraceInfo{TraceID: "abc", SpanID: "def", Sampled: true})
	if got != "abc/def;o=1" {
		t.Fatalf("unexpected header %q", got)
	}
	if FormatCloudTrace(requestctx.TraceInfo{TraceID: "abc"}) != "" {
		t.Fatal("expected empty header without span id")
	}
}

func TestSanitizeRoute(t *testing.T) {
	if got := SanitizeRoute("/wiki/{title}\n\x00"); got != "/wiki/{title}" {
		t.Fatalf("unexpected sanitized route %q", got)
	}
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("expected root for empty route, got %q", got)
	}
	if got := SanitizeTitle(strings.Repeat("я", 300)); len([]rune(got)) != 180 {
		t.Fatalf("expected title truncated to 180 runes, got %d", len([]rune(got)))
	}
}

func TestRequestLoggerMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	router := chi.NewRouter()
	router.Use(InjectLoggerMiddleware(zap.New(core)), RequestLoggerMiddleware())
	router.Get("/wiki/{title}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wiki/Saturn", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["route"] != "/wiki/{title}" {
		t.Fatalf("unexpected route %v", fields["route"])
	}
	if fields["status"] != int64(200) || fields["bytes"] != int64(2) {
		t.Fatalf("unexpected status/bytes %v/%v", fields["status"], fields["bytes"])
	}
	if fields["page"] != "Saturn" || fields["method"] != "GET" {
		t.Fatalf("unexpected fields %v", fields)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/wiki/X", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal_server_error") {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatal("expected panic to be logged through the fallback logger")
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("nonsense")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug to be disabled")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("expected info to be enabled")
	}
}
