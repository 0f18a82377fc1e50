package metadata

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
)

type stubHost struct {
	settings host.Settings
	first    *host.Revision
	latest   *host.Revision
	users    map[string]*host.User
	files    map[string]*host.File
	err      error
}

func (s *stubHost) Settings() host.Settings { return s.settings }

func (s *stubHost) CurrentPage(context.Context) (*host.Page, error) { return nil, nil }

func (s *stubHost) FirstRevision(context.Context, string) (*host.Revision, error) {
	return s.first, s.err
}

func (s *stubHost) LatestRevision(context.Context, string) (*host.Revision, error) {
	return s.latest, s.err
}

func (s *stubHost) User(_ context.Context, id string) (*host.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, host.ErrNotFound
}

func (s *stubHost) FindFile(_ context.Context, name string) (*host.File, error) {
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	return nil, host.ErrNotFound
}

type stubOutput struct {
	files []string
}

func (o stubOutput) AddHeadItem(string, string)  {}
func (o stubOutput) FileSearchOptions() []string { return o.files }

func testSettings() host.Settings {
	return host.Settings{
		Server:         "https://wiki.example.org",
		Sitename:       " Метавики ",
		Logo:           "/logo.png",
		URLVk:          "https://vk.com/metawiki",
		AuthorName:     "Wiki Team",
		CategoryPrefix: "Категория:",
	}
}

func testPage() *host.Page {
	return &host.Page{
		ID:              "p1",
		Title:           "Физика",
		FullURL:         "https://wiki.example.org/wiki/Физика",
		IsContentPage:   true,
		EarliestRevTime: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		Length:          321,
		Categories:      []string{"Категория:Наука"},
	}
}

func staticProber(w, h int, err error) ImageProber {
	return ProberFunc(func(context.Context, string) (int, int, error) { return w, h, err })
}

func TestCollectFullRecord(t *testing.T) {
	h := &stubHost{
		settings: testSettings(),
		first:    &host.Revision{UserID: "u1", UserText: "Alice"},
		latest:   &host.Revision{Content: "<p>Hello   <b>world</b></p>"},
		users: map[string]*host.User{
			"u1": {ID: "u1", Name: "Alice", Groups: []string{"sysop", "editor"}, UserPageURL: "https://wiki.example.org/wiki/User:Alice"},
		},
		files: map[string]*host.File{
			"Atom.png": {Name: "Atom.png", URL: "https://wiki.example.org/images/Atom.png", Width: 320, Height: 200},
		},
	}
	c := NewCollector(WithProber(staticProber(0, 0, errors.New("must not probe"))))

	rec, err := c.Collect(context.Background(), h, testPage(), stubOutput{files: []string{"Atom.png", "Other.png"}}, host.PropertyMap{"description": " Summary "})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if rec.Site.Name != "Метавики" {
		t.Fatalf("expected trimmed site name, got %q", rec.Site.Name)
	}
	if rec.Article.Headline != "Физика" || rec.Article.Description != "Summary" || rec.Article.Keywords != "Наука" {
		t.Fatalf("unexpected article %+v", rec.Article)
	}
	if rec.Article.DateCreated != "2020-01-02T03:04:05+00:00" {
		t.Fatalf("unexpected created date %q", rec.Article.DateCreated)
	}
	if rec.Article.DateModified != "0" {
		t.Fatalf("expected unknown modified date, got %q", rec.Article.DateModified)
	}
	if rec.Article.WordCount != 321 || rec.Article.Body != "Hello world" {
		t.Fatalf("unexpected article body %+v", rec.Article)
	}
	if rec.Author.Name != "Alice" || rec.Author.URL != "https://wiki.example.org/wiki/User:Alice" || rec.Author.JobTitle != "sysop, editor" {
		t.Fatalf("unexpected author %+v", rec.Author)
	}
	if rec.Image.URL != "https://wiki.example.org/images/Atom.png" || rec.Image.Width != 320 || rec.Image.Height != 200 {
		t.Fatalf("unexpected image %+v", rec.Image)
	}
}

func TestCollectFallsBackWithoutRevisionOrImage(t *testing.T) {
	h := &stubHost{settings: testSettings()}
	c := NewCollector(WithProber(staticProber(135, 135, nil)))

	rec, err := c.Collect(context.Background(), h, testPage(), stubOutput{}, nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if rec.Author.Name != "Wiki Team" || rec.Author.URL != "" || rec.Author.JobTitle != "" {
		t.Fatalf("expected configured author, got %+v", rec.Author)
	}
	if rec.Image.URL != "https://wiki.example.org/logo.png" {
		t.Fatalf("expected logo fallback, got %q", rec.Image.URL)
	}
	if rec.Image.Width != 135 || rec.Image.Height != 135 {
		t.Fatalf("expected probed size, got %dx%d", rec.Image.Width, rec.Image.Height)
	}
	if rec.Article.Description != "" || rec.Article.Body != "" {
		t.Fatalf("expected empty description and body, got %+v", rec.Article)
	}
}

func TestCollectDegradesOnAccessorErrors(t *testing.T) {
	h := &stubHost{settings: testSettings(), err: errors.New("backend down")}
	c := NewCollector(WithProber(staticProber(0, 0, errors.New("unreachable"))))

	rec, err := c.Collect(context.Background(), h, testPage(), stubOutput{files: []string{"Missing.png"}}, nil)
	if err != nil {
		t.Fatalf("collect must not fail on accessor errors: %v", err)
	}
	if rec.Author.Name != "Wiki Team" {
		t.Fatalf("expected fallback author, got %q", rec.Author.Name)
	}
	if rec.Image.URL != "https://wiki.example.org/logo.png" || rec.Image.Width != 0 || rec.Image.Height != 0 {
		t.Fatalf("expected unsized logo fallback, got %+v", rec.Image)
	}
}

func TestCollectRequiresPage(t *testing.T) {
	_, err := NewCollector().Collect(context.Background(), &stubHost{}, nil, nil, nil)
	if !errors.Is(err, ErrNoPage) {
		t.Fatalf("expected ErrNoPage, got %v", err)
	}
}

func TestHTTPProberDecodesHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 25))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/logo.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	p := NewHTTPProber(srv.Client(), 0)
	w, h, err := p.Probe(context.Background(), srv.URL+"/logo.png")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if w != 40 || h != 25 {
		t.Fatalf("expected 40x25, got %dx%d", w, h)
	}

	if _, _, err := p.Probe(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatal("expected error for missing image")
	}
}

// losslessWebP returns the RIFF container and VP8L header of a w x h WebP image,
// enough for image.DecodeConfig.
func losslessWebP(w, h int) []byte {
	bits := make([]byte, 4)
	binary.LittleEndian.PutUint32(bits, uint32(w-1)|uint32(h-1)<<14)
	chunk := append([]byte{0x2f}, bits...)

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(4+8+len(chunk)+1))
	buf.WriteString("WEBPVP8L")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(chunk)))
	buf.Write(chunk)
	buf.WriteByte(0)
	return buf.Bytes()
}

func TestHTTPProberDecodesWebP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/webp")
		_, _ = w.Write(losslessWebP(30, 20))
	}))
	defer srv.Close()

	w, h, err := NewHTTPProber(srv.Client(), 0).Probe(context.Background(), srv.URL+"/logo.webp")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if w != 30 || h != 20 {
		t.Fatalf("expected 30x20, got %dx%d", w, h)
	}
}

func TestHTTPProberRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not an image</html>"))
	}))
	defer srv.Close()

	if _, _, err := NewHTTPProber(srv.Client(), 16).Probe(context.Background(), srv.URL); err == nil {
		t.Fatal("expected decode error")
	}
}
