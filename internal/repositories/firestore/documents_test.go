package firestore

import (
	"testing"
	"time"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
)

func TestPageDocumentRoundTrip(t *testing.T) {
	loc := time.FixedZone("MSK", 3*60*60)
	page := host.Page{
		ID:              "p1",
		Title:           "Main Page",
		FullURL:         "https://wiki.example.org/wiki/Main_Page",
		IsContentPage:   true,
		IsMainPage:      true,
		EarliestRevTime: time.Date(2020, 1, 2, 3, 4, 5, 0, loc),
		Touched:         time.Date(2021, 1, 2, 3, 4, 5, 0, loc),
		Length:          42,
		Categories:      []string{"Категория:Физика"},
	}

	doc := fromPage(page, "Main_Page")
	if doc.TitleKey != "Main_Page" {
		t.Fatalf("expected title key to be stored, got %q", doc.TitleKey)
	}
	if doc.Touched.Location() != time.UTC {
		t.Fatalf("expected timestamps stored in UTC")
	}

	got := toPage("p1", doc)
	if !got.EarliestRevTime.Equal(page.EarliestRevTime) || !got.Touched.Equal(page.Touched) {
		t.Fatalf("timestamps changed: %+v", got)
	}
	if got.Title != page.Title || got.FullURL != page.FullURL || got.Length != 42 {
		t.Fatalf("unexpected page %+v", got)
	}
	if !got.IsContentPage || !got.IsMainPage {
		t.Fatalf("flags lost: %+v", got)
	}
	if len(got.Categories) != 1 || got.Categories[0] != "Категория:Физика" {
		t.Fatalf("unexpected categories %v", got.Categories)
	}
}

func TestRevisionDocumentRoundTrip(t *testing.T) {
	rev := host.Revision{
		ID:        "r1",
		PageID:    "p1",
		UserID:    "u1",
		UserText:  "Alice",
		Timestamp: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		Content:   "text",
	}
	got := toRevision("r1", fromRevision(rev))
	if got != rev {
		t.Fatalf("expected %+v, got %+v", rev, got)
	}
}

func TestNewRegistryRequiresProvider(t *testing.T) {
	if _, err := NewRegistry(nil, nil); err == nil {
		t.Fatal("expected error without provider")
	}
}
