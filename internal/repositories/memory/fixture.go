package memory

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
)

// Fixture is the YAML layout accepted by LoadFixture.
type Fixture struct {
	Pages []FixturePage `yaml:"pages"`
	Users []FixtureUser `yaml:"users"`
	Files []FixtureFile `yaml:"files"`
}

// FixturePage describes a page and its revisions, oldest first.
type FixturePage struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	URL         string            `yaml:"url"`
	ContentPage *bool             `yaml:"content_page"`
	MainPage    bool              `yaml:"main_page"`
	Touched     time.Time         `yaml:"touched"`
	Length      int               `yaml:"length"`
	Categories  []string          `yaml:"categories"`
	Revisions   []FixtureRevision `yaml:"revisions"`
}

// FixtureRevision describes one revision. A missing ID is generated.
type FixtureRevision struct {
	ID        string    `yaml:"id"`
	UserID    string    `yaml:"user_id"`
	UserText  string    `yaml:"user_text"`
	Timestamp time.Time `yaml:"timestamp"`
	Content   string    `yaml:"content"`
}

// FixtureUser describes an editor.
type FixtureUser struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Groups  []string `yaml:"groups"`
	PageURL string   `yaml:"page_url"`
}

// FixtureFile describes an uploaded file.
type FixtureFile struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// LoadFixture reads a YAML fixture file into a new Store.
func LoadFixture(ctx context.Context, path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memory: open fixture: %w", err)
	}
	defer f.Close()
	return ReadFixture(ctx, f)
}

// ReadFixture decodes a YAML fixture from r into a new Store. Pages default to
// content pages. A zero length is replaced by the latest revision's byte length and an
// unset touched time by the newest revision timestamp.
func ReadFixture(ctx context.Context, r io.Reader) (*Store, error) {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && err != io.EOF {
		return nil, fmt.Errorf("memory: decode fixture: %w", err)
	}

	store := New()
	for _, u := range fx.Users {
		if _, err := store.Users().Upsert(ctx, host.User{ID: u.ID, Name: u.Name, Groups: u.Groups, UserPageURL: u.PageURL}); err != nil {
			return nil, err
		}
	}
	for _, f := range fx.Files {
		store.PutFile(host.File{Name: f.Name, URL: f.URL, Width: f.Width, Height: f.Height})
	}
	for _, p := range fx.Pages {
		if err := loadPage(ctx, store, p); err != nil {
			return nil, fmt.Errorf("memory: page %q: %w", p.Title, err)
		}
	}
	return store, nil
}

func loadPage(ctx context.Context, store *Store, p FixturePage) error {
	content := true
	if p.ContentPage != nil {
		content = *p.ContentPage
	}
	length := p.Length
	if length == 0 && len(p.Revisions) > 0 {
		length = len(p.Revisions[len(p.Revisions)-1].Content)
	}
	touched := p.Touched
	for _, rev := range p.Revisions {
		if rev.Timestamp.After(touched) {
			touched = rev.Timestamp
		}
	}

	page, err := store.Pages().Upsert(ctx, host.Page{
		ID:            p.ID,
		Title:         p.Title,
		FullURL:       p.URL,
		IsContentPage: content,
		IsMainPage:    p.MainPage,
		Touched:       touched,
		Length:        length,
		Categories:    p.Categories,
	})
	if err != nil {
		return err
	}

	for _, rev := range p.Revisions {
		if _, err := store.Revisions().Append(ctx, host.Revision{
			ID:        rev.ID,
			PageID:    page.ID,
			UserID:    rev.UserID,
			UserText:  rev.UserText,
			Timestamp: rev.Timestamp,
			Content:   rev.Content,
		}); err != nil {
			return err
		}
	}
	return nil
}
