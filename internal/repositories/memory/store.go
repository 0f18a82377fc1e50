// Package memory provides map-backed repositories loaded from YAML fixtures.
package memory

import (
	"context"
	"crypto/rand"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories"
)

// Store holds pages, revisions, users and files in memory. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	pages     map[string]host.Page
	titles    map[string]string
	revisions map[string][]host.Revision
	users     map[string]host.User
	files     map[string]host.File

	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

var _ repositories.Registry = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		pages:     make(map[string]host.Page),
		titles:    make(map[string]string),
		revisions: make(map[string][]host.Revision),
		users:     make(map[string]host.User),
		files:     make(map[string]host.File),
		entropy:   ulid.Monotonic(rand.Reader, 0),
		now:       time.Now,
	}
}

func (s *Store) Pages() repositories.PageRepository         { return pageRepo{s} }
func (s *Store) Revisions() repositories.RevisionRepository { return revisionRepo{s} }
func (s *Store) Users() repositories.UserRepository         { return userRepo{s} }
func (s *Store) Files() repositories.FileRepository         { return fileRepo{s} }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }

// PutFile stores file under its name.
func (s *Store) PutFile(file host.File) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileKey(file.Name)] = file
}

// newID returns a ULID whose time component is ts, so IDs sort with timestamps.
// Callers must hold s.mu.
func (s *Store) newID(ts time.Time) string {
	if ts.IsZero() {
		ts = s.now()
	}
	return ulid.MustNew(ulid.Timestamp(ts), s.entropy).String()
}

type pageRepo struct{ s *Store }

func (r pageRepo) FindByTitle(_ context.Context, title string) (host.Page, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.titles[repositories.CanonicalTitle(title)]
	if !ok {
		return host.Page{}, repositories.NotFound("page", title)
	}
	return clonePage(r.s.pages[id]), nil
}

func (r pageRepo) FindByID(_ context.Context, id string) (host.Page, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	page, ok := r.s.pages[id]
	if !ok {
		return host.Page{}, repositories.NotFound("page", id)
	}
	return clonePage(page), nil
}

func (r pageRepo) Upsert(_ context.Context, page host.Page) (host.Page, error) {
	page.Title = repositories.CanonicalTitle(page.Title)
	if page.Title == "" {
		return host.Page{}, errors.New("memory: page title is required")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if page.ID == "" {
		if id, ok := r.s.titles[page.Title]; ok {
			page.ID = id
		} else {
			page.ID = r.s.newID(time.Time{})
		}
	}
	if old, ok := r.s.pages[page.ID]; ok && old.Title != page.Title {
		delete(r.s.titles, old.Title)
	}
	if page.Touched.IsZero() {
		page.Touched = r.s.now().UTC()
	}
	page = clonePage(page)
	r.s.pages[page.ID] = page
	r.s.titles[page.Title] = page.ID
	return clonePage(page), nil
}

type revisionRepo struct{ s *Store }

func (r revisionRepo) First(_ context.Context, pageID string) (host.Revision, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	revs := r.s.revisions[pageID]
	if len(revs) == 0 {
		return host.Revision{}, repositories.NotFound("revision", pageID)
	}
	return revs[0], nil
}

func (r revisionRepo) Latest(_ context.Context, pageID string) (host.Revision, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	revs := r.s.revisions[pageID]
	if len(revs) == 0 {
		return host.Revision{}, repositories.NotFound("revision", pageID)
	}
	return revs[len(revs)-1], nil
}

func (r revisionRepo) Append(_ context.Context, rev host.Revision) (host.Revision, error) {
	if strings.TrimSpace(rev.PageID) == "" {
		return host.Revision{}, errors.New("memory: revision page id is required")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rev.Timestamp.IsZero() {
		rev.Timestamp = r.s.now().UTC()
	}
	if rev.ID == "" {
		rev.ID = r.s.newID(rev.Timestamp)
	}
	revs := append(r.s.revisions[rev.PageID], rev)
	sort.SliceStable(revs, func(i, j int) bool { return revs[i].Timestamp.Before(revs[j].Timestamp) })
	r.s.revisions[rev.PageID] = revs

	if page, ok := r.s.pages[rev.PageID]; ok {
		page.EarliestRevTime = revs[0].Timestamp
		if rev.Timestamp.After(page.Touched) {
			page.Touched = rev.Timestamp
		}
		r.s.pages[rev.PageID] = page
	}
	return rev, nil
}

type userRepo struct{ s *Store }

func (r userRepo) FindByID(_ context.Context, id string) (host.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return host.User{}, repositories.NotFound("user", id)
	}
	user.Groups = append([]string(nil), user.Groups...)
	return user, nil
}

func (r userRepo) Upsert(_ context.Context, user host.User) (host.User, error) {
	if strings.TrimSpace(user.ID) == "" {
		return host.User{}, errors.New("memory: user id is required")
	}
	user.Groups = append([]string(nil), user.Groups...)
	r.s.mu.Lock()
	r.s.users[user.ID] = user
	r.s.mu.Unlock()
	return user, nil
}

type fileRepo struct{ s *Store }

func (r fileRepo) Find(_ context.Context, name string) (host.File, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	file, ok := r.s.files[fileKey(name)]
	if !ok {
		return host.File{}, repositories.NotFound("file", name)
	}
	return file, nil
}

func fileKey(name string) string {
	return repositories.TitleKey(name)
}

func clonePage(p host.Page) host.Page {
	p.Categories = append([]string(nil), p.Categories...)
	return p
}
