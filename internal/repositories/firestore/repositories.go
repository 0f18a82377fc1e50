package firestore

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	pfirestore "github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/firestore"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories"
)

// Registry is the Firestore backend. Files may be served by a separate repository,
// such as the Cloud Storage file store.
type Registry struct {
	provider  *pfirestore.Provider
	pages     *PageRepository
	revisions *RevisionRepository
	users     *UserRepository
	files     repositories.FileRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the Firestore repositories. When files is nil, file metadata is
// read from the files collection.
func NewRegistry(provider *pfirestore.Provider, files repositories.FileRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires a provider")
	}
	if files == nil {
		files = &FileRepository{base: pfirestore.NewBaseRepository[fileDocument](provider, filesCollection)}
	}
	return &Registry{
		provider:  provider,
		pages:     &PageRepository{base: pfirestore.NewBaseRepository[pageDocument](provider, pagesCollection)},
		revisions: newRevisionRepository(provider),
		users:     &UserRepository{base: pfirestore.NewBaseRepository[userDocument](provider, usersCollection)},
		files:     files,
	}, nil
}

func (r *Registry) Pages() repositories.PageRepository         { return r.pages }
func (r *Registry) Revisions() repositories.RevisionRepository { return r.revisions }
func (r *Registry) Users() repositories.UserRepository         { return r.users }
func (r *Registry) Files() repositories.FileRepository         { return r.files }

// Close releases the Firestore client.
func (r *Registry) Close(context.Context) error {
	return r.provider.Close()
}

// Ping reads one page document to verify connectivity.
func (r *Registry) Ping(ctx context.Context) error {
	_, err := r.pages.base.Query(ctx, func(q firestore.Query) firestore.Query { return q.Limit(1) })
	return err
}

// PageRepository stores pages keyed by ID with a titleKey field for lookups.
type PageRepository struct {
	base *pfirestore.BaseRepository[pageDocument]
}

func (r *PageRepository) FindByTitle(ctx context.Context, title string) (host.Page, error) {
	key := repositories.TitleKey(title)
	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("titleKey", "==", key)
	})
	if err != nil {
		return host.Page{}, err
	}
	return toPage(doc.ID, doc.Data), nil
}

func (r *PageRepository) FindByID(ctx context.Context, id string) (host.Page, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return host.Page{}, err
	}
	return toPage(doc.ID, doc.Data), nil
}

func (r *PageRepository) Upsert(ctx context.Context, page host.Page) (host.Page, error) {
	page.Title = repositories.CanonicalTitle(page.Title)
	if page.Title == "" {
		return host.Page{}, errors.New("firestore: page title is required")
	}
	if page.ID == "" {
		existing, err := r.FindByTitle(ctx, page.Title)
		switch {
		case err == nil:
			page.ID = existing.ID
		case repositories.IsNotFound(err):
			page.ID = ulid.Make().String()
		default:
			return host.Page{}, err
		}
	}
	if page.Touched.IsZero() {
		page.Touched = time.Now().UTC()
	}
	if err := r.base.Set(ctx, page.ID, fromPage(page, repositories.TitleKey(page.Title))); err != nil {
		return host.Page{}, err
	}
	return page, nil
}

// RevisionRepository stores revisions in one collection indexed by pageId and timestamp.
type RevisionRepository struct {
	base *pfirestore.BaseRepository[revisionDocument]

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func newRevisionRepository(provider *pfirestore.Provider) *RevisionRepository {
	return &RevisionRepository{
		base:    pfirestore.NewBaseRepository[revisionDocument](provider, revisionsCollection),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

func (r *RevisionRepository) First(ctx context.Context, pageID string) (host.Revision, error) {
	return r.edge(ctx, pageID, firestore.Asc)
}

func (r *RevisionRepository) Latest(ctx context.Context, pageID string) (host.Revision, error) {
	return r.edge(ctx, pageID, firestore.Desc)
}

func (r *RevisionRepository) edge(ctx context.Context, pageID string, dir firestore.Direction) (host.Revision, error) {
	doc, err := r.base.First(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("pageId", "==", pageID).OrderBy("timestamp", dir)
	})
	if err != nil {
		return host.Revision{}, err
	}
	return toRevision(doc.ID, doc.Data), nil
}

func (r *RevisionRepository) Append(ctx context.Context, rev host.Revision) (host.Revision, error) {
	if strings.TrimSpace(rev.PageID) == "" {
		return host.Revision{}, errors.New("firestore: revision page id is required")
	}
	if rev.Timestamp.IsZero() {
		rev.Timestamp = time.Now().UTC()
	}
	if rev.ID == "" {
		r.mu.Lock()
		id, err := ulid.New(ulid.Timestamp(rev.Timestamp), r.entropy)
		r.mu.Unlock()
		if err != nil {
			return host.Revision{}, err
		}
		rev.ID = id.String()
	}
	if err := r.base.Set(ctx, rev.ID, fromRevision(rev)); err != nil {
		return host.Revision{}, err
	}
	return rev, nil
}

// UserRepository stores editors keyed by user ID.
type UserRepository struct {
	base *pfirestore.BaseRepository[userDocument]
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (host.User, error) {
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return host.User{}, err
	}
	return host.User{ID: doc.ID, Name: doc.Data.Name, Groups: doc.Data.Groups, UserPageURL: doc.Data.UserPageURL}, nil
}

func (r *UserRepository) Upsert(ctx context.Context, user host.User) (host.User, error) {
	if strings.TrimSpace(user.ID) == "" {
		return host.User{}, errors.New("firestore: user id is required")
	}
	err := r.base.Set(ctx, user.ID, userDocument{Name: user.Name, Groups: user.Groups, UserPageURL: user.UserPageURL})
	return user, err
}

// FileRepository reads file metadata documents keyed by title key.
type FileRepository struct {
	base *pfirestore.BaseRepository[fileDocument]
}

func (r *FileRepository) Find(ctx context.Context, name string) (host.File, error) {
	doc, err := r.base.Get(ctx, repositories.TitleKey(name))
	if err != nil {
		return host.File{}, err
	}
	file := host.File{Name: doc.Data.Name, URL: doc.Data.URL, Width: doc.Data.Width, Height: doc.Data.Height}
	if file.Name == "" {
		file.Name = name
	}
	return file, nil
}
