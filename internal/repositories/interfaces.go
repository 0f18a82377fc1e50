// Package repositories defines the persistence contracts behind the wiki host.
package repositories

import (
	"context"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
)

// Registry bundles the repositories of one backend.
type Registry interface {
	Pages() PageRepository
	Revisions() RevisionRepository
	Users() UserRepository
	Files() FileRepository
	Close(ctx context.Context) error
}

// RepositoryError categorises persistence failures.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// PageRepository stores page records.
type PageRepository interface {
	// FindByTitle looks a page up by title; titles are compared in canonical form.
	FindByTitle(ctx context.Context, title string) (host.Page, error)
	FindByID(ctx context.Context, id string) (host.Page, error)
	Upsert(ctx context.Context, page host.Page) (host.Page, error)
}

// RevisionRepository stores page revisions ordered by timestamp.
type RevisionRepository interface {
	First(ctx context.Context, pageID string) (host.Revision, error)
	Latest(ctx context.Context, pageID string) (host.Revision, error)
	// Append stores rev, assigning an ID when it has none.
	Append(ctx context.Context, rev host.Revision) (host.Revision, error)
}

// UserRepository stores editor accounts.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (host.User, error)
	Upsert(ctx context.Context, user host.User) (host.User, error)
}

// FileRepository resolves uploaded files.
type FileRepository interface {
	Find(ctx context.Context, name string) (host.File, error)
}
