// Package wiki is the reference host: it serves pages from a repository registry
// and exposes them through the host interfaces consumed by the SEO hook.
package wiki

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/requestctx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/repositories"
)

// ArticlePath is the path prefix pages are served under.
const ArticlePath = "/wiki/"

// Host implements host.Host over a repository registry. The current page is taken
// from the request context; see WithPage.
type Host struct {
	settings host.Settings
	repos    repositories.Registry
}

var _ host.Host = (*Host)(nil)

// NewHost binds settings and repos.
func NewHost(settings host.Settings, repos repositories.Registry) (*Host, error) {
	if repos == nil {
		return nil, errors.New("wiki: repositories are required")
	}
	return &Host{settings: settings, repos: repos}, nil
}

// WithPage marks title as the page targeted by the request carried by ctx.
func (h *Host) WithPage(ctx context.Context, title string) context.Context {
	return requestctx.WithPageTitle(ctx, repositories.CanonicalTitle(title))
}

// Settings implements host.Host.
func (h *Host) Settings() host.Settings { return h.settings }

// CurrentPage implements host.Host. It returns nil when the request targets no page
// or the page does not exist.
func (h *Host) CurrentPage(ctx context.Context) (*host.Page, error) {
	title := requestctx.PageTitle(ctx)
	if title == "" {
		return nil, nil
	}
	page, err := h.repos.Pages().FindByTitle(ctx, title)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if page.FullURL == "" {
		page.FullURL = h.PageURL(page.Title)
	}
	return &page, nil
}

// FirstRevision implements host.Host.
func (h *Host) FirstRevision(ctx context.Context, pageID string) (*host.Revision, error) {
	return optional(h.repos.Revisions().First(ctx, pageID))
}

// LatestRevision implements host.Host.
func (h *Host) LatestRevision(ctx context.Context, pageID string) (*host.Revision, error) {
	return optional(h.repos.Revisions().Latest(ctx, pageID))
}

// User implements host.Host. Users without a stored page URL link to their user page.
func (h *Host) User(ctx context.Context, userID string) (*host.User, error) {
	user, err := optional(h.repos.Users().FindByID(ctx, userID))
	if err != nil || user == nil {
		return user, err
	}
	if user.UserPageURL == "" && user.Name != "" {
		user.UserPageURL = h.PageURL("User:" + user.Name)
	}
	return user, nil
}

// FindFile implements host.Host.
func (h *Host) FindFile(ctx context.Context, name string) (*host.File, error) {
	return optional(h.repos.Files().Find(ctx, name))
}

// PageURL returns the absolute URL of title on this wiki.
func (h *Host) PageURL(title string) string {
	return strings.TrimRight(h.settings.Server, "/") + ArticlePath + url.PathEscape(repositories.TitleKey(title))
}

func optional[T any](v T, err error) (*T, error) {
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}
