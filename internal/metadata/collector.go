// Package metadata gathers the request-scoped SEO record from the wiki host.
package metadata

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/platform/requestctx"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/seo"
)

// DescriptionProperty is the parser output property holding the page summary.
const DescriptionProperty = "description"

// ErrNoPage is returned by Collect when no page is supplied.
var ErrNoPage = errors.New("metadata: page is required")

// Collector reads page, revision, user and file data through a host.Host and
// assembles a seo.Record. Accessor failures fall back to configured defaults.
type Collector struct {
	prober ImageProber
}

// Option configures a Collector.
type Option func(*Collector)

// WithProber sets the prober used to size the fallback logo image.
func WithProber(p ImageProber) Option {
	return func(c *Collector) {
		if p != nil {
			c.prober = p
		}
	}
}

// NewCollector constructs a Collector. Without WithProber the logo is probed over
// HTTP with default limits.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.prober == nil {
		c.prober = NewHTTPProber(nil, 0)
	}
	return c
}

// Collect builds the record for page. out supplies the referenced files and po the
// parser properties; either may be nil.
func (c *Collector) Collect(ctx context.Context, h host.Host, page *host.Page, out host.OutputPage, po host.ParserOutput) (seo.Record, error) {
	if page == nil {
		return seo.Record{}, ErrNoPage
	}
	settings := h.Settings()
	logger := requestctx.Logger(ctx).With(zap.String("page_id", page.ID))

	rec := seo.Record{
		Site: SiteFromSettings(settings),
		Article: seo.Article{
			Headline:     seo.Clean(page.Title),
			Description:  description(po),
			Keywords:     seo.Keywords(page.Categories, settings.CategoryPrefix),
			URL:          page.FullURL,
			DateCreated:  seo.FormatDate(page.EarliestRevTime),
			DateModified: seo.FormatDate(page.Touched),
			WordCount:    page.Length,
			MainPage:     page.IsMainPage,
		},
	}

	rec.Article.Body = c.body(ctx, logger, h, page.ID)
	rec.Author = c.author(ctx, logger, h, page.ID, settings)
	rec.Image = c.image(ctx, logger, h, out, settings)
	return rec, nil
}

// SiteFromSettings maps configuration keys onto the site identity.
func SiteFromSettings(s host.Settings) seo.Site {
	return seo.Site{
		Name:           seo.Clean(s.Sitename),
		URL:            s.Server,
		Email:          s.EmergencyContact,
		Logo:           s.Logo,
		Favicon:        s.Favicon,
		Phone:          s.Phone,
		Publisher:      s.Publisher,
		PublisherLogo:  s.PublisherLogo,
		Manifest:       s.Manifest,
		SameAs:         []string{s.URLVk, s.URLFacebook, s.URLTwitter, s.URLDiscord},
		ThemeColor:     s.ThemeColor,
		TileColor:      s.MSTileColor,
		TwitterSite:    s.TwitterSite,
		TwitterCreator: s.TwitterCreator,
		Address: seo.PostalAddress{
			StreetAddress: s.StreetAddress,
			Locality:      s.AddressLocality,
			Region:        s.AddressRegion,
			PostalCode:    s.PostalCode,
			Country:       s.AddressCountry,
		},
		ContactType:      s.ContactType,
		ArticlePublisher: s.ArticlePublisher,
	}
}

func description(po host.ParserOutput) string {
	if po == nil {
		return ""
	}
	v, ok := po.Property(DescriptionProperty)
	if !ok {
		return ""
	}
	return seo.Clean(v)
}

func (c *Collector) body(ctx context.Context, logger *zap.Logger, h host.Host, pageID string) string {
	rev, err := h.LatestRevision(ctx, pageID)
	if err != nil {
		logAccessError(logger, "latest revision", err)
		return ""
	}
	if rev == nil {
		return ""
	}
	return seo.PlainText(rev.Content)
}

func (c *Collector) author(ctx context.Context, logger *zap.Logger, h host.Host, pageID string, settings host.Settings) seo.Author {
	fallback := seo.Author{Name: seo.Clean(settings.AuthorName)}

	rev, err := h.FirstRevision(ctx, pageID)
	if err != nil {
		logAccessError(logger, "first revision", err)
		return fallback
	}
	if rev == nil {
		return fallback
	}

	author := seo.Author{Name: seo.Clean(rev.UserText)}
	if rev.UserID == "" {
		return author
	}
	user, err := h.User(ctx, rev.UserID)
	if err != nil {
		logAccessError(logger, "user", err)
		return author
	}
	if user == nil {
		return author
	}
	if author.Name == "" {
		author.Name = seo.Clean(user.Name)
	}
	author.URL = user.UserPageURL
	author.JobTitle = seo.Clean(strings.Join(user.Groups, ", "))
	return author
}

func (c *Collector) image(ctx context.Context, logger *zap.Logger, h host.Host, out host.OutputPage, settings host.Settings) seo.Image {
	if name := representativeFile(out); name != "" {
		file, err := h.FindFile(ctx, name)
		switch {
		case err != nil:
			logAccessError(logger, "file", err)
		case file != nil:
			return seo.Image{URL: file.URL, Width: file.Width, Height: file.Height}
		}
	}

	img := seo.Image{URL: settings.Server + settings.Logo}
	width, height, err := c.prober.Probe(ctx, img.URL)
	if err != nil {
		logger.Debug("logo probe failed", zap.String("url", img.URL), zap.Error(err))
		return img
	}
	img.Width, img.Height = width, height
	return img
}

func representativeFile(out host.OutputPage) string {
	if out == nil {
		return ""
	}
	names := out.FileSearchOptions()
	if len(names) == 0 {
		return ""
	}
	return strings.TrimSpace(names[0])
}

func logAccessError(logger *zap.Logger, what string, err error) {
	if host.IsNotFound(err) {
		return
	}
	logger.Warn("host accessor failed", zap.String("accessor", what), zap.Error(err))
}
