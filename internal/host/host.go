// Package host defines the slice of the wiki platform's object model the SEO
// extension reads from. Implementations live with the platform; the extension only
// consumes these interfaces.
package host

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by accessors when the requested object does not exist.
var ErrNotFound = errors.New("host: not found")

// Page is the renderable page the current request targets.
type Page struct {
	ID              string
	Title           string
	FullURL         string
	IsContentPage   bool
	IsMainPage      bool
	EarliestRevTime time.Time
	Touched         time.Time
	// Length is the stored content length as reported by the page store.
	Length int
	// Categories holds parent category keys, possibly namespace prefixed.
	Categories []string
}

// Revision is a single stored revision of a page.
type Revision struct {
	ID        string
	PageID    string
	UserID    string
	UserText  string
	Timestamp time.Time
	// Content is the publicly visible revision text.
	Content string
}

// User is a registered editor.
type User struct {
	ID          string
	Name        string
	Groups      []string
	UserPageURL string
}

// File is an uploaded media file.
type File struct {
	Name   string
	URL    string
	Width  int
	Height int
}

// Settings carries the platform and extension configuration keys.
type Settings struct {
	Server           string `yaml:"server" json:"server"`
	Sitename         string `yaml:"sitename" json:"sitename"`
	EmergencyContact string `yaml:"emergency_contact" json:"emergencyContact"`
	Logo             string `yaml:"logo" json:"logo"`
	Favicon          string `yaml:"favicon" json:"favicon"`

	Phone            string `yaml:"phone" json:"phone"`
	Publisher        string `yaml:"publisher" json:"publisher"`
	PublisherLogo    string `yaml:"publisher_logo" json:"publisherLogo"`
	Manifest         string `yaml:"manifest" json:"manifest"`
	URLVk            string `yaml:"url_vk" json:"urlVk"`
	URLFacebook      string `yaml:"url_facebook" json:"urlFacebook"`
	URLTwitter       string `yaml:"url_twitter" json:"urlTwitter"`
	URLDiscord       string `yaml:"url_discord" json:"urlDiscord"`
	ThemeColor       string `yaml:"theme_color" json:"themeColor"`
	MSTileColor      string `yaml:"ms_tile_color" json:"msTileColor"`
	TwitterSite      string `yaml:"twitter_site" json:"twitterSite"`
	TwitterCreator   string `yaml:"twitter_creator" json:"twitterCreator"`
	StreetAddress    string `yaml:"street_address" json:"streetAddress"`
	AddressLocality  string `yaml:"address_locality" json:"addressLocality"`
	AddressRegion    string `yaml:"address_region" json:"addressRegion"`
	PostalCode       string `yaml:"postal_code" json:"postalCode"`
	AddressCountry   string `yaml:"address_country" json:"addressCountry"`
	ContactType      string `yaml:"contact_type" json:"contactType"`
	ArticlePublisher string `yaml:"article_publisher" json:"articlePublisher"`
	AuthorName       string `yaml:"author_name" json:"authorName"`
	CategoryPrefix   string `yaml:"category_prefix" json:"categoryPrefix"`
}

// Host exposes the platform's data accessors scoped to one request.
type Host interface {
	Settings() Settings
	// CurrentPage returns the page the request targets, or nil when the request does
	// not target a page.
	CurrentPage(ctx context.Context) (*Page, error)
	FirstRevision(ctx context.Context, pageID string) (*Revision, error)
	LatestRevision(ctx context.Context, pageID string) (*Revision, error)
	User(ctx context.Context, userID string) (*User, error)
	FindFile(ctx context.Context, name string) (*File, error)
}

// OutputPage receives head items for the page being sent to the client.
type OutputPage interface {
	AddHeadItem(key, html string)
	// FileSearchOptions lists the files the page references, in document order.
	FileSearchOptions() []string
}

// ParserOutput exposes properties recorded while parsing the page.
type ParserOutput interface {
	Property(name string) (string, bool)
}

// PropertyMap is a ParserOutput backed by a map.
type PropertyMap map[string]string

// Property implements ParserOutput.
func (m PropertyMap) Property(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[name]
	return v, ok
}

// IsNotFound reports whether err signals an absent object.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var nf interface{ IsNotFound() bool }
	if errors.As(err, &nf) {
		return nf.IsNotFound()
	}
	return false
}
