package seo

// OpenGraph holds og:* and article:* properties.
type OpenGraph struct {
	Type          string
	SiteName      string
	Title         string
	Description   string
	Image         string
	URL           string
	PublishedTime string
	ModifiedTime  string
	Author        string
	Publisher     string
	Tag           string
	FBAppID       string
}

// Twitter holds twitter:* card fields.
type Twitter struct {
	Card        string
	Title       string
	Description string
	Image       string
	Site        string
	Creator     string
}

// DublinCore holds DC.* fields.
type DublinCore struct {
	Title       string
	DateIssued  string
	DateCreated string
}

// Links holds rel links published for the site.
type Links struct {
	Publisher string
	Manifest  string
}

// Meta is the full tag set derived from a Record.
type Meta struct {
	Viewport     string
	Keywords     string
	Author       string
	Designer     string
	Publisher    string
	Distribution string
	Rating       string
	ReplyTo      string
	Copyright    string
	Referrer     string
	ThemeColor   string
	TileColor    string
	Favicon      string
	Links        Links
	OG           OpenGraph
	Twitter      Twitter
	DC           DublinCore
}

const (
	defaultViewport = "width=device-width, initial-scale=1, maximum-scale=1"
	twitterCard     = "summary"
)

// NewMeta derives the tag set for rec.
func NewMeta(rec Record) Meta {
	site := rec.Site
	art := rec.Article
	return Meta{
		Viewport:     defaultViewport,
		Keywords:     art.Keywords,
		Author:       site.Name,
		Designer:     site.Name,
		Publisher:    site.Name,
		Distribution: "web",
		Rating:       "general",
		ReplyTo:      site.Email,
		Copyright:    site.Name,
		Referrer:     "strict-origin",
		ThemeColor:   site.ThemeColor,
		TileColor:    site.TileColor,
		Favicon:      site.Favicon,
		Links: Links{
			Publisher: site.Publisher,
			Manifest:  site.Manifest,
		},
		OG: OpenGraph{
			Type:          art.OGType(),
			SiteName:      site.Name,
			Title:         art.Headline,
			Description:   art.Description,
			Image:         rec.Image.URL,
			URL:           art.URL,
			PublishedTime: art.DateCreated,
			ModifiedTime:  art.DateModified,
			Author:        site.Name,
			Publisher:     site.ArticlePublisher,
			Tag:           art.Keywords,
		},
		Twitter: Twitter{
			Card:        twitterCard,
			Title:       art.Headline,
			Description: art.Description,
			Image:       rec.Image.URL,
			// An unset handle still yields a bare "@"; see hook.New for the warning.
			Site:    "@" + site.TwitterSite,
			Creator: "@" + site.TwitterCreator,
		},
		DC: DublinCore{
			Title:       art.Headline,
			DateIssued:  art.DateCreated,
			DateCreated: art.DateCreated,
		},
	}
}

type field struct {
	name  string
	value string
}

func (m Meta) names() []field {
	return []field{
		{"viewport", m.Viewport},
		{"keywords", m.Keywords},
		{"author", m.Author},
		{"designer", m.Designer},
		{"publisher", m.Publisher},
		{"distribution", m.Distribution},
		{"rating", m.Rating},
		{"reply-to", m.ReplyTo},
		{"copyright", m.Copyright},
		{"referrer", m.Referrer},
		{"theme-color", m.ThemeColor},
		{"msapplication-TileColor", m.TileColor},
	}
}

func (l Links) rels() []field {
	return []field{
		{"publisher", l.Publisher},
		{"manifest", l.Manifest},
	}
}

func (og OpenGraph) properties() []field {
	return []field{
		{"og:type", og.Type},
		{"og:site_name", og.SiteName},
		{"og:title", og.Title},
		{"og:description", og.Description},
		{"og:image", og.Image},
		{"og:url", og.URL},
		{"article:published_time", og.PublishedTime},
		{"article:modified_time", og.ModifiedTime},
		{"article:author", og.Author},
		{"article:publisher", og.Publisher},
		{"article:tag", og.Tag},
		{"fb:app_id", og.FBAppID},
	}
}

func (t Twitter) names() []field {
	return []field{
		{"twitter:card", t.Card},
		{"twitter:title", t.Title},
		{"twitter:description", t.Description},
		{"twitter:image", t.Image},
		{"twitter:site", t.Site},
		{"twitter:creator", t.Creator},
	}
}

func (dc DublinCore) names() []field {
	return []field{
		{"DC.Title", dc.Title},
		{"DC.Date.Issued", dc.DateIssued},
		{"DC.Date.Created", dc.DateCreated},
	}
}
