package seo

// Record is the request-scoped metadata gathered for one rendered page.
type Record struct {
	Site    Site    `json:"site"`
	Article Article `json:"article"`
	Author  Author  `json:"author"`
	Image   Image   `json:"image"`
}

// Site identifies the wiki and its publisher details.
type Site struct {
	Name             string        `json:"name"`
	URL              string        `json:"url"`
	Email            string        `json:"email,omitempty"`
	Logo             string        `json:"logo,omitempty"`
	Favicon          string        `json:"favicon,omitempty"`
	Phone            string        `json:"phone,omitempty"`
	Publisher        string        `json:"publisher,omitempty"`
	PublisherLogo    string        `json:"publisherLogo,omitempty"`
	Manifest         string        `json:"manifest,omitempty"`
	SameAs           []string      `json:"sameAs,omitempty"`
	ThemeColor       string        `json:"themeColor,omitempty"`
	TileColor        string        `json:"tileColor,omitempty"`
	TwitterSite      string        `json:"twitterSite,omitempty"`
	TwitterCreator   string        `json:"twitterCreator,omitempty"`
	Address          PostalAddress `json:"address"`
	ContactType      string        `json:"contactType,omitempty"`
	ArticlePublisher string        `json:"articlePublisher,omitempty"`
}

// PostalAddress is the publisher's postal address.
type PostalAddress struct {
	StreetAddress string `json:"streetAddress,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	Country       string `json:"country,omitempty"`
}

// Article describes the page being rendered.
type Article struct {
	Headline     string `json:"headline"`
	Description  string `json:"description,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	URL          string `json:"url"`
	DateCreated  string `json:"dateCreated"`
	DateModified string `json:"dateModified"`
	WordCount    int    `json:"wordCount"`
	Body         string `json:"body,omitempty"`
	MainPage     bool   `json:"mainPage"`
}

// Author is the editor credited with the first revision.
type Author struct {
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	JobTitle string `json:"jobTitle,omitempty"`
}

// Image is the representative image of the page.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// OGType returns the Open Graph object type for the article.
func (a Article) OGType() string {
	if a.MainPage {
		return "website"
	}
	return "article"
}
