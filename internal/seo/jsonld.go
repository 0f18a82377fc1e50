package seo

import (
	"encoding/json"
	"strings"
)

const (
	schemaContext       = "http://schema.org"
	publisherLogoWidth  = 600
	publisherLogoHeight = 60
)

// JSONLD encodes the Article payload for rec. Non-ASCII text is kept as is; <, >
// and & are written as \u escapes so the payload is inert inside a script element.
func JSONLD(rec Record) (string, error) {
	b, err := json.Marshal(ArticleSchema(rec))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ArticleSchema returns the schema.org Article payload for the record. The wiki
// itself is credited as author; the first editor stays in the record only. Image
// width and height are never swapped.
func ArticleSchema(rec Record) map[string]any {
	return map[string]any{
		"@context":            schemaContext,
		"@type":               "Article",
		"headline":            rec.Article.Headline,
		"alternativeHeadline": rec.Article.Headline,
		"description":         rec.Article.Description,
		"keywords":            rec.Article.Keywords,
		"dateCreated":         rec.Article.DateCreated,
		"datePublished":       rec.Article.DateCreated,
		"dateModified":        rec.Article.DateModified,
		"wordCount":           rec.Article.WordCount,
		"url":                 rec.Article.URL,
		"mainEntityOfPage":    WebPage(rec.Article.URL),
		"author":              Person(rec.Site.Name, rec.Site.URL),
		"image":               ImageObject(rec.Image.URL, rec.Image.Width, rec.Image.Height),
		"publisher":           Organization(rec.Site),
	}
}

// WebPage returns a WebPage reference identified by url.
func WebPage(id string) map[string]any {
	return map[string]any{
		"@type": "WebPage",
		"@id":   id,
	}
}

// Person returns a minimal Person schema.
func Person(name, url string) map[string]any {
	return map[string]any{
		"@type": "Person",
		"name":  name,
		"url":   url,
	}
}

// ImageObject returns an ImageObject with pixel dimensions.
func ImageObject(url string, width, height int) map[string]any {
	return map[string]any{
		"@type":  "ImageObject",
		"url":    url,
		"width":  width,
		"height": height,
	}
}

// Organization returns the publisher Organization with address, contact point and
// social profiles.
func Organization(site Site) map[string]any {
	return map[string]any{
		"@type":        "Organization",
		"name":         site.Name,
		"url":          site.URL,
		"logo":         ImageObject(site.PublisherLogo, publisherLogoWidth, publisherLogoHeight),
		"address":      Address(site.Address),
		"contactPoint": ContactPoint(site),
		"sameAs":       sameAs(site.SameAs),
	}
}

// Address returns a PostalAddress schema.
func Address(a PostalAddress) map[string]any {
	return map[string]any{
		"@type":           "PostalAddress",
		"streetAddress":   a.StreetAddress,
		"addressLocality": a.Locality,
		"addressRegion":   a.Region,
		"postalCode":      a.PostalCode,
		"addressCountry":  a.Country,
	}
}

// ContactPoint returns the publisher ContactPoint schema.
func ContactPoint(site Site) map[string]any {
	return map[string]any{
		"@type":       "ContactPoint",
		"contactType": site.ContactType,
		"telephone":   site.Phone,
		"email":       site.Email,
		"url":         site.URL,
	}
}

func sameAs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
