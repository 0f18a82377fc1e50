// Package firestore implements the repositories on Cloud Firestore.
package firestore

import (
	"time"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
)

const (
	pagesCollection     = "pages"
	revisionsCollection = "revisions"
	usersCollection     = "users"
	filesCollection     = "files"
)

type pageDocument struct {
	Title           string    `firestore:"title"`
	TitleKey        string    `firestore:"titleKey"`
	FullURL         string    `firestore:"fullUrl"`
	ContentPage     bool      `firestore:"contentPage"`
	MainPage        bool      `firestore:"mainPage"`
	EarliestRevTime time.Time `firestore:"earliestRevTime"`
	Touched         time.Time `firestore:"touched"`
	Length          int       `firestore:"length"`
	Categories      []string  `firestore:"categories"`
}

type revisionDocument struct {
	PageID    string    `firestore:"pageId"`
	UserID    string    `firestore:"userId"`
	UserText  string    `firestore:"userText"`
	Timestamp time.Time `firestore:"timestamp"`
	Content   string    `firestore:"content"`
}

type userDocument struct {
	Name        string   `firestore:"name"`
	Groups      []string `firestore:"groups"`
	UserPageURL string   `firestore:"userPageUrl"`
}

type fileDocument struct {
	Name   string `firestore:"name"`
	URL    string `firestore:"url"`
	Width  int    `firestore:"width"`
	Height int    `firestore:"height"`
}

func toPage(id string, d pageDocument) host.Page {
	return host.Page{
		ID:              id,
		Title:           d.Title,
		FullURL:         d.FullURL,
		IsContentPage:   d.ContentPage,
		IsMainPage:      d.MainPage,
		EarliestRevTime: d.EarliestRevTime,
		Touched:         d.Touched,
		Length:          d.Length,
		Categories:      d.Categories,
	}
}

func fromPage(p host.Page, titleKey string) pageDocument {
	return pageDocument{
		Title:           p.Title,
		TitleKey:        titleKey,
		FullURL:         p.FullURL,
		ContentPage:     p.IsContentPage,
		MainPage:        p.IsMainPage,
		EarliestRevTime: p.EarliestRevTime.UTC(),
		Touched:         p.Touched.UTC(),
		Length:          p.Length,
		Categories:      p.Categories,
	}
}

func toRevision(id string, d revisionDocument) host.Revision {
	return host.Revision{
		ID:        id,
		PageID:    d.PageID,
		UserID:    d.UserID,
		UserText:  d.UserText,
		Timestamp: d.Timestamp,
		Content:   d.Content,
	}
}

func fromRevision(r host.Revision) revisionDocument {
	return revisionDocument{
		PageID:    r.PageID,
		UserID:    r.UserID,
		UserText:  r.UserText,
		Timestamp: r.Timestamp.UTC(),
		Content:   r.Content,
	}
}
