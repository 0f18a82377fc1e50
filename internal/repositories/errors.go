package repositories

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
)

// NotFoundError reports a missing entity. It matches host.ErrNotFound with errors.Is.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == host.ErrNotFound }

func (e *NotFoundError) IsNotFound() bool    { return true }
func (e *NotFoundError) IsConflict() bool    { return false }
func (e *NotFoundError) IsUnavailable() bool { return false }

// NotFound builds a NotFoundError.
func NotFound(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// IsNotFound reports whether err marks a missing entity.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return errors.Is(err, host.ErrNotFound)
}

// IsUnavailable reports whether err marks a transient backend failure.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// CanonicalTitle normalises a page title: underscores become spaces, runs of spaces
// collapse and the first letter is upper-cased.
func CanonicalTitle(title string) string {
	title = strings.Join(strings.Fields(strings.ReplaceAll(title, "_", " ")), " ")
	r, size := utf8.DecodeRuneInString(title)
	if r == utf8.RuneError {
		return title
	}
	return string(unicode.ToUpper(r)) + title[size:]
}

// TitleKey is the URL form of a canonical title.
func TitleKey(title string) string {
	return strings.ReplaceAll(CanonicalTitle(title), " ", "_")
}
