package wiki

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/metadata"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/seo"
)

// FilePrefix marks image destinations that name an uploaded file.
const FilePrefix = "File:"

const layoutHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} - {{.Sitename}}</title>
{{.Head}}</head>
<body>
<main>
<h1>{{.Title}}</h1>
{{.Body}}
</main>
</body>
</html>
`

var layout = template.Must(template.New("page").Parse(layoutHTML))

// Renderer turns stored markdown into page HTML.
type Renderer struct {
	md goldmark.Markdown
}

// NewRenderer returns a CommonMark renderer.
func NewRenderer() *Renderer {
	return &Renderer{md: goldmark.New()}
}

// FileResolver looks up an uploaded file by name; ok is false for unknown files.
type FileResolver func(ctx context.Context, name string) (file host.File, ok bool)

// Parse renders content and records the files it references, in document order, and
// the plain text of its first paragraph as the description property. File: images
// link to the file page and show the resolved file; unknown files render as a link.
func (r *Renderer) Parse(ctx context.Context, content string, files FileResolver) (*ParserOutput, error) {
	source := []byte(content)
	root := r.md.Parser().Parse(text.NewReader(source))

	out := &ParserOutput{}
	seen := make(map[string]bool)
	var summary gmast.Node
	var uploads []*gmast.Image
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Paragraph:
			if summary == nil && node.Parent() == root {
				summary = node
			}
		case *gmast.Image:
			name := fileName(string(node.Destination))
			if name == "" {
				break
			}
			if strings.HasPrefix(string(node.Destination), FilePrefix) {
				uploads = append(uploads, node)
			}
			if !seen[name] {
				seen[name] = true
				out.Files = append(out.Files, name)
			}
		}
		return gmast.WalkContinue, nil
	})

	for _, img := range uploads {
		linkFile(ctx, img, files)
	}

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, root); err != nil {
		return nil, fmt.Errorf("wiki: render markdown: %w", err)
	}
	out.HTML = buf.String()

	if summary != nil {
		var para bytes.Buffer
		if err := r.md.Renderer().Render(&para, source, summary); err == nil {
			if desc := seo.PlainText(para.String()); desc != "" {
				out.SetProperty(metadata.DescriptionProperty, desc)
			}
		}
	}
	return out, nil
}

// fileName maps an image destination to a file name. External URLs are not files.
func fileName(dest string) string {
	dest = strings.TrimSpace(dest)
	switch {
	case dest == "":
		return ""
	case strings.HasPrefix(dest, FilePrefix):
		return strings.TrimSpace(strings.TrimPrefix(dest, FilePrefix))
	case strings.Contains(dest, "://"), strings.HasPrefix(dest, "//"):
		return ""
	default:
		return path.Base(dest)
	}
}

// linkFile wraps a File: image in a link to the file page. The image source becomes
// the stored file URL; an unresolved image is replaced by its alt text.
func linkFile(ctx context.Context, img *gmast.Image, files FileResolver) {
	name := fileName(string(img.Destination))
	link := gmast.NewLink()
	link.Destination = []byte(filePageURL(name))

	parent := img.Parent()
	parent.ReplaceChild(parent, img, link)

	var file host.File
	ok := false
	if files != nil {
		file, ok = files(ctx, name)
	}
	if ok && file.URL != "" {
		img.Destination = []byte(file.URL)
		link.AppendChild(link, img)
		return
	}
	for c := img.FirstChild(); c != nil; {
		next := c.NextSibling()
		link.AppendChild(link, c)
		c = next
	}
	if !link.HasChildren() {
		link.AppendChild(link, gmast.NewString([]byte(FilePrefix+name)))
	}
}

// filePageURL is the site-relative description page of an uploaded file.
func filePageURL(name string) string {
	return ArticlePath + FilePrefix + url.PathEscape(strings.ReplaceAll(name, " ", "_"))
}

type document struct {
	Title    string
	Sitename string
	Head     template.HTML
	Body     template.HTML
}

// Document writes a full HTML page: head items go into <head>, the parsed body into
// <main>. Head items and body are trusted markup.
func (r *Renderer) Document(ctx context.Context, w io.Writer, page host.Page, settings host.Settings, head seo.Fragments, parsed *ParserOutput) error {
	var headBuf bytes.Buffer
	if err := seo.Head(head).Render(ctx, &headBuf); err != nil {
		return err
	}
	body := ""
	if parsed != nil {
		body = parsed.HTML
	}
	return layout.Execute(w, document{
		Title:    page.Title,
		Sitename: settings.Sitename,
		Head:     template.HTML(headBuf.String()),
		Body:     template.HTML(body),
	})
}
