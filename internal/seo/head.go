package seo

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// KeyPrefix namespaces every head item key emitted by Build.
const KeyPrefix = "mw-ext-seo-"

// DNSPrefetch lists the hosts announced with rel=dns-prefetch.
var DNSPrefetch = []string{
	"//cdn.jsdelivr.net",
	"//cdnjs.cloudflare.com",
	"//fonts.googleapis.com",
	"//use.fontawesome.com",
	"//disqus.com",
	"//github.com",
}

// Fragment is a single keyed head item.
type Fragment struct {
	Key  string `json:"key"`
	HTML string `json:"html"`
}

// Fragments is an ordered list of head items.
type Fragments []Fragment

// HTML joins the fragments, one per line.
func (f Fragments) HTML() string {
	var b strings.Builder
	for _, item := range f {
		b.WriteString(item.HTML)
		b.WriteByte('\n')
	}
	return b.String()
}

// Attr is an element attribute.
type Attr struct {
	Key string
	Val string
}

// Build renders every head fragment for rec. Tags whose value is not Present are
// skipped; the JSON-LD block and the fixed http-equiv and dns-prefetch links are
// always emitted.
func Build(rec Record) Fragments {
	meta := NewMeta(rec)
	out := make(Fragments, 0, 48)

	if payload, err := JSONLD(rec); err == nil {
		out = append(out, Fragment{Key: KeyPrefix + "json", HTML: Script("application/ld+json", payload)})
	}

	out = append(out, Fragment{
		Key:  KeyPrefix + "http",
		HTML: Element("meta", Attr{"http-equiv", "X-UA-Compatible"}, Attr{"content", "IE=edge"}),
	})

	for i, href := range DNSPrefetch {
		out = append(out, Fragment{
			Key:  KeyPrefix + "dns-" + strconv.Itoa(i),
			HTML: Element("link", Attr{"rel", "dns-prefetch"}, Attr{"href", href}),
		})
	}

	if Present(meta.Favicon) {
		out = append(out, Fragment{
			Key:  KeyPrefix + "favicon",
			HTML: Element("link", Attr{"rel", "icon"}, Attr{"type", "image/x-icon"}, Attr{"href", meta.Favicon}),
		})
	}

	out = appendTags(out, "meta", "meta", "name", "content", meta.names())
	out = appendTags(out, "rel", "link", "rel", "href", meta.Links.rels())
	out = appendTags(out, "og", "meta", "property", "content", meta.OG.properties())
	out = appendTags(out, "twitter", "meta", "name", "content", meta.Twitter.names())
	out = appendTags(out, "dc", "meta", "name", "content", meta.DC.names())
	return out
}

func appendTags(out Fragments, group, tag, nameAttr, valueAttr string, fields []field) Fragments {
	for _, f := range fields {
		if !Present(f.value) {
			continue
		}
		out = append(out, Fragment{
			Key:  KeyPrefix + group + f.name,
			HTML: Element(tag, Attr{nameAttr, f.name}, Attr{valueAttr, f.value}),
		})
	}
	return out
}

// Element renders a void element. Attribute values are escaped.
func Element(tag string, attrs ...Attr) string {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	for _, a := range attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	return render(n)
}

// Script renders a script element of the given type around a raw payload.
func Script(typ, payload string) string {
	n := &html.Node{Type: html.ElementNode, Data: "script", DataAtom: atom.Script}
	n.Attr = []html.Attribute{{Key: "type", Val: typ}}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: payload})
	return render(n)
}

func render(n *html.Node) string {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return ""
	}
	return b.String()
}

// Head renders the fragments as a templ component for layouts composed with templ.
func Head(fragments Fragments) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, fragments.HTML())
		return err
	})
}
