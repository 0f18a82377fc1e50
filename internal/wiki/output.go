package wiki

import (
	"sync"

	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/host"
	"github.com/metastore-mediawiki/mediawiki-ext-seo/internal/seo"
)

// Output collects head items for one response. Items keep insertion order; adding a
// key again replaces its markup in place.
type Output struct {
	mu    sync.Mutex
	order []string
	items map[string]string
	files []string
}

var _ host.OutputPage = (*Output)(nil)

// NewOutput returns an Output for a page referencing files.
func NewOutput(files []string) *Output {
	return &Output{items: make(map[string]string), files: append([]string(nil), files...)}
}

// AddHeadItem implements host.OutputPage.
func (o *Output) AddHeadItem(key, html string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.items[key]; !ok {
		o.order = append(o.order, key)
	}
	o.items[key] = html
}

// FileSearchOptions implements host.OutputPage.
func (o *Output) FileSearchOptions() []string {
	return append([]string(nil), o.files...)
}

// HeadItems returns the collected items in insertion order.
func (o *Output) HeadItems() seo.Fragments {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(seo.Fragments, 0, len(o.order))
	for _, key := range o.order {
		out = append(out, seo.Fragment{Key: key, HTML: o.items[key]})
	}
	return out
}

// HeadHTML joins the head items, one per line.
func (o *Output) HeadHTML() string {
	return o.HeadItems().HTML()
}

// ParserOutput holds the properties and rendered HTML produced by parsing a page.
type ParserOutput struct {
	HTML  string
	Files []string

	props map[string]string
}

var _ host.ParserOutput = (*ParserOutput)(nil)

// SetProperty records a page property.
func (p *ParserOutput) SetProperty(name, value string) {
	if p.props == nil {
		p.props = make(map[string]string)
	}
	p.props[name] = value
}

// Property implements host.ParserOutput.
func (p *ParserOutput) Property(name string) (string, bool) {
	if p == nil || p.props == nil {
		return "", false
	}
	v, ok := p.props[name]
	return v, ok
}
