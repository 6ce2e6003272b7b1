// Package htmlpage implements dom.Page over a goquery document.
//
// It serves two purposes: running the directory extractor against a page that
// was fetched over HTTP, and simulating a live page in tests. Clicks and
// scrolls have no effect of their own; callers plug in hooks that mutate the
// document the way a rendering engine would.
package htmlpage

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rendis/leadtap/internal/engine/dom"
)

// Scroll geometry is read from these attributes on the scrolled element.
const (
	AttrClientHeight = "data-client-height"
	AttrScrollHeight = "data-scroll-height"
)

// ClickFunc is invoked when an element is clicked.
type ClickFunc func(p *Page, el *Element) error

// ScrollFunc is invoked after an element's scroll offset changed.
type ScrollFunc func(p *Page, el *Element, top float64)

type Options struct {
	OnClick  ClickFunc
	OnScroll ScrollFunc
}

type Page struct {
	mu        sync.Mutex
	url       string
	doc       *goquery.Document
	scrollTop map[*html.Node]float64
	opts      Options
}

// New parses markup into a page located at url.
func New(url, markup string, opts Options) (*Page, error) {
	return FromReader(url, strings.NewReader(markup), opts)
}

// FromReader parses an HTML document read from r.
func FromReader(url string, r io.Reader, opts Options) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{
		url:       url,
		doc:       doc,
		scrollTop: make(map[*html.Node]float64),
		opts:      opts,
	}, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// SetURL simulates a client-side navigation.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

// SetHTML replaces the whole document. Handles into the old document go stale.
func (p *Page) SetHTML(markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	p.mu.Lock()
	p.doc = doc
	p.scrollTop = make(map[*html.Node]float64)
	p.mu.Unlock()
	return nil
}

// Mutate runs fn against the live document.
func (p *Page) Mutate(fn func(doc *goquery.Document)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.doc)
}

// HTML renders the current document.
func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, err := p.doc.Html()
	if err != nil {
		return ""
	}
	return out
}

func (p *Page) FindAll(selector string) []dom.Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wrap(p.doc.Find(selector))
}

func (p *Page) wrap(sel *goquery.Selection) []dom.Element {
	if sel.Length() == 0 {
		return nil
	}
	out := make([]dom.Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, &Element{page: p, node: n})
	}
	return out
}

// selection resolves n inside the current document. Detached nodes resolve
// to an empty selection.
func (p *Page) selection(n *html.Node) *goquery.Selection {
	return p.doc.FindNodes(n)
}

// Element is a handle to one node of a Page.
type Element struct {
	page *Page
	node *html.Node
}

func (e *Element) Key() string {
	return fmt.Sprintf("%p", e.node)
}

func (e *Element) FindAll(selector string) []dom.Element {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.wrap(e.page.selection(e.node).Find(selector))
}

func (e *Element) Text() (string, bool) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	text := strings.TrimSpace(e.page.selection(e.node).Text())
	return text, text != ""
}

func (e *Element) Attr(name string) (string, bool) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.selection(e.node).Attr(name)
}

// Selection exposes the goquery selection for hooks that need to inspect the node.
func (e *Element) Selection() *goquery.Selection {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.page.selection(e.node)
}

func (e *Element) Click() error {
	if e.page.opts.OnClick == nil {
		return nil
	}
	return e.page.opts.OnClick(e.page, e)
}

func (e *Element) ScrollBy(delta float64) error {
	e.page.mu.Lock()
	state, err := e.scrollStateLocked()
	if err != nil {
		e.page.mu.Unlock()
		return err
	}
	top := state.Top + delta
	if limit := state.ScrollHeight - state.ClientHeight; top > limit {
		top = limit
	}
	if top < 0 {
		top = 0
	}
	e.page.scrollTop[e.node] = top
	e.page.mu.Unlock()

	if e.page.opts.OnScroll != nil {
		e.page.opts.OnScroll(e.page, e, top)
	}
	return nil
}

func (e *Element) ScrollState() (dom.ScrollState, error) {
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	return e.scrollStateLocked()
}

func (e *Element) scrollStateLocked() (dom.ScrollState, error) {
	sel := e.page.selection(e.node)
	if sel.Length() == 0 {
		return dom.ScrollState{}, fmt.Errorf("element detached from document")
	}
	return dom.ScrollState{
		Top:          e.page.scrollTop[e.node],
		ClientHeight: floatAttr(sel, AttrClientHeight),
		ScrollHeight: floatAttr(sel, AttrScrollHeight),
	}, nil
}

func floatAttr(sel *goquery.Selection, name string) float64 {
	v, ok := sel.Attr(name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}
