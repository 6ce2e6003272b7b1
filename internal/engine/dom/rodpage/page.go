// Package rodpage implements dom.Page over a live rod tab.
package rodpage

import (
	"fmt"
	"strings"

	"github.com/go-rod/rod"

	"github.com/rendis/leadtap/internal/engine/dom"
)

type Page struct {
	page *rod.Page
}

func New(page *rod.Page) *Page {
	return &Page{page: page}
}

func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *Page) FindAll(selector string) []dom.Element {
	els, err := p.page.Elements(selector)
	if err != nil {
		return nil
	}
	return wrap(els)
}

func wrap(els rod.Elements) []dom.Element {
	if len(els) == 0 {
		return nil
	}
	out := make([]dom.Element, len(els))
	for i, el := range els {
		out[i] = &Element{el: el}
	}
	return out
}

type Element struct {
	el *rod.Element
}

// Key is the backend node id, stable for the node's lifetime.
func (e *Element) Key() string {
	node, err := e.el.Describe(0, false)
	if err != nil {
		return fmt.Sprintf("obj:%s", e.el.Object.ObjectID)
	}
	return fmt.Sprintf("node:%d", node.BackendNodeID)
}

func (e *Element) FindAll(selector string) []dom.Element {
	els, err := e.el.Elements(selector)
	if err != nil {
		return nil
	}
	return wrap(els)
}

func (e *Element) Text() (string, bool) {
	res, err := e.el.Eval(`() => this.textContent || ''`)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(res.Value.Str())
	return text, text != ""
}

func (e *Element) Attr(name string) (string, bool) {
	v, err := e.el.Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

// Click dispatches a DOM click. Mouse input would need the element in view.
func (e *Element) Click() error {
	_, err := e.el.Eval(`() => this.click()`)
	return err
}

func (e *Element) ScrollBy(delta float64) error {
	_, err := e.el.Eval(`(d) => this.scrollBy({ top: d, behavior: 'smooth' })`, delta)
	return err
}

func (e *Element) ScrollState() (dom.ScrollState, error) {
	res, err := e.el.Eval(`() => ({ top: this.scrollTop, client: this.clientHeight, height: this.scrollHeight })`)
	if err != nil {
		return dom.ScrollState{}, err
	}
	return dom.ScrollState{
		Top:          res.Value.Get("top").Num(),
		ClientHeight: res.Value.Get("client").Num(),
		ScrollHeight: res.Value.Get("height").Num(),
	}, nil
}
