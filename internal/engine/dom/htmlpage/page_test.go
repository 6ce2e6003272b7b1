package htmlpage

import (
	"errors"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

const fixture = `<html><body>
<ul id="list" data-client-height="100" data-scroll-height="400">
  <li class="item" data-id="a"> Alpha </li>
  <li class="item" data-id="b"></li>
</ul>
<button id="more">More</button>
</body></html>`

func newPage(t *testing.T, opts Options) *Page {
	t.Helper()
	p, err := New("https://directory.example/list", fixture, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// TestKey_StablePerNode checks that two lookups of one node share a key.
func TestKey_StablePerNode(t *testing.T) {
	t.Parallel()

	p := newPage(t, Options{})
	a := p.FindAll(".item")
	b := p.FindAll(`[data-id]`)
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("got %d and %d items, want 2 each", len(a), len(b))
	}
	if a[0].Key() != b[0].Key() || a[1].Key() != b[1].Key() {
		t.Error("keys differ for the same node")
	}
	if a[0].Key() == a[1].Key() {
		t.Error("distinct nodes share a key")
	}
}

func TestTextAndAttr(t *testing.T) {
	t.Parallel()

	p := newPage(t, Options{})
	items := p.FindAll(".item")

	if text, ok := items[0].Text(); !ok || text != "Alpha" {
		t.Errorf("Text = %q, %v", text, ok)
	}
	if _, ok := items[1].Text(); ok {
		t.Error("empty element reported text")
	}
	if id, ok := items[1].Attr("data-id"); !ok || id != "b" {
		t.Errorf("Attr = %q, %v", id, ok)
	}
	if _, ok := items[1].Attr("href"); ok {
		t.Error("missing attribute reported present")
	}
	if got := p.FindAll("#list")[0].FindAll(".item"); len(got) != 2 {
		t.Errorf("nested FindAll = %d, want 2", len(got))
	}
}

// TestSetHTML_StaleHandles checks that handles into a replaced document
// degrade to absent values.
func TestSetHTML_StaleHandles(t *testing.T) {
	t.Parallel()

	p := newPage(t, Options{})
	old := p.FindAll(".item")[0]

	if err := p.SetHTML(`<html><body><p class="item">Beta</p></body></html>`); err != nil {
		t.Fatalf("SetHTML: %v", err)
	}
	if _, ok := old.Text(); ok {
		t.Error("stale handle still reads text")
	}
	if len(old.FindAll("*")) != 0 {
		t.Error("stale handle still finds descendants")
	}
	if _, err := old.ScrollState(); err == nil {
		t.Error("stale handle reported scroll geometry")
	}
	if got := p.FindAll(".item"); len(got) != 1 {
		t.Errorf("new document items = %d, want 1", len(got))
	}
}

// TestScrollBy_ClampsAndNotifies checks offsets stay within the scroll range.
func TestScrollBy_ClampsAndNotifies(t *testing.T) {
	t.Parallel()

	var tops []float64
	p := newPage(t, Options{OnScroll: func(_ *Page, _ *Element, top float64) {
		tops = append(tops, top)
	}})
	list := p.FindAll("#list")[0]

	for _, delta := range []float64{200, 200, -1000} {
		if err := list.ScrollBy(delta); err != nil {
			t.Fatalf("ScrollBy(%v): %v", delta, err)
		}
	}
	want := []float64{200, 300, 0}
	if len(tops) != len(want) {
		t.Fatalf("hook calls = %v, want %v", tops, want)
	}
	for i := range want {
		if tops[i] != want[i] {
			t.Errorf("top[%d] = %v, want %v", i, tops[i], want[i])
		}
	}

	state, err := list.ScrollState()
	if err != nil {
		t.Fatalf("ScrollState: %v", err)
	}
	if state.Top != 0 || state.ClientHeight != 100 || state.ScrollHeight != 400 {
		t.Errorf("state = %+v", state)
	}
}

// TestClick_Hook checks that clicks run the hook, which may mutate the page.
func TestClick_Hook(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := newPage(t, Options{OnClick: func(p *Page, el *Element) error {
		if id, _ := el.Selection().Attr("id"); id != "more" {
			return boom
		}
		p.Mutate(func(doc *goquery.Document) {
			doc.Find("#list").AppendHtml(`<li class="item" data-id="c">Gamma</li>`)
		})
		return nil
	}})

	if err := p.FindAll("#more")[0].Click(); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if got := p.FindAll(".item"); len(got) != 3 {
		t.Errorf("items after click = %d, want 3", len(got))
	}
	if err := p.FindAll(".item")[0].Click(); !errors.Is(err, boom) {
		t.Errorf("Click err = %v, want boom", err)
	}

	plain := newPage(t, Options{})
	if err := plain.FindAll("#more")[0].Click(); err != nil {
		t.Errorf("click without hook: %v", err)
	}
}
