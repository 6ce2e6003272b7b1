// Package dom defines the narrow page capability the extractors work against.
//
// Implementations must degrade to "absent" rather than fail: a query that
// errors returns no elements, a missing attribute returns ok=false. The
// document may change arbitrarily between any two calls.
package dom

// ScrollState is a snapshot of an element's scroll geometry in CSS pixels.
type ScrollState struct {
	Top          float64
	ClientHeight float64
	ScrollHeight float64
}

// Page is the top-level document of the tab being scraped.
type Page interface {
	// URL returns the current location of the page.
	URL() string
	// FindAll returns every element matching selector in document order.
	FindAll(selector string) []Element
}

// Element is a handle to a node in the page. Handles may go stale when the
// page re-renders; operations on a stale handle return absent values or errors.
type Element interface {
	// Key identifies the underlying node. Two handles for the same node
	// return the same key.
	Key() string
	// FindAll returns descendants matching selector in document order.
	FindAll(selector string) []Element
	// Text returns the trimmed text content, ok=false when empty.
	Text() (string, bool)
	// Attr returns the raw attribute value, ok=false when the attribute is missing.
	Attr(name string) (string, bool)
	Click() error
	// ScrollBy requests a smooth scroll and returns without waiting for it.
	ScrollBy(delta float64) error
	ScrollState() (ScrollState, error)
}

// First returns the first element of els.
func First(els []Element) (Element, bool) {
	if len(els) == 0 {
		return nil, false
	}
	return els[0], true
}
