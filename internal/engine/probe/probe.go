// Package probe holds the polling primitives and field parsers shared by the
// extractors. Nothing here fails on absence: a timeout or an unparsable
// string is reported as "no value".
package probe

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rendis/leadtap/internal/engine/dom"
)

// PollInterval is the fixed re-check interval of WaitFor.
const PollInterval = 100 * time.Millisecond

// DefaultBottomThreshold absorbs sub-pixel rounding in scroll geometry.
const DefaultBottomThreshold = 10.0

var (
	ratingRe = regexp.MustCompile(`(\d+\.?\d*)`)
	countRe  = regexp.MustCompile(`(\d+)`)
	telRe    = regexp.MustCompile(`tel:(.+)`)
)

// WaitFor polls check every PollInterval until it reports ok or timeout
// elapses. A timeout is not an error: the zero value and false are returned.
// Cancelling ctx ends the wait early the same way.
func WaitFor[T any](ctx context.Context, timeout time.Duration, check func() (T, bool)) (T, bool) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		if v, ok := check(); ok {
			return v, true
		}
		if !time.Now().Before(deadline) {
			var zero T
			return zero, false
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, false
		case <-ticker.C:
		}
	}
}

// WaitForElement waits until selector matches at least one element on page.
func WaitForElement(ctx context.Context, page dom.Page, selector string, timeout time.Duration) (dom.Element, bool) {
	return WaitFor(ctx, timeout, func() (dom.Element, bool) {
		return dom.First(page.FindAll(selector))
	})
}

// Sleep pauses for d. It returns early with ctx.Err() when ctx is cancelled.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ScrollContainer issues a smooth scroll of delta pixels. It does not wait
// for the scroll to finish; callers delay and re-check on their own.
func ScrollContainer(el dom.Element, delta float64) error {
	return el.ScrollBy(delta)
}

// IsAtBottom reports whether el is scrolled to within threshold pixels of its
// end. An element whose geometry cannot be read is treated as not at bottom.
func IsAtBottom(el dom.Element, threshold float64) bool {
	s, err := el.ScrollState()
	if err != nil {
		return false
	}
	return s.Top+s.ClientHeight >= s.ScrollHeight-threshold
}

// ParseRating extracts the first decimal-looking number from text.
// Examples: "4.5", "4.5 stars", "Rating: 4.5".
func ParseRating(text string) (float64, bool) {
	m := ratingRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ParseReviewCount extracts the first integer from text.
// Examples: "123", "123 reviews", "(123)".
func ParseReviewCount(text string) (int, bool) {
	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParsePhoneFromLink recovers the raw number from a tel: link.
func ParsePhoneFromLink(href string) (string, bool) {
	m := telRe.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FirstElement returns the first element matched inside root by the first
// selector in selectors that matches anything.
func FirstElement(root dom.Element, selectors []string) (dom.Element, bool) {
	for _, sel := range selectors {
		if el, ok := dom.First(root.FindAll(sel)); ok {
			return el, true
		}
	}
	return nil, false
}

// FirstText walks selectors in order and returns the first non-empty text.
func FirstText(root dom.Element, selectors []string) (string, bool) {
	for _, sel := range selectors {
		el, ok := dom.First(root.FindAll(sel))
		if !ok {
			continue
		}
		if text, ok := el.Text(); ok {
			return text, true
		}
	}
	return "", false
}

// PageText returns the text of the first element matching selector on page.
func PageText(page dom.Page, selector string) string {
	el, ok := dom.First(page.FindAll(selector))
	if !ok {
		return ""
	}
	text, _ := el.Text()
	return text
}

// PageAttr returns the attribute of the first element matching selector on page.
func PageAttr(page dom.Page, selector, name string) string {
	el, ok := dom.First(page.FindAll(selector))
	if !ok {
		return ""
	}
	v, _ := el.Attr(name)
	return v
}
