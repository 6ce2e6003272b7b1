package probe

import (
	"context"
	"testing"
	"time"

	"github.com/rendis/leadtap/internal/engine/dom/htmlpage"
)

func TestParseRating(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"4.5", 4.5, true},
		{"4.5 stars", 4.5, true},
		{"Rated 4 out of 5", 4, true},
		{"Rating: 3.", 3, true},
		{"no rating", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseRating(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseRating(%q) = %v, %v, want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParseReviewCount(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"(123 reviews)", 123, true},
		{"123", 123, true},
		{"1,234 reviews", 1, true},
		{"no reviews", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseReviewCount(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseReviewCount(%q) = %v, %v, want %v, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePhoneFromLink(t *testing.T) {
	t.Parallel()

	if got, ok := ParsePhoneFromLink("tel:+1-555-0100"); !ok || got != "+1-555-0100" {
		t.Errorf("ParsePhoneFromLink(tel:) = %q, %v", got, ok)
	}
	if _, ok := ParsePhoneFromLink("https://example.com"); ok {
		t.Error("ParsePhoneFromLink accepted a web link")
	}
}

// TestWaitFor_TimesOutQuietly checks that a timeout is reported as absence.
func TestWaitFor_TimesOutQuietly(t *testing.T) {
	t.Parallel()

	start := time.Now()
	v, ok := WaitFor(context.Background(), 150*time.Millisecond, func() (int, bool) { return 0, false })
	if ok || v != 0 {
		t.Errorf("WaitFor = %d, %v, want absent", v, ok)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
}

// TestWaitForElement_AppearsLater checks that polling picks up a node that
// is inserted after the wait began.
func TestWaitForElement_AppearsLater(t *testing.T) {
	t.Parallel()

	page, err := htmlpage.New("https://example.com", `<div id="root"></div>`, htmlpage.Options{})
	if err != nil {
		t.Fatalf("htmlpage.New: %v", err)
	}
	go func() {
		time.Sleep(120 * time.Millisecond)
		if err := page.SetHTML(`<div id="root"><h1>Ready</h1></div>`); err != nil {
			t.Errorf("SetHTML: %v", err)
		}
	}()

	el, ok := WaitForElement(context.Background(), page, "h1", 2*time.Second)
	if !ok {
		t.Fatal("element never found")
	}
	if text, _ := el.Text(); text != "Ready" {
		t.Errorf("text = %q", text)
	}
}

func TestSleep_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err == nil {
		t.Error("Sleep ignored a cancelled context")
	}
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) = %v", err)
	}
}

// TestFirstText_SkipsEmptyMatches checks selector fallback order.
func TestFirstText_SkipsEmptyMatches(t *testing.T) {
	t.Parallel()

	page, err := htmlpage.New("https://example.com", `
		<article>
			<span class="title">   </span>
			<h2>Second Choice</h2>
			<h3>Third Choice</h3>
		</article>`, htmlpage.Options{})
	if err != nil {
		t.Fatalf("htmlpage.New: %v", err)
	}
	root := page.FindAll("article")[0]

	got, ok := FirstText(root, []string{".missing", ".title", "h2", "h3"})
	if !ok || got != "Second Choice" {
		t.Errorf("FirstText = %q, %v", got, ok)
	}
	if _, ok := FirstText(root, []string{".missing"}); ok {
		t.Error("FirstText matched nothing but reported ok")
	}
	el, ok := FirstElement(root, []string{".missing", ".title"})
	if !ok {
		t.Fatal("FirstElement found nothing")
	}
	if _, ok := el.Text(); ok {
		t.Error("blank element reported text")
	}

	if got := PageText(page, "h3"); got != "Third Choice" {
		t.Errorf("PageText = %q", got)
	}
	if got := PageAttr(page, "h3", "id"); got != "" {
		t.Errorf("PageAttr = %q", got)
	}
}

// TestIsAtBottom checks the threshold and scroll clamping.
func TestIsAtBottom(t *testing.T) {
	t.Parallel()

	page, err := htmlpage.New("https://example.com",
		`<div id="feed" data-client-height="500" data-scroll-height="1495"></div>`, htmlpage.Options{})
	if err != nil {
		t.Fatalf("htmlpage.New: %v", err)
	}
	feed := page.FindAll("#feed")[0]

	if IsAtBottom(feed, DefaultBottomThreshold) {
		t.Error("at bottom before scrolling")
	}
	if err := ScrollContainer(feed, 990); err != nil {
		t.Fatalf("ScrollContainer: %v", err)
	}
	if !IsAtBottom(feed, DefaultBottomThreshold) {
		t.Error("not at bottom within threshold")
	}
	if err := ScrollContainer(feed, 10000); err != nil {
		t.Fatalf("ScrollContainer: %v", err)
	}
	if s, _ := feed.ScrollState(); s.Top != 995 {
		t.Errorf("scroll top = %v, want clamped 995", s.Top)
	}
}
