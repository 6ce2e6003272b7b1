package scraper

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rendis/leadtap/internal/engine/dom"
	"github.com/rendis/leadtap/internal/model"
)

var (
	// ErrNoListings means the page holds nothing the extractor recognises,
	// usually because the wrong profile was picked.
	ErrNoListings = errors.New("no business listings found on this page")
	// ErrUnknownProfile is returned by Lookup for an unregistered profile.
	ErrUnknownProfile = errors.New("unknown scraper profile")
)

// Extractor pulls business records out of one page.
//
// Start blocks until the run ends: normal completion, Stop, or the result cap.
// All three return the records gathered so far with a nil error. Stop is safe
// to call at any time, from any goroutine, any number of times.
type Extractor interface {
	Start(ctx context.Context) ([]model.BusinessRecord, error)
	Stop()
}

// ProgressFunc is called once per accepted record with the running count.
type ProgressFunc func(count int)

// Token is a cooperative cancellation flag checked at iteration boundaries.
type Token struct {
	stopped atomic.Bool
}

func NewToken() *Token { return &Token{} }

// Stop flags the token. Idempotent.
func (t *Token) Stop() { t.stopped.Store(true) }

func (t *Token) Stopped() bool { return t.stopped.Load() }

// Timings groups the waits an extractor performs. Zero fields fall back to
// DefaultTimings.
type Timings struct {
	ContainerTimeout time.Duration // results container must appear within this
	DetailTimeout    time.Duration // detail panel heading must appear within this
	SettleDelay      time.Duration // after clicking into a listing
	BackDelay        time.Duration // after clicking back to the list
	Yield            time.Duration // between listing containers
	ScrollStep       float64       // pixels per scroll request
	StallLimit       int           // consecutive scans without new links
}

func DefaultTimings() Timings {
	return Timings{
		ContainerTimeout: 10 * time.Second,
		DetailTimeout:    5 * time.Second,
		SettleDelay:      2000 * time.Millisecond,
		BackDelay:        500 * time.Millisecond,
		Yield:            50 * time.Millisecond,
		ScrollStep:       1000,
		StallLimit:       5,
	}
}

// WithDefaults fills zero fields from DefaultTimings.
func (t Timings) WithDefaults() Timings {
	d := DefaultTimings()
	if t.ContainerTimeout == 0 {
		t.ContainerTimeout = d.ContainerTimeout
	}
	if t.DetailTimeout == 0 {
		t.DetailTimeout = d.DetailTimeout
	}
	if t.SettleDelay == 0 {
		t.SettleDelay = d.SettleDelay
	}
	if t.BackDelay == 0 {
		t.BackDelay = d.BackDelay
	}
	if t.Yield == 0 {
		t.Yield = d.Yield
	}
	if t.ScrollStep == 0 {
		t.ScrollStep = d.ScrollStep
	}
	if t.StallLimit == 0 {
		t.StallLimit = d.StallLimit
	}
	return t
}

// Options configures one extractor run.
type Options struct {
	MaxResults  int
	ScrollDelay time.Duration
	Timings     Timings
	OnProgress  ProgressFunc
	Logger      *zap.Logger
	// Now stamps ScrapedAt. Defaults to time.Now.
	Now func() time.Time
}

// Normalize returns o with defaults applied to unset fields.
func (o Options) Normalize() Options {
	if o.MaxResults <= 0 {
		o.MaxResults = model.DefaultSettings().MaxResults
	}
	if o.ScrollDelay < 0 {
		o.ScrollDelay = 0
	}
	o.Timings = o.Timings.WithDefaults()
	if o.OnProgress == nil {
		o.OnProgress = func(int) {}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Factory builds an extractor bound to page.
type Factory func(page dom.Page, opts Options) Extractor
