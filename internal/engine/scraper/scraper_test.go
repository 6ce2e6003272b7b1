package scraper

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rendis/leadtap/internal/engine/dom"
	"github.com/rendis/leadtap/internal/model"
)

type nopExtractor struct{}

func (nopExtractor) Start(context.Context) ([]model.BusinessRecord, error) { return nil, nil }
func (nopExtractor) Stop() {}

func TestRegistry(t *testing.T) {
	t.Parallel()

	const p model.Profile = "registry-test"
	Register(p, func(dom.Page, Options) Extractor { return nopExtractor{} })

	f, err := Lookup(p)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if f(nil, Options{}) == nil {
		t.Error("factory returned nil extractor")
	}
	if _, err := Lookup("nope"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("Lookup(nope) err = %v, want ErrUnknownProfile", err)
	}

	profiles := Profiles()
	if !slices.Contains(profiles, p) {
		t.Errorf("Profiles() = %v, missing %q", profiles, p)
	}
	if !slices.IsSorted(profiles) {
		t.Errorf("Profiles() not sorted: %v", profiles)
	}
}

// TestToken_Concurrent checks Stop is idempotent and safe across goroutines.
func TestToken_Concurrent(t *testing.T) {
	t.Parallel()

	tok := NewToken()
	if tok.Stopped() {
		t.Fatal("new token already stopped")
	}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok.Stop()
		}()
	}
	wg.Wait()
	if !tok.Stopped() {
		t.Error("token not stopped")
	}
}

func TestTimings_WithDefaults(t *testing.T) {
	t.Parallel()

	got := Timings{SettleDelay: time.Millisecond, StallLimit: 2}.WithDefaults()
	d := DefaultTimings()
	if got.SettleDelay != time.Millisecond || got.StallLimit != 2 {
		t.Errorf("explicit fields overwritten: %+v", got)
	}
	if got.ContainerTimeout != d.ContainerTimeout || got.ScrollStep != d.ScrollStep || got.Yield != d.Yield {
		t.Errorf("zero fields not defaulted: %+v", got)
	}
}

func TestOptions_Normalize(t *testing.T) {
	t.Parallel()

	o := Options{MaxResults: -3, ScrollDelay: -time.Second}.Normalize()
	if o.MaxResults != model.DefaultSettings().MaxResults {
		t.Errorf("MaxResults = %d", o.MaxResults)
	}
	if o.ScrollDelay != 0 {
		t.Errorf("ScrollDelay = %v, want 0", o.ScrollDelay)
	}
	if o.OnProgress == nil || o.Logger == nil || o.Now == nil {
		t.Fatal("hooks left nil")
	}
	o.OnProgress(1)

	kept := Options{MaxResults: 7}.Normalize()
	if kept.MaxResults != 7 {
		t.Errorf("MaxResults = %d, want 7", kept.MaxResults)
	}
}
