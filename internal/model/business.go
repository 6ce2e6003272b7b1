package model

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// Source tags where a record was scraped from.
type Source string

const (
	SourceMaps      Source = "google-maps"
	SourceDirectory Source = "generic-directory"
)

// Profile selects the extraction strategy for a session.
type Profile string

const (
	ProfileMaps    Profile = "google-maps"
	ProfileListing Profile = "generic-listing"
)

// Valid reports whether p names a known profile.
func (p Profile) Valid() bool {
	return p == ProfileMaps || p == ProfileListing
}

// Status is the lifecycle state of a scrape session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// Terminal reports whether s is a settled state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusStopped || s == StatusError
}

// BusinessRecord represents one scraped business listing.
// Empty strings and nil pointers mean the field was not found on the page.
type BusinessRecord struct {
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	Rating        *float64  `json:"rating"`
	ReviewCount   *int      `json:"review_count"`
	PriceLevel    string    `json:"price_level,omitempty"`
	Address       string    `json:"address,omitempty"`
	Locality      string    `json:"locality,omitempty"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	PlusCode      string    `json:"plus_code,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Website       string    `json:"website,omitempty"`
	GoogleMapsURL string    `json:"google_maps_url,omitempty"`
	PlaceID       string    `json:"place_id,omitempty"`
	Source        Source    `json:"source"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// Point returns the record coordinates as an orb point ([lng, lat]).
func (r BusinessRecord) Point() (orb.Point, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return orb.Point{}, false
	}
	return orb.Point{*r.Longitude, *r.Latitude}, true
}

// StartOptions holds the user-facing configuration of one session.
type StartOptions struct {
	MaxResults            int     `json:"maxResults"`
	DelayBetweenScrollsMs int     `json:"delayBetweenScrolls"`
	Profile               Profile `json:"profile"`
}

// ScrollDelay returns the inter-scroll delay as a duration.
func (o StartOptions) ScrollDelay() time.Duration {
	return time.Duration(o.DelayBetweenScrollsMs) * time.Millisecond
}

func (o StartOptions) Validate() error {
	if o.MaxResults < 1 {
		return fmt.Errorf("max results must be at least 1, got %d", o.MaxResults)
	}
	if o.DelayBetweenScrollsMs < 0 {
		return fmt.Errorf("scroll delay must not be negative, got %d", o.DelayBetweenScrollsMs)
	}
	if !o.Profile.Valid() {
		return fmt.Errorf("unknown profile %q", o.Profile)
	}
	return nil
}

// DefaultSettings mirrors the defaults a fresh install starts with.
func DefaultSettings() StartOptions {
	return StartOptions{
		MaxResults:            200,
		DelayBetweenScrollsMs: 1500,
		Profile:               ProfileMaps,
	}
}

// RunMetadata describes the last scrape session.
type RunMetadata struct {
	SessionID  string     `json:"session_id,omitempty"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Total      int        `json:"total"`
	Profile    Profile    `json:"profile,omitempty"`
	Status     Status     `json:"status,omitempty"`
	Error      string     `json:"error,omitempty"`
}
