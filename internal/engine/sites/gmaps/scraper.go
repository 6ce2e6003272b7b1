// Package gmaps extracts listings from a Google Maps search results page by
// scrolling the results feed for detail links and then opening each detail
// panel in turn.
package gmaps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rendis/leadtap/internal/engine/dom"
	"github.com/rendis/leadtap/internal/engine/probe"
	"github.com/rendis/leadtap/internal/engine/scraper"
	"github.com/rendis/leadtap/internal/model"
)

func init() {
	scraper.Register(model.ProfileMaps, func(page dom.Page, opts scraper.Options) scraper.Extractor {
		return New(page, opts)
	})
}

var (
	// ErrNotMapsPage is returned when the tab is not on Google Maps at all.
	ErrNotMapsPage = errors.New("not on a Google Maps page, navigate to Google Maps search results")
	// ErrNoResultsContainer is returned when the results feed never renders.
	ErrNoResultsContainer = errors.New("could not find the Google Maps results container, make sure you are on a search results page")

	errLinkGone = errors.New("listing link no longer on page")
)

// Selectors for the Maps DOM. Google changes these without notice.
const (
	selResultsContainer = `div[role="feed"]`
	selResultCard       = `div[role="feed"] > div > div[jsaction]`
	selCardLink         = `a[href*="/maps/place/"]`

	selDetailName     = `h1.DUwDvf`
	selDetailCategory = `button[jsaction*="category"]`
	selDetailAddress  = `button[data-item-id="address"] .Io6YTe.fontBodyMedium`
	selDetailPhone    = `button[data-item-id^="phone:tel:"] .Io6YTe.fontBodyMedium`
	selDetailWebsite  = `a[data-item-id="authority"]`
	selDetailPlusCode = `button[data-item-id="oloc"] .Io6YTe.fontBodyMedium`
	selDetailRating   = `span[role="img"][aria-label*="stars"]`
	selDetailReviews  = `span[role="img"][aria-label*="reviews"]`
	selDetailPrice    = `span[aria-label*="Price"]`
	selBackButton     = `button[aria-label*="Back"]`
)

// IsMapsURL reports whether rawURL points at Google Maps.
func IsMapsURL(rawURL string) bool {
	host, path := splitURL(rawURL)
	return strings.Contains(host, "google.com") && strings.Contains(path, "/maps")
}

// Scraper is the two-phase Maps extractor.
type Scraper struct {
	page  dom.Page
	opts  scraper.Options
	token *scraper.Token
	log   *zap.Logger
}

func New(page dom.Page, opts scraper.Options) *Scraper {
	opts = opts.Normalize()
	return &Scraper{
		page:  page,
		opts:  opts,
		token: scraper.NewToken(),
		log:   opts.Logger.With(zap.String("profile", string(model.ProfileMaps))),
	}
}

func (s *Scraper) Stop() { s.token.Stop() }

func (s *Scraper) Start(ctx context.Context) ([]model.BusinessRecord, error) {
	if !IsMapsURL(s.page.URL()) {
		return nil, ErrNotMapsPage
	}

	container, ok := probe.WaitForElement(ctx, s.page, selResultsContainer, s.opts.Timings.ContainerTimeout)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoResultsContainer
	}

	links, err := s.collectLinks(ctx, container)
	if err != nil {
		return nil, err
	}
	if s.token.Stopped() {
		return nil, nil
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: the results feed has no listing links", scraper.ErrNoListings)
	}
	s.log.Info("listing links collected", zap.Int("links", len(links)))

	return s.extractDetails(ctx, links)
}

// collectLinks scrolls the results feed and gathers unique detail links in
// discovery order until the cap, the end of the feed, or the stall limit.
func (s *Scraper) collectLinks(ctx context.Context, container dom.Element) ([]string, error) {
	var links []string
	seen := make(map[string]bool)
	stalls := 0

	for !s.token.Stopped() && len(links) < s.opts.MaxResults {
		added := 0
		for _, card := range s.page.FindAll(selResultCard) {
			if len(links) >= s.opts.MaxResults {
				break
			}
			link, ok := dom.First(card.FindAll(selCardLink))
			if !ok {
				continue
			}
			href, ok := link.Attr("href")
			if !ok || href == "" || seen[href] {
				continue
			}
			seen[href] = true
			links = append(links, href)
			added++
		}

		if added == 0 {
			stalls++
			if stalls >= s.opts.Timings.StallLimit {
				break
			}
		} else {
			stalls = 0
		}

		if len(links) >= s.opts.MaxResults || s.token.Stopped() {
			break
		}

		if err := probe.ScrollContainer(container, s.opts.Timings.ScrollStep); err != nil {
			s.log.Debug("scroll request failed", zap.Error(err))
		}
		if err := probe.Sleep(ctx, s.opts.ScrollDelay); err != nil {
			return nil, err
		}
		if probe.IsAtBottom(container, probe.DefaultBottomThreshold) {
			break
		}
	}

	if len(links) > s.opts.MaxResults {
		links = links[:s.opts.MaxResults]
	}
	return links, nil
}

func (s *Scraper) extractDetails(ctx context.Context, links []string) ([]model.BusinessRecord, error) {
	var records []model.BusinessRecord

	for _, link := range links {
		if s.token.Stopped() {
			break
		}

		rec, ok, err := s.visit(ctx, link)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return records, ctxErr
			}
			s.log.Warn("listing skipped", zap.String("url", link), zap.Error(err))
			continue
		}
		if !ok {
			s.log.Debug("listing without name skipped", zap.String("url", link))
			continue
		}

		records = append(records, rec)
		s.opts.OnProgress(len(records))
	}

	return records, nil
}

// visit opens the detail panel for link, reads it and navigates back.
func (s *Scraper) visit(ctx context.Context, link string) (model.BusinessRecord, bool, error) {
	el, ok := dom.First(s.page.FindAll(`a[href="` + cssString(link) + `"]`))
	if !ok {
		return model.BusinessRecord{}, false, errLinkGone
	}
	if err := el.Click(); err != nil {
		return model.BusinessRecord{}, false, fmt.Errorf("open listing: %w", err)
	}
	if err := probe.Sleep(ctx, s.opts.Timings.SettleDelay); err != nil {
		return model.BusinessRecord{}, false, err
	}

	rec, ok := s.readDetail(ctx, link)

	if back, found := dom.First(s.page.FindAll(selBackButton)); found {
		if err := back.Click(); err != nil {
			s.log.Debug("back button click failed", zap.Error(err))
		}
		if err := probe.Sleep(ctx, s.opts.Timings.BackDelay); err != nil {
			return rec, ok, err
		}
	}
	return rec, ok, nil
}

// readDetail reads the open detail panel. ok is false when the panel has no name.
func (s *Scraper) readDetail(ctx context.Context, link string) (model.BusinessRecord, bool) {
	probe.WaitForElement(ctx, s.page, selDetailName, s.opts.Timings.DetailTimeout)

	name := probe.PageText(s.page, selDetailName)
	if name == "" {
		return model.BusinessRecord{}, false
	}

	rec := model.BusinessRecord{
		Name:          name,
		Category:      probe.PageText(s.page, selDetailCategory),
		Address:       probe.PageText(s.page, selDetailAddress),
		Phone:         probe.PageText(s.page, selDetailPhone),
		Website:       probe.PageAttr(s.page, selDetailWebsite, "href"),
		PlusCode:      probe.PageText(s.page, selDetailPlusCode),
		PriceLevel:    probe.PageAttr(s.page, selDetailPrice, "aria-label"),
		GoogleMapsURL: link,
		PlaceID:       ParsePlaceID(link),
		Source:        model.SourceMaps,
		ScrapedAt:     s.opts.Now().UTC(),
	}
	if r, ok := probe.ParseRating(probe.PageAttr(s.page, selDetailRating, "aria-label")); ok {
		rec.Rating = &r
	}
	if n, ok := probe.ParseReviewCount(probe.PageAttr(s.page, selDetailReviews, "aria-label")); ok {
		rec.ReviewCount = &n
	}
	if lat, lng, ok := ParseCoordinates(link); ok {
		rec.Latitude, rec.Longitude = &lat, &lng
	}
	rec.Locality = Locality(rec.Address)

	return rec, true
}
