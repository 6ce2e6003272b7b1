// Package directory extracts listings from generic business-directory pages
// using a fixed set of markup heuristics.
package directory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rendis/leadtap/internal/engine/dom"
	"github.com/rendis/leadtap/internal/engine/probe"
	"github.com/rendis/leadtap/internal/engine/scraper"
	"github.com/rendis/leadtap/internal/model"
)

func init() {
	scraper.Register(model.ProfileListing, func(page dom.Page, opts scraper.Options) scraper.Extractor {
		return New(page, opts)
	})
}

// Selector heuristics, most specific first.
var (
	containerSelectors = []string{
		`[class*="listing"]`,
		`[class*="result"]`,
		`[class*="business"]`,
		`[class*="card"]`,
		`article`,
		`[itemtype*="LocalBusiness"]`,
	}
	nameSelectors = []string{
		`[itemprop="name"]`,
		`.business-name`,
		`.listing-name`,
		`.title`,
		`h2`,
		`h3`,
		`h4`,
	}
	addressSelectors = []string{
		`[itemprop="address"]`,
		`.address`,
		`.location`,
		`[class*="address"]`,
	}
	phoneSelectors = []string{
		`[itemprop="telephone"]`,
		`a[href^="tel:"]`,
		`.phone`,
		`[class*="phone"]`,
	}
	websiteSelectors = []string{
		`[itemprop="url"]`,
		`a[href^="http"]`,
		`.website`,
		`[class*="website"]`,
	}
	ratingSelectors = []string{
		`[itemprop="ratingValue"]`,
		`.rating`,
		`[class*="rating"]`,
		`[class*="star"]`,
	}
	categorySelectors = []string{
		`[itemprop="category"]`,
		`.category`,
		`[class*="category"]`,
		`[class*="type"]`,
	}
)

// Scraper walks static listing containers in a single pass.
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
		log:   opts.Logger.With(zap.String("profile", string(model.ProfileListing))),
	}
}

func (s *Scraper) Stop() { s.token.Stop() }

func (s *Scraper) Start(ctx context.Context) ([]model.BusinessRecord, error) {
	containers := s.findContainers()
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w: try the google-maps profile instead", scraper.ErrNoListings)
	}
	s.log.Info("listing containers found", zap.Int("containers", len(containers)))

	var records []model.BusinessRecord
	for _, c := range containers {
		if s.token.Stopped() || len(records) >= s.opts.MaxResults {
			break
		}

		if rec, ok := s.extract(c); ok {
			records = append(records, rec)
			s.opts.OnProgress(len(records))
		}

		if err := probe.Sleep(ctx, s.opts.Timings.Yield); err != nil {
			return records, err
		}
	}
	return records, nil
}

// findContainers returns every element matching any container heuristic,
// once each, in document order.
func (s *Scraper) findContainers() []dom.Element {
	seen := make(map[string]bool)
	var out []dom.Element
	for _, el := range s.page.FindAll(strings.Join(containerSelectors, ", ")) {
		if seen[el.Key()] {
			continue
		}
		seen[el.Key()] = true
		out = append(out, el)
	}
	return out
}

func (s *Scraper) extract(c dom.Element) (model.BusinessRecord, bool) {
	name, ok := probe.FirstText(c, nameSelectors)
	if !ok {
		return model.BusinessRecord{}, false
	}

	rec := model.BusinessRecord{
		Name:      name,
		Source:    model.SourceDirectory,
		ScrapedAt: s.opts.Now().UTC(),
	}
	rec.Address, _ = probe.FirstText(c, addressSelectors)
	rec.Category, _ = probe.FirstText(c, categorySelectors)
	if text, ok := probe.FirstText(c, ratingSelectors); ok {
		if r, ok := probe.ParseRating(text); ok {
			rec.Rating = &r
		}
	}

	if el, ok := probe.FirstElement(c, phoneSelectors); ok {
		href, _ := el.Attr("href")
		if phone, ok := probe.ParsePhoneFromLink(href); ok {
			rec.Phone = phone
		} else {
			rec.Phone, _ = el.Text()
		}
	}

	if el, ok := probe.FirstElement(c, websiteSelectors); ok {
		// mailto:, tel: and relative links are noise here.
		if href, ok := el.Attr("href"); ok && strings.HasPrefix(href, "http") {
			rec.Website = href
		}
	}

	return rec, true
}
