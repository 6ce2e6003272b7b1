// Package export renders business records as CSV, JSON or GeoJSON.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/rendis/leadtap/internal/model"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatGeoJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (csv, json, geojson)", s)
	}
}

// DefaultFilename is the download name used for f.
func DefaultFilename(f Format) string {
	return "business-leads." + string(f)
}

var csvHeader = []string{
	"Name", "Category", "Rating", "Review Count", "Price Level",
	"Address", "Locality", "Phone", "Website", "Google Maps URL",
	"Place ID", "Plus Code", "Latitude", "Longitude", "Source", "Scraped At",
}

// CSV renders records with a header row. Zero records render as empty output.
func CSV(records []model.BusinessRecord) ([]byte, error) {
	if len(records) == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(csvRow(r)); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

func csvRow(r model.BusinessRecord) []string {
	return []string{
		r.Name,
		r.Category,
		formatFloat(r.Rating),
		formatInt(r.ReviewCount),
		r.PriceLevel,
		r.Address,
		r.Locality,
		r.Phone,
		r.Website,
		r.GoogleMapsURL,
		r.PlaceID,
		r.PlusCode,
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
		string(r.Source),
		formatTime(r.ScrapedAt),
	}
}

// JSON renders records as a 2-space indented array.
func JSON(records []model.BusinessRecord) ([]byte, error) {
	if records == nil {
		records = []model.BusinessRecord{}
	}
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding json: %w", err)
	}
	return out, nil
}

// GeoJSON renders a feature collection of the records that carry
// coordinates. Records without coordinates are left out.
func GeoJSON(records []model.BusinessRecord) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		pt, ok := r.Point()
		if !ok {
			continue
		}
		f := geojson.NewFeature(pt)
		f.Properties["name"] = r.Name
		setIf(f.Properties, "category", r.Category)
		setIf(f.Properties, "address", r.Address)
		setIf(f.Properties, "phone", r.Phone)
		setIf(f.Properties, "website", r.Website)
		setIf(f.Properties, "google_maps_url", r.GoogleMapsURL)
		setIf(f.Properties, "place_id", r.PlaceID)
		if r.Rating != nil {
			f.Properties["rating"] = *r.Rating
		}
		if r.ReviewCount != nil {
			f.Properties["review_count"] = *r.ReviewCount
		}
		f.Properties["source"] = string(r.Source)
		fc.Append(f)
	}

	raw, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding geojson: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("indenting geojson: %w", err)
	}
	return buf.Bytes(), nil
}

// Write renders records in format f to w.
func Write(w io.Writer, f Format, records []model.BusinessRecord) error {
	var (
		out []byte
		err error
	)
	switch f {
	case FormatCSV:
		out, err = CSV(records)
	case FormatJSON:
		out, err = JSON(records)
	case FormatGeoJSON:
		out, err = GeoJSON(records)
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func setIf(props geojson.Properties, key, value string) {
	if value != "" {
		props[key] = value
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
