package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/rendis/leadtap/internal/model"
)

func ptr[T any](v T) *T { return &v }

func sampleRecords() []model.BusinessRecord {
	return []model.BusinessRecord{
		{
			Name:          `Café, "Best" spot`,
			Category:      "Coffee shop",
			Rating:        ptr(4.5),
			ReviewCount:   ptr(123),
			Address:       "1 Main St, Springfield, IL",
			Locality:      "Springfield",
			Latitude:      ptr(40.7128),
			Longitude:     ptr(-74.006),
			GoogleMapsURL: "https://www.google.com/maps/place/Cafe/@40.7128,-74.006,17z",
			Source:        model.SourceMaps,
			ScrapedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			Name:   "Plain Shop",
			Phone:  "555-0100",
			Source: model.SourceDirectory,
		},
	}
}

// TestCSV_QuotesSpecialFields checks header order and quoting of commas and quotes.
func TestCSV_QuotesSpecialFields(t *testing.T) {
	t.Parallel()

	out, err := CSV(sampleRecords())
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}

	wantHeader := "Name,Category,Rating,Review Count,Price Level,Address,Locality,Phone,Website,Google Maps URL,Place ID,Plus Code,Latitude,Longitude,Source,Scraped At"
	if lines[0] != wantHeader {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `"Café, ""Best"" spot",Coffee shop,4.5,123,,"1 Main St, Springfield, IL",Springfield,`) {
		t.Errorf("row = %q", lines[1])
	}
	if !strings.HasSuffix(lines[1], ",40.7128,-74.006,google-maps,2024-03-01T12:00:00Z") {
		t.Errorf("row tail = %q", lines[1])
	}
	if lines[2] != "Plain Shop,,,,,,,555-0100,,,,,,,generic-directory," {
		t.Errorf("sparse row = %q", lines[2])
	}
}

// TestCSV_Empty checks that no records produce no output at all.
func TestCSV_Empty(t *testing.T) {
	t.Parallel()

	out, err := CSV(nil)
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("CSV(nil) = %q, want empty", out)
	}
}

// TestJSON_Indented checks the two-space layout and null for absent numbers.
func TestJSON_Indented(t *testing.T) {
	t.Parallel()

	out, err := JSON(sampleRecords()[1:])
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.HasPrefix(string(out), "[\n  {\n    \"name\": \"Plain Shop\"") {
		t.Errorf("unexpected layout:\n%s", out)
	}
	if !strings.Contains(string(out), `"rating": null`) {
		t.Errorf("absent rating not null:\n%s", out)
	}

	empty, err := JSON(nil)
	if err != nil {
		t.Fatalf("JSON(nil): %v", err)
	}
	if string(empty) != "[]" {
		t.Errorf("JSON(nil) = %q, want []", empty)
	}
}

// TestGeoJSON_SkipsRecordsWithoutCoordinates checks that only located records
// become features.
func TestGeoJSON_SkipsRecordsWithoutCoordinates(t *testing.T) {
	t.Parallel()

	out, err := GeoJSON(sampleRecords())
	if err != nil {
		t.Fatalf("GeoJSON: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(out)
	if err != nil {
		t.Fatalf("UnmarshalFeatureCollection: %v", err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("got %d features, want 1", len(fc.Features))
	}
	f := fc.Features[0]
	if got := f.Properties.MustString("name"); got != `Café, "Best" spot` {
		t.Errorf("name = %q", got)
	}
	pt := f.Point()
	if pt[0] != -74.006 || pt[1] != 40.7128 {
		t.Errorf("point = %v, want [lng lat]", pt)
	}
}

// TestWrite_Dispatch checks format dispatch and ParseFormat.
func TestWrite_Dispatch(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"csv", "JSON", " geojson "} {
		f, err := ParseFormat(name)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", name, err)
		}
		var buf bytes.Buffer
		if err := Write(&buf, f, sampleRecords()); err != nil {
			t.Fatalf("Write(%s): %v", f, err)
		}
		if buf.Len() == 0 {
			t.Errorf("Write(%s) wrote nothing", f)
		}
		if f != FormatCSV && !json.Valid(buf.Bytes()) {
			t.Errorf("Write(%s) produced invalid json", f)
		}
	}

	if _, err := ParseFormat("xlsx"); err == nil {
		t.Error("ParseFormat accepted xlsx")
	}
	if got := DefaultFilename(FormatCSV); got != "business-leads.csv" {
		t.Errorf("DefaultFilename = %q", got)
	}
}
