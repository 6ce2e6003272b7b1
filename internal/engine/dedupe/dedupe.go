// Package dedupe folds scraped records by identity.
//
// Identity is a composite key built from normalized copies of the record's
// fields. The stored field values are never modified.
package dedupe

import (
	"encoding/json"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rendis/leadtap/internal/model"
)

var (
	folder     = cases.Fold()
	phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// normalize case-folds s, strips combining marks and punctuation, and
// collapses runs of whitespace.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, folder.String(s))
	if err != nil {
		folded = folder.String(s)
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone drops common formatting characters from a phone number.
func NormalizePhone(phone string) string {
	return phoneNoise.Replace(phone)
}

// Key returns the identity key of r.
//
// Preference: page identifier (maps URL, else place id) + name, then
// name + address, then name + phone. Records that cannot form a two-part key
// are keyed by their full serialized content so they are never collapsed by
// accident.
func Key(r model.BusinessRecord) string {
	name := normalize(r.Name)

	uid := normalize(r.GoogleMapsURL)
	if uid == "" {
		uid = normalize(r.PlaceID)
	}

	if name != "" {
		if uid != "" {
			return "id:" + uid + "|" + name
		}
		if addr := normalize(r.Address); addr != "" {
			return "addr:" + name + "|" + addr
		}
		if phone := normalize(NormalizePhone(r.Phone)); phone != "" {
			return "tel:" + name + "|" + phone
		}
	}

	raw, err := json.Marshal(r)
	if err != nil {
		return "raw:" + r.Name + "|" + r.ScrapedAt.String()
	}
	return "raw:" + string(raw)
}

// Records returns records with later duplicates removed. The first record
// seen under each key is kept as is; order of survivors is preserved.
func Records(records []model.BusinessRecord) []model.BusinessRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.BusinessRecord, 0, len(records))
	for _, r := range records {
		k := Key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// AreDuplicates reports whether a and b share an identity key.
func AreDuplicates(a, b model.BusinessRecord) bool {
	return Key(a) == Key(b)
}

// Merge appends incoming to existing and deduplicates the result, so existing
// records win over incoming ones.
func Merge(existing, incoming []model.BusinessRecord) []model.BusinessRecord {
	combined := make([]model.BusinessRecord, 0, len(existing)+len(incoming))
	combined = append(combined, existing...)
	combined = append(combined, incoming...)
	return Records(combined)
}
