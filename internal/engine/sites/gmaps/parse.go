package gmaps

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	coordsRe  = regexp.MustCompile(`@(-?\d+\.\d+),(-?\d+\.\d+)`)
	placeIDRe = regexp.MustCompile(`!1s([^!]+)`)
)

// ParseCoordinates reads the "@lat,lng" pair embedded in a Maps URL.
func ParseCoordinates(link string) (lat, lng float64, ok bool) {
	m := coordsRe.FindStringSubmatch(link)
	if m == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// ParsePlaceID reads the "!1s<id>" token embedded in a Maps URL.
func ParsePlaceID(link string) string {
	m := placeIDRe.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

// Locality takes the second-to-last comma separated part of address.
// This matches US-style "street, city, state zip" and nothing more.
func Locality(address string) string {
	parts := strings.Split(address, ",")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-2])
}

func splitURL(rawURL string) (host, path string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", ""
	}
	return u.Hostname(), u.Path
}

// cssString escapes s for use inside a double-quoted CSS attribute value.
func cssString(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
