// Package keys builds canonical cache keys for geospatial marker
// queries. Keys must be identical for semantically equal queries:
// coordinates are rounded to a fixed precision and category filter sets
// are sorted and deduplicated before they enter the key.
package keys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	nearbyPrefix   = "cache:marker:nearby:v1:"
	viewportPrefix = "cache:marker:viewport:v1:"

	// MinRadiusMeters and MaxRadiusMeters bound nearby queries; the
	// clamp applies both to key construction and query execution so
	// out-of-range requests share cache entries with the boundary.
	MinRadiusMeters = 1
	MaxRadiusMeters = 50000
)

// ClampRadius forces a radius into [MinRadiusMeters, MaxRadiusMeters].
func ClampRadius(radius int) int {
	if radius < MinRadiusMeters {
		return MinRadiusMeters
	}
	if radius > MaxRadiusMeters {
		return MaxRadiusMeters
	}
	return radius
}

// roundCoord formats a coordinate at 4 decimal places (~11 m), so float
// noise below that does not fragment the cache.
func roundCoord(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// Nearby returns the key for a radius-from-point query. The category is
// expected to be already normalized and the radius already clamped.
func Nearby(lat, lng float64, radiusMeters int, category string) string {
	return nearbyPrefix +
		"lat=" + roundCoord(lat) +
		"|lng=" + roundCoord(lng) +
		"|r=" + fmt.Sprintf("%d", radiusMeters) +
		"|c=" + category
}

// Viewport returns the key for a bounding-box query. Categories are
// expected to be already normalized; their order does not affect the
// key. An empty filter yields the literal "all" component.
func Viewport(minLat, maxLat, minLng, maxLng float64, categories []string) string {
	part := filterPart(categories)
	return viewportPrefix +
		"minLat=" + roundCoord(minLat) +
		"|maxLat=" + roundCoord(maxLat) +
		"|minLng=" + roundCoord(minLng) +
		"|maxLng=" + roundCoord(maxLng) +
		"|cat=" + part +
		fmt.Sprintf("|f=%016x", xxhash.Sum64String(part))
}

func filterPart(categories []string) string {
	if len(categories) == 0 {
		return "all"
	}
	uniq := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if seen[c] {
			continue
		}
		seen[c] = true
		uniq = append(uniq, c)
	}
	sort.Strings(uniq)
	return strings.Join(uniq, ",")
}
