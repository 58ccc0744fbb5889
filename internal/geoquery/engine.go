// Package geoquery executes the marker read query shapes against the
// persistence collaborator, applying category normalization, derived
// availability and the cache-aside layer.
package geoquery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/waymark-app/waymark/internal/availability"
	"github.com/waymark-app/waymark/internal/cache/keys"
	"github.com/waymark-app/waymark/internal/cache/querycache"
	"github.com/waymark-app/waymark/internal/category"
	"github.com/waymark-app/waymark/internal/model"
	"github.com/waymark-app/waymark/internal/store"
)

// ErrInvalidArgument reports malformed or out-of-range coordinates and
// bounds. Surfaced synchronously; the request has no partial effect.
var ErrInvalidArgument = errors.New("invalid argument")

// coordEps is the proximity window (degrees, ~15 m) unioned into text
// search when the query parses as a coordinate pair.
const coordEps = 0.00015

type Config struct {
	NearbyTTL   time.Duration
	ViewportTTL time.Duration
}

type Engine struct {
	markers     store.Markers
	cache       *querycache.Store
	nearbyTTL   time.Duration
	viewportTTL time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

func New(markers store.Markers, cache *querycache.Store, cfg Config, log zerolog.Logger) *Engine {
	return &Engine{
		markers:     markers,
		cache:       cache,
		nearbyTTL:   querycache.ClampTTL(cfg.NearbyTTL),
		viewportTTL: querycache.ClampTTL(cfg.ViewportTTL),
		log:         log,
		now:         time.Now,
	}
}

// WithClock replaces the engine's time source; tests pin availability
// computation with it.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// normalizeForRead coerces categories into the supported set and
// recomputes derived availability on every returned marker. Idempotent,
// so re-running it over a cached (already normalized) payload is a
// no-op beyond the availability refresh.
func (e *Engine) normalizeForRead(markers []model.Marker) []model.Marker {
	now := e.now()
	for i := range markers {
		category.NormalizeForRead(&markers[i])
		availability.Apply(&markers[i], now)
	}
	return markers
}

// cachedLookup is the single point where the degrade policy maps a
// StoreError to a miss.
func (e *Engine) cachedLookup(ctx context.Context, key string) ([]model.Marker, bool) {
	markers, outcome := e.cache.Lookup(ctx, key)
	switch outcome {
	case querycache.Hit:
		return markers, true
	case querycache.StoreError:
		e.log.Debug().Str("key", key).Msg("cache unavailable, treating as miss")
		return nil, false
	default:
		return nil, false
	}
}

// ListPublicActive returns every publicly visible marker, normalized
// for read. Deliberately uncached: a cheap, always-fresh listing.
func (e *Engine) ListPublicActive(ctx context.Context) ([]model.Marker, error) {
	markers, err := e.markers.FindPublicApproved(ctx)
	if err != nil {
		return nil, err
	}
	return e.normalizeForRead(markers), nil
}

// Search performs a case-insensitive substring match across title,
// description, category and the textual coordinate forms. When the
// query itself parses as a lat/lng pair, a small-epsilon proximity
// match is unioned in by marker id; text matches come first, then
// newly added proximity matches, each in store-returned order.
func (e *Engine) Search(ctx context.Context, q string) ([]model.Marker, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []model.Marker{}, nil
	}

	matches, err := e.markers.SearchTextPublicApproved(ctx, q)
	if err != nil {
		return nil, err
	}

	merged := matches
	seen := make(map[int64]bool, len(matches))
	for _, m := range matches {
		seen[m.ID] = true
	}

	if lat, lng, ok := parseLatLng(q); ok {
		near, err := e.markers.FindNearPoint(ctx, lat, lng, coordEps)
		if err != nil {
			return nil, err
		}
		for _, m := range near {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			merged = append(merged, m)
		}
	}

	return e.normalizeForRead(merged), nil
}

// Nearby returns markers of category within radiusMeters of the point,
// ordered by ascending distance, through the cache.
func (e *Engine) Nearby(ctx context.Context, lat, lng float64, radiusMeters int, rawCategory string) ([]model.Marker, error) {
	if err := validLatLng(lat, lng); err != nil {
		return nil, err
	}
	cat, err := category.NormalizeForWrite(rawCategory)
	if err != nil {
		return nil, err
	}
	radius := keys.ClampRadius(radiusMeters)

	key := keys.Nearby(lat, lng, radius, cat)
	if cached, ok := e.cachedLookup(ctx, key); ok {
		return e.normalizeForRead(cached), nil
	}

	markers, err := e.markers.FindWithinRadius(ctx, lat, lng, radius, cat)
	if err != nil {
		return nil, err
	}
	result := e.normalizeForRead(markers)
	if result == nil {
		result = []model.Marker{}
	}
	e.cache.Put(ctx, key, result, e.nearbyTTL)
	return result, nil
}

// Viewport returns markers inside the bounding box, optionally
// filtered by a normalized category set, through the cache.
func (e *Engine) Viewport(ctx context.Context, minLat, maxLat, minLng, maxLng float64, rawCategories []string) ([]model.Marker, error) {
	if minLat > maxLat || minLng > maxLng {
		return nil, fmt.Errorf("%w: min bound exceeds max bound", ErrInvalidArgument)
	}
	if minLat < -90 || maxLat > 90 || minLng < -180 || maxLng > 180 {
		return nil, fmt.Errorf("%w: bounds outside valid lat/lng ranges", ErrInvalidArgument)
	}

	categories := make([]string, 0, len(rawCategories))
	for _, raw := range rawCategories {
		c, err := category.NormalizeForWrite(raw)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	key := keys.Viewport(minLat, maxLat, minLng, maxLng, categories)
	if cached, ok := e.cachedLookup(ctx, key); ok {
		return e.normalizeForRead(cached), nil
	}

	markers, err := e.markers.FindWithinBounds(ctx, minLat, maxLat, minLng, maxLng, categories)
	if err != nil {
		return nil, err
	}
	result := e.normalizeForRead(markers)
	if result == nil {
		result = []model.Marker{}
	}
	e.cache.Put(ctx, key, result, e.viewportTTL)
	return result, nil
}

func validLatLng(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: lat/lng out of range", ErrInvalidArgument)
	}
	return nil
}

// parseLatLng accepts "59.33, 18.06" style pairs separated by a comma
// and/or whitespace.
func parseLatLng(q string) (lat, lng float64, ok bool) {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err = strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lat, lng, true
}
