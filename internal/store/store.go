// Package store defines the persistence collaborator consumed by the
// query engine. Implementations own marker rows; the engine only reads
// them and occasionally rewrites individual fields before a save.
package store

import (
	"context"
	"errors"

	"github.com/waymark-app/waymark/internal/model"
)

var (
	// ErrNotFound reports a missing marker id.
	ErrNotFound = errors.New("marker not found")
	// ErrGeoSupportMissing reports that the underlying store lacks the
	// spatial query capability (e.g. the PostGIS extension is not
	// installed). This is an operational misconfiguration, not bad
	// input, and is kept distinguishable from generic failures.
	ErrGeoSupportMissing = errors.New("spatial query support missing in store")
)

// Markers is the marker persistence interface. All public* queries are
// restricted to isPublic == true && reviewStatus == APPROVED rows.
type Markers interface {
	// FindPublicApproved lists every publicly visible marker.
	FindPublicApproved(ctx context.Context) ([]model.Marker, error)

	// SearchTextPublicApproved matches q case-insensitively against
	// title, description, category and the textual lat/lng forms.
	SearchTextPublicApproved(ctx context.Context, q string) ([]model.Marker, error)

	// FindNearPoint returns markers within eps degrees of (lat, lng)
	// on both axes.
	FindNearPoint(ctx context.Context, lat, lng, eps float64) ([]model.Marker, error)

	// FindWithinRadius returns markers of category within radiusMeters
	// geodesic meters of (lat, lng), ordered by ascending distance.
	FindWithinRadius(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]model.Marker, error)

	// FindWithinBounds returns markers inside the bounding box,
	// optionally restricted to the given category set.
	FindWithinBounds(ctx context.Context, minLat, maxLat, minLng, maxLng float64, categories []string) ([]model.Marker, error)

	FindByID(ctx context.Context, id int64) (*model.Marker, error)
	Save(ctx context.Context, m *model.Marker) error
	Delete(ctx context.Context, id int64) error
}
