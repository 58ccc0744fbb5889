// Package postgres implements the marker store on PostgreSQL with
// PostGIS providing the geodesic radius query.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/waymark-app/waymark/internal/model"
	"github.com/waymark-app/waymark/internal/store"
)

type MarkerStore struct {
	db *sql.DB
}

// Open connects to dsn and verifies connectivity.
func Open(ctx context.Context, dsn string) (*MarkerStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(32)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &MarkerStore{db: db}, nil
}

func (s *MarkerStore) Close() error { return s.db.Close() }

// DB exposes the underlying pool for collaborators that share it.
func (s *MarkerStore) DB() *sql.DB { return s.db }

// CheckGeoSupport probes for the PostGIS extension so a missing
// capability surfaces at startup as configuration, not per-request
// noise.
func (s *MarkerStore) CheckGeoSupport(ctx context.Context) error {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT extname FROM pg_extension WHERE extname = 'postgis'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrGeoSupportMissing
	}
	if err != nil {
		return fmt.Errorf("probe postgis: %w", err)
	}
	return nil
}

const markerColumns = `id, lat, lng, category, title, coalesce(description, ''),
	is_public, review_status, is_active, open_time_start, open_time_end,
	username, coalesce(user_public_id, ''), coalesce(last_edited_by, ''),
	coalesce(last_edited_by_public_id, ''), last_edited_by_owner,
	coalesce(mark_image, ''), created_at, updated_at`

func scanMarker(row interface{ Scan(...any) error }) (model.Marker, error) {
	var m model.Marker
	err := row.Scan(
		&m.ID, &m.Lat, &m.Lng, &m.Category, &m.Title, &m.Description,
		&m.IsPublic, &m.ReviewStatus, &m.IsActive, &m.OpenTimeStart, &m.OpenTimeEnd,
		&m.Username, &m.UserPublicID, &m.LastEditedBy,
		&m.LastEditedByPublicID, &m.LastEditedByOwner,
		&m.MarkImage, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

func (s *MarkerStore) queryMarkers(ctx context.Context, query string, args ...any) ([]model.Marker, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapGeoError(err)
	}
	defer rows.Close()

	var out []model.Marker
	for rows.Next() {
		m, err := scanMarker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan marker: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markers: %w", err)
	}
	return out, nil
}

// mapGeoError keeps a missing spatial capability distinguishable from
// generic query failures.
func mapGeoError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "st_dwithin") || strings.Contains(msg, "postgis") {
		return fmt.Errorf("%w: %v", store.ErrGeoSupportMissing, err)
	}
	return fmt.Errorf("query markers: %w", err)
}

func (s *MarkerStore) FindPublicApproved(ctx context.Context) ([]model.Marker, error) {
	return s.queryMarkers(ctx, `
		SELECT `+markerColumns+`
		FROM map_markers
		WHERE is_public = true AND review_status = 'APPROVED'
		ORDER BY id`)
}

func (s *MarkerStore) SearchTextPublicApproved(ctx context.Context, q string) ([]model.Marker, error) {
	pattern := "%" + q + "%"
	return s.queryMarkers(ctx, `
		SELECT `+markerColumns+`
		FROM map_markers
		WHERE is_public = true AND review_status = 'APPROVED'
		  AND (
			title ILIKE $1
			OR description ILIKE $1
			OR category ILIKE $1
			OR lat::text LIKE $2
			OR lng::text LIKE $2
		  )
		ORDER BY id`, pattern, pattern)
}

func (s *MarkerStore) FindNearPoint(ctx context.Context, lat, lng, eps float64) ([]model.Marker, error) {
	return s.queryMarkers(ctx, `
		SELECT `+markerColumns+`
		FROM map_markers
		WHERE is_public = true AND review_status = 'APPROVED'
		  AND abs(lat - $1) <= $3
		  AND abs(lng - $2) <= $3
		ORDER BY id`, lat, lng, eps)
}

func (s *MarkerStore) FindWithinRadius(ctx context.Context, lat, lng float64, radiusMeters int, category string) ([]model.Marker, error) {
	return s.queryMarkers(ctx, `
		SELECT `+markerColumns+`
		FROM map_markers
		WHERE is_public = true AND review_status = 'APPROVED'
		  AND category = $4
		  AND ST_DWithin(
			ST_SetSRID(ST_MakePoint(lng, lat), 4326)::geography,
			ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography,
			$3
		  )
		ORDER BY ST_Distance(
			ST_SetSRID(ST_MakePoint(lng, lat), 4326)::geography,
			ST_SetSRID(ST_MakePoint($2, $1), 4326)::geography
		) ASC`, lat, lng, radiusMeters, category)
}

func (s *MarkerStore) FindWithinBounds(ctx context.Context, minLat, maxLat, minLng, maxLng float64, categories []string) ([]model.Marker, error) {
	if len(categories) == 0 {
		return s.queryMarkers(ctx, `
			SELECT `+markerColumns+`
			FROM map_markers
			WHERE is_public = true AND review_status = 'APPROVED'
			  AND lat BETWEEN $1 AND $2
			  AND lng BETWEEN $3 AND $4
			ORDER BY id`, minLat, maxLat, minLng, maxLng)
	}
	return s.queryMarkers(ctx, `
		SELECT `+markerColumns+`
		FROM map_markers
		WHERE is_public = true AND review_status = 'APPROVED'
		  AND lat BETWEEN $1 AND $2
		  AND lng BETWEEN $3 AND $4
		  AND category = ANY($5)
		ORDER BY id`, minLat, maxLat, minLng, maxLng, pq.Array(categories))
}

func (s *MarkerStore) FindByID(ctx context.Context, id int64) (*model.Marker, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+markerColumns+`
		FROM map_markers WHERE id = $1`, id)
	m, err := scanMarker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find marker %d: %w", id, err)
	}
	return &m, nil
}

// Save inserts when the id is zero and updates otherwise, refreshing
// updated_at and backfilling id and timestamps on the marker.
func (s *MarkerStore) Save(ctx context.Context, m *model.Marker) error {
	if m.ID == 0 {
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO map_markers (
				lat, lng, category, title, description,
				is_public, review_status, is_active,
				open_time_start, open_time_end,
				username, user_public_id,
				last_edited_by, last_edited_by_public_id, last_edited_by_owner,
				mark_image, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			RETURNING id, created_at, updated_at`,
			m.Lat, m.Lng, m.Category, m.Title, m.Description,
			m.IsPublic, m.ReviewStatus, m.IsActive,
			m.OpenTimeStart, m.OpenTimeEnd,
			m.Username, nullable(m.UserPublicID),
			nullable(m.LastEditedBy), nullable(m.LastEditedByPublicID), m.LastEditedByOwner,
			nullable(m.MarkImage),
		).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert marker: %w", err)
		}
		return nil
	}

	err := s.db.QueryRowContext(ctx, `
		UPDATE map_markers SET
			lat = $2, lng = $3, category = $4, title = $5, description = $6,
			is_public = $7, review_status = $8, is_active = $9,
			open_time_start = $10, open_time_end = $11,
			last_edited_by = $12, last_edited_by_public_id = $13, last_edited_by_owner = $14,
			mark_image = $15, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Lat, m.Lng, m.Category, m.Title, m.Description,
		m.IsPublic, m.ReviewStatus, m.IsActive,
		m.OpenTimeStart, m.OpenTimeEnd,
		nullable(m.LastEditedBy), nullable(m.LastEditedByPublicID), m.LastEditedByOwner,
		nullable(m.MarkImage),
	).Scan(&m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update marker %d: %w", m.ID, err)
	}
	return nil
}

func (s *MarkerStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM map_markers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete marker %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
