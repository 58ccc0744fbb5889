package geoquery

import (
	"context"
	"fmt"

	"github.com/waymark-app/waymark/internal/availability"
	"github.com/waymark-app/waymark/internal/category"
	"github.com/waymark-app/waymark/internal/model"
)

// CreateRequest carries the caller-supplied fields for a new marker.
type CreateRequest struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Category      string  `json:"category"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	IsPublic      *bool   `json:"isPublic"`
	OpenTimeStart *string `json:"openTimeStart"`
	OpenTimeEnd   *string `json:"openTimeEnd"`
	MarkImage     string  `json:"markImage"`
}

// Create validates and persists a new marker. The category is
// normalized before persist, the open-time window is rejected when only
// one bound is set, and IsActive is recomputed immediately before the
// save. New markers start in PENDING review.
func (e *Engine) Create(ctx context.Context, username, userPublicID string, req CreateRequest) (*model.Marker, error) {
	if err := validLatLng(req.Lat, req.Lng); err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidArgument)
	}
	cat, err := category.NormalizeForWrite(req.Category)
	if err != nil {
		return nil, err
	}
	start, end, err := availability.NormalizeWindow(req.OpenTimeStart, req.OpenTimeEnd)
	if err != nil {
		return nil, err
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	m := &model.Marker{
		Lat:           req.Lat,
		Lng:           req.Lng,
		Category:      cat,
		Title:         req.Title,
		Description:   req.Description,
		IsPublic:      isPublic,
		ReviewStatus:  model.ReviewPending,
		OpenTimeStart: start,
		OpenTimeEnd:   end,

		Username:             username,
		UserPublicID:         userPublicID,
		LastEditedBy:         username,
		LastEditedByPublicID: userPublicID,
		LastEditedByOwner:    true,

		MarkImage: req.MarkImage,
	}
	availability.Apply(m, e.now())

	if err := e.markers.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Save persists a field rewrite on an existing marker, recomputing
// derived availability first so the stored IsActive never diverges
// from its window.
func (e *Engine) Save(ctx context.Context, m *model.Marker) error {
	availability.Apply(m, e.now())
	return e.markers.Save(ctx, m)
}
