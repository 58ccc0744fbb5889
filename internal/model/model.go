// Package model defines core domain types shared across the service.
package model

import "time"

// Review states a marker moves through before it is publicly visible.
const (
	ReviewPending  = "PENDING"
	ReviewApproved = "APPROVED"
	ReviewRejected = "REJECTED"
)

// Marker is a geolocated point of interest. IsActive is derived from the
// open-time window and must be recomputed whenever a marker is loaded or
// saved; the stored value exists only for query-time filtering.
type Marker struct {
	ID          int64   `json:"id"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Category    string  `json:"category"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`

	IsPublic     bool   `json:"isPublic"`
	ReviewStatus string `json:"reviewStatus"`

	IsActive      bool    `json:"isActive"`
	OpenTimeStart *string `json:"openTimeStart,omitempty"`
	OpenTimeEnd   *string `json:"openTimeEnd,omitempty"`

	Username             string `json:"username"`
	UserPublicID         string `json:"userPublicId,omitempty"`
	LastEditedBy         string `json:"lastEditedBy,omitempty"`
	LastEditedByPublicID string `json:"lastEditedByPublicId,omitempty"`
	LastEditedByOwner    bool   `json:"lastEditedByOwner"`

	MarkImage string `json:"markImage,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicVisible reports whether the marker qualifies for public query
// results.
func (m *Marker) PublicVisible() bool {
	return m.IsPublic && m.ReviewStatus == ReviewApproved
}
