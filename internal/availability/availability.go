// Package availability derives a marker's open/closed state from its
// daily open-time window.
package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/waymark-app/waymark/internal/model"
)

var (
	// ErrInvalidTimeFormat reports a window bound that does not parse
	// as "HH:MM".
	ErrInvalidTimeFormat = errors.New("invalid time format, expected HH:MM")
	// ErrMismatchedWindow reports a window with exactly one bound set.
	ErrMismatchedWindow = errors.New("open time window requires both bounds or neither")
)

const clockLayout = "15:04"

// NormalizeWindow parses and canonicalizes the two window bounds.
// Blank or nil bounds normalize to nil; valid outcomes are both-nil
// (always open) and both-set. Values are truncated to minute precision.
func NormalizeWindow(start, end *string) (*string, *string, error) {
	ns, err := normalizeClock(start)
	if err != nil {
		return nil, nil, err
	}
	ne, err := normalizeClock(end)
	if err != nil {
		return nil, nil, err
	}
	if (ns == nil) != (ne == nil) {
		return nil, nil, ErrMismatchedWindow
	}
	return ns, ne, nil
}

func normalizeClock(v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		// Accept seconds on input, drop them on output.
		t, err = time.Parse("15:04:05", s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
		}
	}
	out := t.Format(clockLayout)
	return &out, nil
}

// IsActive reports whether a window is open at the wall-clock time of
// now. An unset or blank bound means always open; start == end is a
// degenerate full-day window; start > end wraps past midnight.
func IsActive(start, end *string, now time.Time) bool {
	s, ok := clockMinutes(start)
	if !ok {
		return true
	}
	e, ok := clockMinutes(end)
	if !ok {
		return true
	}
	n := now.Hour()*60 + now.Minute()
	switch {
	case s == e:
		return true
	case s < e:
		return n >= s && n < e
	default:
		return n >= s || n < e
	}
}

func clockMinutes(v *string) (int, bool) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return 0, false
	}
	t, err := time.Parse(clockLayout, strings.TrimSpace(*v))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Apply recomputes the marker's derived IsActive field. Called at every
// read boundary and immediately before every persisted write; a loaded
// IsActive value is never trusted.
func Apply(m *model.Marker, now time.Time) {
	if m == nil {
		return
	}
	m.IsActive = IsActive(m.OpenTimeStart, m.OpenTimeEnd, now)
}
