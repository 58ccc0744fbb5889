// Package category canonicalizes marker category identifiers.
//
// The taxonomy has migrated over time: a pair of legacy values survives in
// old rows and client payloads and is silently remapped to its current
// replacement. Unknown values are rejected on the write path and coerced
// to the fallback on the read path so malformed rows never break reads.
package category

import (
	"fmt"
	"sort"
	"strings"

	"github.com/waymark-app/waymark/internal/model"
)

// Fallback is the category assigned on read to any stored value that is
// no longer part of the supported set.
const Fallback = "self_definition"

var supported = map[string]bool{
	"accessible_toilet":  true,
	"friendly_clinic":    true,
	"conversion_therapy": true,
	"self_definition":    true,
}

// Values retained in pre-migration data; both collapsed into
// self_definition when the taxonomy was reworked.
var legacy = map[string]string{
	"safe_place":      Fallback,
	"dangerous_place": Fallback,
}

// InvalidError reports an unsupported category token on the write path.
type InvalidError struct {
	Value string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("unsupported category %q, supported: %s", e.Value, strings.Join(Supported(), ", "))
}

// Supported returns the current category set in stable order.
func Supported() []string {
	out := make([]string, 0, len(supported))
	for c := range supported {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// NormalizeForWrite canonicalizes a caller-supplied category. Legacy
// aliases map to their replacement; anything outside the supported set
// fails with *InvalidError. Every category must pass through here before
// it is persisted.
func NormalizeForWrite(raw string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if repl, ok := legacy[norm]; ok {
		return repl, nil
	}
	if supported[norm] {
		return norm, nil
	}
	return "", &InvalidError{Value: raw}
}

// NormalizeForRead coerces the marker's stored category into the
// supported set, falling back rather than failing. Mutates the in-memory
// marker only; nothing is written back to storage.
func NormalizeForRead(m *model.Marker) {
	if m == nil {
		return
	}
	norm := strings.ToLower(strings.TrimSpace(m.Category))
	if !supported[norm] {
		m.Category = Fallback
		return
	}
	m.Category = norm
}

// ParseFilter normalizes a comma-separated category filter, failing fast
// on the first invalid entry. Empty input yields a nil (no filter) slice.
func ParseFilter(csv string) ([]string, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}
	var out []string
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		norm, err := NormalizeForWrite(part)
		if err != nil {
			return nil, err
		}
		out = append(out, norm)
	}
	return out, nil
}
