package category

import (
	"errors"
	"testing"

	"github.com/waymark-app/waymark/internal/model"
)

func TestNormalizeForWrite_SupportedAndIdempotent(t *testing.T) {
	for _, c := range Supported() {
		got, err := NormalizeForWrite(c)
		if err != nil {
			t.Fatalf("NormalizeForWrite(%q): %v", c, err)
		}
		if got != c {
			t.Fatalf("NormalizeForWrite(%q)=%q", c, got)
		}
		again, err := NormalizeForWrite(got)
		if err != nil || again != got {
			t.Fatalf("not idempotent: %q -> %q (err=%v)", got, again, err)
		}
	}
}

func TestNormalizeForWrite_TrimsAndLowercases(t *testing.T) {
	got, err := NormalizeForWrite("  Friendly_Clinic ")
	if err != nil {
		t.Fatalf("NormalizeForWrite: %v", err)
	}
	if got != "friendly_clinic" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizeForWrite_LegacyAliases(t *testing.T) {
	for _, alias := range []string{"safe_place", "dangerous_place", " SAFE_PLACE "} {
		got, err := NormalizeForWrite(alias)
		if err != nil {
			t.Fatalf("NormalizeForWrite(%q): %v", alias, err)
		}
		if got != "self_definition" {
			t.Fatalf("alias %q -> %q, want self_definition", alias, got)
		}
	}
}

func TestNormalizeForWrite_RejectsUnknown(t *testing.T) {
	for _, bad := range []string{"", "park", "toilet", "self definition"} {
		_, err := NormalizeForWrite(bad)
		var ie *InvalidError
		if !errors.As(err, &ie) {
			t.Fatalf("NormalizeForWrite(%q) err=%v, want *InvalidError", bad, err)
		}
	}
}

func TestNormalizeForRead_FallsBackNeverFails(t *testing.T) {
	m := &model.Marker{Category: "safe_place"}
	NormalizeForRead(m)
	if m.Category != Fallback {
		t.Fatalf("legacy read category=%q, want %q", m.Category, Fallback)
	}

	m = &model.Marker{Category: "  Accessible_Toilet "}
	NormalizeForRead(m)
	if m.Category != "accessible_toilet" {
		t.Fatalf("category=%q", m.Category)
	}

	m = &model.Marker{Category: ""}
	NormalizeForRead(m)
	if m.Category != Fallback {
		t.Fatalf("empty read category=%q, want %q", m.Category, Fallback)
	}
}

func TestParseFilter(t *testing.T) {
	got, err := ParseFilter(" friendly_clinic , safe_place ")
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if len(got) != 2 || got[0] != "friendly_clinic" || got[1] != "self_definition" {
		t.Fatalf("ParseFilter=%v", got)
	}

	got, err = ParseFilter("  ")
	if err != nil || got != nil {
		t.Fatalf("blank filter: %v %v", got, err)
	}

	if _, err := ParseFilter("friendly_clinic,bogus"); err == nil {
		t.Fatalf("expected error on invalid entry")
	}
}
