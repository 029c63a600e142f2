package flows

import (
	"strings"
	"testing"
)

func TestCityNameResolvesKnownRows(t *testing.T) {
	name, ok := CityName("city_vijayawada")
	if !ok || name != "Vijayawada" {
		t.Errorf("got %q ok=%v", name, ok)
	}
	if _, ok := CityName("city_atlantis"); ok {
		t.Error("unknown city resolved")
	}
}

func TestClinicsForCityBangaloreAlias(t *testing.T) {
	rows := ClinicsForCity("Bangalore")
	if len(rows) == 0 {
		t.Fatal("no clinics for Bangalore alias")
	}
	for _, row := range rows {
		if !strings.HasPrefix(row.ID, "clinic_bengaluru_") {
			t.Errorf("row %q not a Bengaluru clinic", row.ID)
		}
	}
}

func TestClinicsForUnknownCityFallsBackToRemote(t *testing.T) {
	rows := ClinicsForCity("Ludhiana")
	if len(rows) != 2 {
		t.Fatalf("got %d fallback rows, want 2", len(rows))
	}
	if rows[0].ID != "clinic_other_consultation" {
		t.Errorf("fallback row = %q", rows[0].ID)
	}
}

func TestCanonicalConcernStripsCategoryPrefix(t *testing.T) {
	if got := CanonicalConcern("Skin: pigmentation"); got != "Pigmentation & Uneven Skin Tone" {
		t.Errorf("got %q", got)
	}
	if got := CanonicalConcern("anti-aging"); got != "Anti-Aging & Skin Rejuvenation" {
		t.Errorf("got %q", got)
	}
}

func TestCRMConcernNameFallsBackToRaw(t *testing.T) {
	if got := CRMConcernName("Hair Loss / Hair Fall"); got != "Hair Loss" {
		t.Errorf("mapped name = %q", got)
	}
	if got := CRMConcernName("Stretch Marks"); got != "Stretch Marks" {
		t.Errorf("fallback = %q", got)
	}
}

func TestParseCustomDateLayouts(t *testing.T) {
	cases := map[string]string{
		"2026-09-04": "2026-09-04",
		"04/09/2026": "2026-09-04",
		"04-09-2026": "2026-09-04",
		"4 Sep 2026": "2026-09-04",
	}
	for input, want := range cases {
		got, ok := ParseCustomDate(input)
		if !ok || got != want {
			t.Errorf("ParseCustomDate(%q) = %q ok=%v, want %q", input, got, ok, want)
		}
	}
	if _, ok := ParseCustomDate("tomorrow"); ok {
		t.Error("free text accepted as date")
	}
}
