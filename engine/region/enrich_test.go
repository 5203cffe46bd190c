package region

import (
	"testing"

	"github.com/jurisgraph/jurisgraph/engine/domain"
)

func newTestEnricher(t *testing.T) *Enricher {
	t.Helper()
	return NewEnricher(buildCache(t, georgiaFixture()), "GA")
}

func TestEnrichCodeDefaultsToState(t *testing.T) {
	e := newTestEnricher(t)

	doc := e.Enrich(domain.RawDocument{
		Source: domain.SourceCode,
		Cite:   "OCGA-16-5-1",
		Text:   "A person commits the offense of murder...",
	})

	j := doc.Jurisdiction
	if j.RegionID != "GA" || j.RegionType != "STATE" {
		t.Fatalf("expected state-level GA, got %s/%s", j.RegionType, j.RegionID)
	}
	if j.Country != "US" || j.State != "GA" {
		t.Errorf("expected US/GA, got %s/%s", j.Country, j.State)
	}
	if len(j.Hierarchy) != 2 || j.Hierarchy[0].ID != "US" || j.Hierarchy[1].ID != "GA" {
		t.Errorf("unexpected hierarchy %v", j.Hierarchy)
	}
}

func TestEnrichOrdinanceMatchesCity(t *testing.T) {
	e := newTestEnricher(t)

	doc := e.Enrich(domain.RawDocument{
		Source:           domain.SourceOrdinance,
		JurisdictionText: "City of Atlanta",
		Cite:             "ATL-74-133",
		Text:             "It shall be unlawful to exceed the maximum permissible sound levels...",
	})

	j := doc.Jurisdiction
	if j.RegionID != "GA-ATLANTA" || j.City != "GA-ATLANTA" {
		t.Fatalf("expected GA-ATLANTA, got %s", j.RegionID)
	}
	if j.PrimaryCounty != "GA-FULTON" {
		t.Errorf("expected primary county GA-FULTON, got %s", j.PrimaryCounty)
	}
	if len(j.Counties) != 2 {
		t.Errorf("expected both covering counties, got %v", j.Counties)
	}
	if j.State != "GA" || j.Country != "US" {
		t.Errorf("expected GA/US ancestors, got %s/%s", j.State, j.Country)
	}
}

func TestEnrichOrdinanceMatchesCountySuffix(t *testing.T) {
	e := newTestEnricher(t)

	doc := e.Enrich(domain.RawDocument{
		Source:           domain.SourceOrdinance,
		JurisdictionText: "Gwinnett County, Georgia",
		Cite:             "GWIN-14-2",
		Text:             "No person shall keep livestock within a residential district...",
	})

	j := doc.Jurisdiction
	if j.RegionID != "GA-GWINNETT" {
		t.Fatalf("expected GA-GWINNETT, got %s", j.RegionID)
	}
	if j.PrimaryCounty != "GA-GWINNETT" || len(j.Counties) != 1 {
		t.Errorf("bare county must be its own primary: %s %v", j.PrimaryCounty, j.Counties)
	}
	if j.City != "" {
		t.Errorf("county ordinance must not stamp a city, got %s", j.City)
	}
}

func TestEnrichOrdinancePrefersLongestMatch(t *testing.T) {
	// "Peachtree Corners" contains no other fixture name, but an ordinance
	// naming both the city and its county must resolve to the longer city name.
	e := newTestEnricher(t)

	id := e.DetectRegion(domain.RawDocument{
		Source:           domain.SourceOrdinance,
		JurisdictionText: "City of Peachtree Corners, Gwinnett County",
	})
	if id != "GA-PEACHTREE-CORNERS" {
		t.Fatalf("expected longest-name match GA-PEACHTREE-CORNERS, got %s", id)
	}
}

func TestEnrichOrdinanceUnmatchedFallsBack(t *testing.T) {
	e := newTestEnricher(t)

	doc := e.Enrich(domain.RawDocument{
		Source:           domain.SourceOrdinance,
		JurisdictionText: "Township of Nowhere",
		Cite:             "NW-1",
		Text:             "some text",
	})
	if doc.Jurisdiction.RegionID != "GA" {
		t.Fatalf("unmatched ordinance must default to state, got %s", doc.Jurisdiction.RegionID)
	}
}

func TestEnrichCaseLawCourtMetadata(t *testing.T) {
	e := newTestEnricher(t)

	tests := []struct {
		court string
		want  string
	}{
		{"Supreme Court of Georgia", "GA"},
		{"Court of Appeals of Georgia", "GA"},
		{"", "GA"},
		{"United States District Court", "GA"}, // no state name -> default
	}
	for _, tt := range tests {
		id := e.DetectRegion(domain.RawDocument{Source: domain.SourceCaseLaw, Court: tt.court})
		if id != tt.want {
			t.Errorf("DetectRegion(court=%q) = %s, want %s", tt.court, id, tt.want)
		}
	}
}

func TestResolveUnknownIDDefaultsToState(t *testing.T) {
	e := newTestEnricher(t)

	j := e.Resolve("TX-AUSTIN")
	if j.RegionID != "GA" || j.State != "GA" {
		t.Fatalf("unknown id must resolve to default state, got %+v", j)
	}
}

func TestResolveEmptyGraphStillStamps(t *testing.T) {
	e := NewEnricher(buildCache(t, Dataset{}), "GA")

	j := e.Resolve("GA-ATLANTA")
	if j.State != "GA" || j.RegionType != "STATE" {
		t.Fatalf("empty graph must still yield state-level fields, got %+v", j)
	}
	if j.Country != "US" {
		t.Errorf("fallback must stamp the country, got %q", j.Country)
	}
	if len(j.Hierarchy) != 0 {
		t.Errorf("expected empty hierarchy, got %v", j.Hierarchy)
	}
}

func TestEnrichPreservesDocumentFields(t *testing.T) {
	e := newTestEnricher(t)

	raw := domain.RawDocument{
		Source:           domain.SourceCode,
		JurisdictionText: "GA",
		Cite:             "OCGA-40-6-181",
		Title:            "Maximum limits",
		Text:             "No person shall drive a vehicle...",
		SourceURL:        "https://example.org/ocga/40-6-181",
		Extra:            map[string]string{"title_num": "40", "chapter": "6"},
	}
	doc := e.Enrich(raw)

	if doc.Cite != raw.Cite || doc.Title != raw.Title || doc.FullText != raw.Text {
		t.Error("enrichment must not alter core document fields")
	}
	if doc.Extra["title_num"] != "40" {
		t.Error("extra fields must pass through")
	}
}
