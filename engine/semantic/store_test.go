package semantic

import (
	"testing"

	"github.com/jurisgraph/jurisgraph/engine/domain"
	"github.com/jurisgraph/jurisgraph/engine/search"
)

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("OCGA-16-5-1__chunk_0")
	b := PointID("OCGA-16-5-1__chunk_0")
	if a != b {
		t.Fatalf("point id must be stable: %s != %s", a, b)
	}
	if PointID("OCGA-16-5-1__chunk_1") == a {
		t.Fatal("different chunks must get different point ids")
	}
}

func TestRenderFilterSourceAndJurisdiction(t *testing.T) {
	f := renderFilter(domain.SourceOrdinance, search.Filter{Clauses: []search.Clause{
		{Field: search.FieldCity, Values: []string{"GA-ATLANTA"}},
		{Field: search.FieldPrimaryCounty, Values: []string{"GA-FULTON", "GA-DEKALB"}},
	}})
	if f == nil {
		t.Fatal("expected a filter")
	}
	if len(f.Must) != 2 {
		t.Fatalf("expected source condition + should group, got %d must conditions", len(f.Must))
	}

	src := f.Must[0].GetField()
	if src.GetKey() != "source" || src.GetMatch().GetKeyword() != "ORDINANCE" {
		t.Errorf("first must condition should pin the source, got %v", src)
	}

	group := f.Must[1].GetFilter()
	if group == nil {
		t.Fatal("second must condition should be the jurisdiction should-group")
	}
	if len(group.Should) != 3 {
		t.Fatalf("expected 3 should conditions (city + 2 counties), got %d", len(group.Should))
	}
	keys := map[string]int{}
	for _, c := range group.Should {
		keys[c.GetField().GetKey()]++
	}
	if keys["applies_to_city"] != 1 || keys["primary_county"] != 2 {
		t.Errorf("unexpected should keys %v", keys)
	}
}

func TestRenderFilterEmpty(t *testing.T) {
	if f := renderFilter("", search.Filter{}); f != nil {
		t.Fatalf("no source and no clauses must render nil, got %v", f)
	}
}

func TestRenderFilterSourceOnly(t *testing.T) {
	f := renderFilter(domain.SourceCode, search.Filter{})
	if f == nil || len(f.Must) != 1 {
		t.Fatalf("expected single source condition, got %v", f)
	}
}

func TestChunkPayloadCarriesJurisdiction(t *testing.T) {
	payload := chunkPayload(domain.Chunk{
		ChunkID: "ATL-74-133__chunk_0",
		Cite:    "ATL-74-133",
		Title:   "Noise control",
		Text:    "maximum permissible sound levels",
		Source:  domain.SourceOrdinance,
		Index:   0,
		Jurisdiction: domain.Jurisdiction{
			RegionType:    "CITY",
			RegionID:      "GA-ATLANTA",
			RegionName:    "Atlanta",
			Country:       "US",
			State:         "GA",
			PrimaryCounty: "GA-FULTON",
			City:          "GA-ATLANTA",
		},
	})

	want := map[string]string{
		"chunk_id":           "ATL-74-133__chunk_0",
		"source":             "ORDINANCE",
		"applies_to_state":   "GA",
		"primary_county":     "GA-FULTON",
		"applies_to_city":    "GA-ATLANTA",
		"applies_to_country": "US",
		"region_name":        "Atlanta",
	}
	for k, v := range want {
		got, ok := payload[k]
		if !ok {
			t.Errorf("payload missing %s", k)
			continue
		}
		if got.GetStringValue() != v {
			t.Errorf("payload[%s] = %s, want %s", k, got.GetStringValue(), v)
		}
	}
	if _, ok := payload["chunk_index"]; !ok {
		t.Error("payload must carry chunk_index")
	}
}
