package region

import (
	"context"
	"errors"
	"testing"
)

// memSnapshot is an in-memory Snapshotter for cache tests.
type memSnapshot struct {
	ds  Dataset
	err error
}

func (m *memSnapshot) Snapshot(ctx context.Context) (Dataset, error) {
	return m.ds, m.err
}

func georgiaFixture() Dataset {
	return Dataset{
		Regions: []Region{
			{ID: "US", Name: "United States", Type: TypeCountry},
			{ID: "GA", Name: "Georgia", Type: TypeState},
			{ID: "GA-FULTON", Name: "Fulton", Type: TypeCounty},
			{ID: "GA-GWINNETT", Name: "Gwinnett", Type: TypeCounty},
			{ID: "GA-DEKALB", Name: "DeKalb", Type: TypeCounty},
			{ID: "GA-ATLANTA", Name: "Atlanta", Type: TypeCity},
			{ID: "GA-PEACHTREE-CORNERS", Name: "Peachtree Corners", Type: TypeCity},
		},
		Relationships: []Relationship{
			{ChildID: "GA", ParentID: "US", IsPrimary: true, Coverage: 100},
			{ChildID: "GA-FULTON", ParentID: "GA", IsPrimary: true, Coverage: 100},
			{ChildID: "GA-GWINNETT", ParentID: "GA", IsPrimary: true, Coverage: 100},
			{ChildID: "GA-DEKALB", ParentID: "GA", IsPrimary: true, Coverage: 100},
			// Atlanta spans two counties; Fulton is primary but listed second
			// so the sort, not insertion order, must decide.
			{ChildID: "GA-ATLANTA", ParentID: "GA-DEKALB", Coverage: 10},
			{ChildID: "GA-ATLANTA", ParentID: "GA-FULTON", IsPrimary: true, Coverage: 90},
			{ChildID: "GA-PEACHTREE-CORNERS", ParentID: "GA-GWINNETT", IsPrimary: true, Coverage: 100},
		},
	}
}

func buildCache(t *testing.T, ds Dataset) *Cache {
	t.Helper()
	c := NewCache(&memSnapshot{ds: ds})
	if err := c.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	return c
}

func TestCacheAncestors(t *testing.T) {
	c := buildCache(t, georgiaFixture())

	tests := []struct {
		id   string
		want []string
	}{
		{"GA-ATLANTA", []string{"US", "GA", "GA-FULTON", "GA-ATLANTA"}},
		{"GA-GWINNETT", []string{"US", "GA", "GA-GWINNETT"}},
		{"GA", []string{"US", "GA"}},
		{"US", []string{"US"}},
	}
	for _, tt := range tests {
		chain := c.Ancestors(tt.id)
		if len(chain) != len(tt.want) {
			t.Errorf("Ancestors(%s): got %d regions, want %d", tt.id, len(chain), len(tt.want))
			continue
		}
		for i, want := range tt.want {
			if chain[i].ID != want {
				t.Errorf("Ancestors(%s)[%d] = %s, want %s", tt.id, i, chain[i].ID, want)
			}
		}
	}
}

func TestCacheAncestorsUnknownID(t *testing.T) {
	c := buildCache(t, georgiaFixture())
	if got := c.Ancestors("TX-AUSTIN"); got != nil {
		t.Errorf("expected nil for unknown id, got %v", got)
	}
}

func TestCacheAncestorsCycleTerminates(t *testing.T) {
	ds := Dataset{
		Regions: []Region{
			{ID: "A", Name: "A", Type: TypeCounty},
			{ID: "B", Name: "B", Type: TypeCounty},
		},
		Relationships: []Relationship{
			{ChildID: "A", ParentID: "B", IsPrimary: true},
			{ChildID: "B", ParentID: "A", IsPrimary: true},
		},
	}
	c := buildCache(t, ds)

	chain := c.Ancestors("A")
	if len(chain) == 0 {
		t.Fatal("expected a chain despite the cycle")
	}
	if last := chain[len(chain)-1]; last.ID != "A" {
		t.Errorf("chain must end at the queried region, got %s", last.ID)
	}
}

func TestCacheCountiesOfPrimaryFirst(t *testing.T) {
	c := buildCache(t, georgiaFixture())

	counties := c.CountiesOf("GA-ATLANTA")
	if len(counties) != 2 {
		t.Fatalf("expected 2 counties, got %d", len(counties))
	}
	if counties[0].ID != "GA-FULTON" {
		t.Errorf("primary county must come first, got %s", counties[0].ID)
	}
	if counties[1].ID != "GA-DEKALB" {
		t.Errorf("expected GA-DEKALB second, got %s", counties[1].ID)
	}
}

func TestCacheEdgeTieBreakBySmallestParentID(t *testing.T) {
	ds := Dataset{
		Regions: []Region{
			{ID: "C-B", Name: "Bravo", Type: TypeCounty},
			{ID: "C-A", Name: "Alpha", Type: TypeCounty},
			{ID: "X", Name: "X", Type: TypeCity},
		},
		Relationships: []Relationship{
			// Equal coverage, neither primary: smallest parent id wins.
			{ChildID: "X", ParentID: "C-B", Coverage: 50},
			{ChildID: "X", ParentID: "C-A", Coverage: 50},
		},
	}
	c := buildCache(t, ds)

	counties := c.CountiesOf("X")
	if len(counties) != 2 || counties[0].ID != "C-A" {
		t.Fatalf("expected deterministic C-A first, got %v", counties)
	}
}

func TestCacheRebuildError(t *testing.T) {
	src := &memSnapshot{ds: georgiaFixture()}
	c := NewCache(src)
	if err := c.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	src.err = errors.New("connection refused")
	if err := c.Rebuild(context.Background()); err == nil {
		t.Fatal("expected rebuild error")
	}
	// Previous state must survive a failed rebuild.
	if _, ok := c.Region("GA"); !ok {
		t.Error("failed rebuild must keep the old snapshot")
	}
}

func TestCacheRegionsOfType(t *testing.T) {
	c := buildCache(t, georgiaFixture())
	counties := c.RegionsOfType(TypeCounty)
	if len(counties) != 3 {
		t.Fatalf("expected 3 counties, got %d", len(counties))
	}
	for i := 1; i < len(counties); i++ {
		if counties[i-1].ID >= counties[i].ID {
			t.Errorf("counties not ordered by id: %s before %s", counties[i-1].ID, counties[i].ID)
		}
	}
}

func TestDatasetValidateRejectsUnknownRegion(t *testing.T) {
	ds := georgiaFixture()
	ds.Relationships = append(ds.Relationships, Relationship{ChildID: "GA-ATLANTA", ParentID: "GA-NOWHERE"})

	err := ds.Validate()
	var rerr *ReferentialIntegrityError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ReferentialIntegrityError, got %v", err)
	}
	if rerr.Missing != "GA-NOWHERE" {
		t.Errorf("expected missing GA-NOWHERE, got %s", rerr.Missing)
	}
}
