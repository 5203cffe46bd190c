package region

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
)

// Snapshotter supplies a full copy of the region graph. Implemented by
// *Store; tests use an in-memory fixture.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Dataset, error)
}

// Cache is the process-wide hierarchy resolver. It is built once (Rebuild)
// and read-only between rebuilds, so concurrent lookups need no locking;
// Rebuild swaps the whole state atomically rather than patching it.
type Cache struct {
	src   Snapshotter
	state atomic.Pointer[cacheState]
}

type cacheState struct {
	regions map[string]Region
	// edges per child, sorted best-first:
	// is_primary desc, coverage desc, parent_id asc.
	edges map[string][]Relationship
}

// NewCache creates an empty cache over the given source. Call Rebuild before
// first use; lookups on an unbuilt cache return empty results.
func NewCache(src Snapshotter) *Cache {
	c := &Cache{src: src}
	c.state.Store(&cacheState{
		regions: map[string]Region{},
		edges:   map[string][]Relationship{},
	})
	return c
}

// Rebuild loads a fresh snapshot and swaps it in. On error the previous
// state stays active.
func (c *Cache) Rebuild(ctx context.Context) error {
	ds, err := c.src.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("region: rebuild cache: %w", err)
	}
	c.state.Store(buildState(ds))
	return nil
}

func buildState(ds Dataset) *cacheState {
	st := &cacheState{
		regions: make(map[string]Region, len(ds.Regions)),
		edges:   make(map[string][]Relationship),
	}
	for _, r := range ds.Regions {
		st.regions[r.ID] = r
	}
	for _, rel := range ds.Relationships {
		st.edges[rel.ChildID] = append(st.edges[rel.ChildID], rel)
	}
	for child := range st.edges {
		sortEdges(st.edges[child])
	}
	return st
}

// sortEdges orders parent edges best-first. The parent-id key makes the
// equal-coverage, non-primary case deterministic.
func sortEdges(edges []Relationship) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].IsPrimary != edges[j].IsPrimary {
			return edges[i].IsPrimary
		}
		if edges[i].Coverage != edges[j].Coverage {
			return edges[i].Coverage > edges[j].Coverage
		}
		return edges[i].ParentID < edges[j].ParentID
	})
}

// Region returns a region by id.
func (c *Cache) Region(id string) (Region, bool) {
	r, ok := c.state.Load().regions[id]
	return r, ok
}

// Len returns the number of cached regions.
func (c *Cache) Len() int {
	return len(c.state.Load().regions)
}

// RegionsOfType returns all regions of the given type, ordered by id.
func (c *Cache) RegionsOfType(t Type) []Region {
	st := c.state.Load()
	var out []Region
	for _, r := range st.regions {
		if r.Type == t {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ancestors returns the chain from the root down to the region itself
// (root first, the region last), following the best edge at each step.
// Unknown ids return nil: resolution gaps are recoverable and callers fall
// back to a default jurisdiction. A revisited node stops the walk — malformed
// data with a cycle must not loop forever.
func (c *Cache) Ancestors(id string) []Region {
	st := c.state.Load()
	self, ok := st.regions[id]
	if !ok {
		return nil
	}

	chain := []Region{self}
	visited := map[string]bool{}
	cur := id
	for {
		if visited[cur] {
			break
		}
		visited[cur] = true

		edges := st.edges[cur]
		if len(edges) == 0 {
			break
		}
		parent, ok := st.regions[edges[0].ParentID]
		if !ok {
			break
		}
		chain = append([]Region{parent}, chain...)
		cur = parent.ID
	}
	return chain
}

// CountiesOf returns all COUNTY-typed parents of a region, best edge first
// (primary, then coverage). For a multi-county city the first entry is the
// primary county.
func (c *Cache) CountiesOf(id string) []Region {
	st := c.state.Load()
	var out []Region
	for _, rel := range st.edges[id] {
		if parent, ok := st.regions[rel.ParentID]; ok && parent.Type == TypeCounty {
			out = append(out, parent)
		}
	}
	return out
}
