// Package search builds jurisdiction-scoped retrieval: a backend-agnostic
// filter over the denormalized jurisdiction fields, and an engine combining
// vector search with a keyword fallback.
package search

import (
	"github.com/jurisgraph/jurisgraph/engine/region"
)

// Denormalized chunk fields the jurisdiction filter matches against. The
// names are shared by the Postgres columns and the Qdrant payload keys.
const (
	FieldCountry       = "applies_to_country"
	FieldState         = "applies_to_state"
	FieldPrimaryCounty = "primary_county"
	FieldCity          = "applies_to_city"
)

// Clause matches a chunk when the named field equals any of the values.
type Clause struct {
	Field  string
	Values []string
}

// Filter is an OR of clauses: a chunk is in scope when ANY clause matches.
// Jurisdiction search is inclusive, "laws that apply here" includes laws from
// every enclosing level.
type Filter struct {
	Clauses []Clause
}

// BuildFilter constructs the jurisdiction filter for a target region.
// An unknown region id falls back to a single default-state clause, never an
// empty filter, so a typo cannot silently widen the search to everything.
func BuildFilter(cache *region.Cache, regionID string, includeParents bool, defaultState string) Filter {
	r, ok := cache.Region(regionID)
	if !ok {
		return Filter{Clauses: []Clause{{Field: FieldState, Values: []string{defaultState}}}}
	}

	var f Filter
	add := func(field string, values ...string) {
		if len(values) > 0 {
			f.Clauses = append(f.Clauses, Clause{Field: field, Values: values})
		}
	}

	switch r.Type {
	case region.TypeCountry:
		add(FieldCountry, r.ID)

	case region.TypeState:
		add(FieldState, r.ID)
		if includeParents {
			if country := ancestorOfType(cache, r.ID, region.TypeCountry); country != "" {
				add(FieldCountry, country)
			}
		}

	case region.TypeCounty:
		add(FieldPrimaryCounty, r.ID)
		if includeParents {
			if state := ancestorOfType(cache, r.ID, region.TypeState); state != "" {
				add(FieldState, state)
			}
		}

	case region.TypeCity:
		add(FieldCity, r.ID)
		if includeParents {
			var countyIDs []string
			for _, county := range cache.CountiesOf(r.ID) {
				countyIDs = append(countyIDs, county.ID)
			}
			add(FieldPrimaryCounty, countyIDs...)
			if state := ancestorOfType(cache, r.ID, region.TypeState); state != "" {
				add(FieldState, state)
			}
		}

	default:
		add(FieldState, defaultState)
	}
	return f
}

func ancestorOfType(cache *region.Cache, id string, t region.Type) string {
	for _, r := range cache.Ancestors(id) {
		if r.Type == t {
			return r.ID
		}
	}
	return ""
}
