// Package region provides the administrative region graph: persistence of
// regions and their weighted parent relationships, an in-process hierarchy
// cache, and the jurisdiction enricher that stamps resolved jurisdiction
// fields onto documents.
package region

import "fmt"

// Type classifies an administrative region.
type Type string

const (
	TypeCountry Type = "COUNTRY"
	TypeState   Type = "STATE"
	TypeCounty  Type = "COUNTY"
	TypeCity    Type = "CITY"
)

// Region is an administrative unit in the jurisdiction graph. Identity (ID)
// is immutable; descriptive fields may change on reload.
type Region struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Type            Type    `json:"type"`
	StateID         string  `json:"state_id,omitempty"`
	StateCode       string  `json:"state_code,omitempty"`
	FIPSCode        string  `json:"fips_code,omitempty"`
	CensusPlaceCode string  `json:"census_place_code,omitempty"`
	Latitude        float64 `json:"latitude,omitempty"`
	Longitude       float64 `json:"longitude,omitempty"`
	Bounds          string  `json:"bounds,omitempty"`
}

// Relationship is a directed child→parent edge. A child may have several
// parents (a city spanning counties); at most one edge per child carries
// IsPrimary. Coverage is the percentage of the child inside the parent.
type Relationship struct {
	ChildID          string  `json:"child_id"`
	ParentID         string  `json:"parent_id"`
	RelationshipType string  `json:"relationship_type"`
	IsPrimary        bool    `json:"is_primary"`
	Coverage         float64 `json:"coverage_percentage"`
}

// Dataset is a full region graph description: the reference-file format and
// the cache snapshot are the same shape.
type Dataset struct {
	Regions       []Region       `json:"regions"`
	Relationships []Relationship `json:"relationships"`
}

// ReferentialIntegrityError reports a relationship edge that references a
// region id absent from the dataset.
type ReferentialIntegrityError struct {
	ChildID  string
	ParentID string
	Missing  string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("region: relationship %s -> %s references unknown region %q",
		e.ChildID, e.ParentID, e.Missing)
}

// Validate checks that every relationship references known regions.
func (d Dataset) Validate() error {
	known := make(map[string]bool, len(d.Regions))
	for _, r := range d.Regions {
		known[r.ID] = true
	}
	for _, rel := range d.Relationships {
		if !known[rel.ChildID] {
			return &ReferentialIntegrityError{ChildID: rel.ChildID, ParentID: rel.ParentID, Missing: rel.ChildID}
		}
		if !known[rel.ParentID] {
			return &ReferentialIntegrityError{ChildID: rel.ChildID, ParentID: rel.ParentID, Missing: rel.ParentID}
		}
	}
	return nil
}
