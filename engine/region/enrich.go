package region

import (
	"strings"

	"github.com/jurisgraph/jurisgraph/engine/domain"
)

// Enricher stamps resolved jurisdiction fields onto raw documents. Detection
// and resolution read the cache only, so enrichment is a pure function of the
// document and the current graph snapshot. It never fails: an unresolvable
// document gets the default state-level jurisdiction.
type Enricher struct {
	cache        *Cache
	defaultState string
}

// NewEnricher builds an enricher over the given cache. defaultState is the
// region id used when detection or resolution comes up empty.
func NewEnricher(cache *Cache, defaultState string) *Enricher {
	return &Enricher{cache: cache, defaultState: defaultState}
}

// Enrich resolves the document's jurisdiction and returns the enriched record.
func (e *Enricher) Enrich(raw domain.RawDocument) domain.Document {
	regionID := e.DetectRegion(raw)
	return domain.Document{
		Source:           raw.Source,
		JurisdictionText: raw.JurisdictionText,
		Cite:             raw.Cite,
		Title:            raw.Title,
		FullText:         raw.Text,
		SourceURL:        raw.SourceURL,
		Date:             raw.Date,
		Extra:            raw.Extra,
		Jurisdiction:     e.Resolve(regionID),
	}
}

// DetectRegion picks a candidate region id for a raw document. Each source
// kind has its own rule; anything unmatched lands on the default state.
func (e *Enricher) DetectRegion(raw domain.RawDocument) string {
	switch raw.Source {
	case domain.SourceCode:
		// Codified statutes are state law by definition.
		return e.defaultState
	case domain.SourceCaseLaw:
		if id := e.matchState(raw.Court); id != "" {
			return id
		}
		return e.defaultState
	case domain.SourceOrdinance:
		if id := e.matchMunicipality(raw.JurisdictionText); id != "" {
			return id
		}
		return e.defaultState
	default:
		return e.defaultState
	}
}

// matchState looks for a known state name inside court metadata
// ("Supreme Court of Georgia" matches the Georgia region).
func (e *Enricher) matchState(court string) string {
	if court == "" {
		return ""
	}
	haystack := strings.ToLower(court)
	bestID, bestLen := "", 0
	for _, st := range e.cache.RegionsOfType(TypeState) {
		name := strings.ToLower(st.Name)
		if name == "" || !strings.Contains(haystack, name) {
			continue
		}
		if len(name) > bestLen {
			bestID, bestLen = st.ID, len(name)
		}
	}
	return bestID
}

// matchMunicipality finds the longest known city or county name appearing in
// the free-text jurisdiction field. Counties also match with a " County"
// suffix since ordinance sources usually write "Gwinnett County". Ties on
// match length break toward the smaller region id (RegionsOfType order).
func (e *Enricher) matchMunicipality(jurisdiction string) string {
	if jurisdiction == "" {
		return ""
	}
	haystack := strings.ToLower(jurisdiction)
	bestID, bestLen := "", 0
	try := func(id, name string) {
		name = strings.ToLower(name)
		if name == "" || !strings.Contains(haystack, name) {
			return
		}
		if len(name) > bestLen {
			bestID, bestLen = id, len(name)
		}
	}
	for _, city := range e.cache.RegionsOfType(TypeCity) {
		try(city.ID, city.Name)
	}
	for _, county := range e.cache.RegionsOfType(TypeCounty) {
		try(county.ID, county.Name)
		try(county.ID, county.Name+" County")
	}
	return bestID
}

// Resolve walks the hierarchy for a region id and denormalizes it into the
// jurisdiction fields copied onto documents and chunks. An unknown id resolves
// to the default state; an empty graph still yields usable state-level fields.
func (e *Enricher) Resolve(regionID string) domain.Jurisdiction {
	chain := e.cache.Ancestors(regionID)
	if len(chain) == 0 && regionID != e.defaultState {
		regionID = e.defaultState
		chain = e.cache.Ancestors(regionID)
	}
	if len(chain) == 0 {
		return domain.Jurisdiction{
			RegionType: string(TypeState),
			RegionID:   e.defaultState,
			RegionName: e.defaultState,
			Country:    "US",
			State:      e.defaultState,
		}
	}

	leaf := chain[len(chain)-1]
	j := domain.Jurisdiction{
		RegionType: string(leaf.Type),
		RegionID:   leaf.ID,
		RegionName: leaf.Name,
	}
	var chainCounty string
	for _, r := range chain {
		switch r.Type {
		case TypeCountry:
			j.Country = r.ID
		case TypeState:
			j.State = r.ID
		case TypeCounty:
			chainCounty = r.ID
		case TypeCity:
			j.City = r.ID
		}
		j.Hierarchy = append(j.Hierarchy, domain.RegionRef{
			ID: r.ID, Name: r.Name, Type: string(r.Type),
		})
	}

	switch leaf.Type {
	case TypeCity:
		for _, county := range e.cache.CountiesOf(leaf.ID) {
			j.Counties = append(j.Counties, county.ID)
		}
		if len(j.Counties) == 0 && chainCounty != "" {
			j.Counties = []string{chainCounty}
		}
		if len(j.Counties) > 0 {
			j.PrimaryCounty = j.Counties[0]
		}
	case TypeCounty:
		j.Counties = []string{leaf.ID}
		j.PrimaryCounty = leaf.ID
	}
	return j
}
