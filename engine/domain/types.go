// Package domain defines the core document model and validation for the
// jurisgraph pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "fmt"

// Source identifies the kind of legal text a document was taken from.
// It is a closed set: detection and formatting logic switch over it
// explicitly rather than matching raw strings.
type Source string

const (
	// SourceCode is codified statute text (e.g. a state code title).
	SourceCode Source = "CODE"
	// SourceCaseLaw is an appellate or trial court opinion.
	SourceCaseLaw Source = "CASE_LAW"
	// SourceOrdinance is a municipal or county ordinance.
	SourceOrdinance Source = "ORDINANCE"
)

// ValidSources is the set of recognised document sources.
var ValidSources = map[Source]bool{
	SourceCode:      true,
	SourceCaseLaw:   true,
	SourceOrdinance: true,
}

// ParseSource converts a string into a Source, rejecting unknown values.
func ParseSource(s string) (Source, error) {
	src := Source(s)
	if !ValidSources[src] {
		return "", fmt.Errorf("domain: unknown source %q", s)
	}
	return src, nil
}

// RegionRef is a lightweight reference to a region in a stamped hierarchy.
// The full region record lives in engine/region; documents only carry what
// display and filtering need.
type RegionRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Jurisdiction holds the resolved, denormalized jurisdiction fields stamped
// onto documents and copied to every chunk. The duplication is deliberate:
// query-time filters read these fields directly and never join against the
// region graph.
type Jurisdiction struct {
	RegionType    string      `json:"region_type"`
	RegionID      string      `json:"region_id"`
	RegionName    string      `json:"region_name"`
	Country       string      `json:"applies_to_country"`
	State         string      `json:"applies_to_state"`
	Counties      []string    `json:"applies_to_counties,omitempty"`
	PrimaryCounty string      `json:"primary_county,omitempty"`
	City          string      `json:"applies_to_city,omitempty"`
	Hierarchy     []RegionRef `json:"jurisdiction_hierarchy"`
}

// RawDocument is a legal document as loaded from a source file or message,
// before jurisdiction enrichment. Extra carries source-specific fields
// (title number, chapter, court docket) without widening the core record.
type RawDocument struct {
	Source           Source            `json:"source"`
	JurisdictionText string            `json:"jurisdiction"`
	Cite             string            `json:"cite"`
	Title            string            `json:"title"`
	Text             string            `json:"text"`
	Court            string            `json:"court,omitempty"`
	SourceURL        string            `json:"source_url,omitempty"`
	Date             string            `json:"date,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
}

// Document is an enriched document ready for chunking and storage.
type Document struct {
	ID               string            `json:"id"`
	Source           Source            `json:"source"`
	JurisdictionText string            `json:"jurisdiction"`
	Cite             string            `json:"cite"`
	Title            string            `json:"title"`
	FullText         string            `json:"full_text"`
	SourceURL        string            `json:"source_url,omitempty"`
	Date             string            `json:"date,omitempty"`
	Extra            map[string]string `json:"extra,omitempty"`
	Jurisdiction     Jurisdiction      `json:"jurisdiction_fields"`
}

// Chunk is a retrievable text segment of a document. Embedding is nil until
// the embedding pass fills it; it is cleared again only when the chunk text
// changes on re-ingestion.
type Chunk struct {
	ChunkID      string       `json:"chunk_id"`
	DocumentCite string       `json:"document_cite"`
	Index        int          `json:"chunk_index"`
	Total        int          `json:"total_chunks"`
	Text         string       `json:"text"`
	Source       Source       `json:"source"`
	Cite         string       `json:"cite"`
	Title        string       `json:"title"`
	TitleNum     string       `json:"title_num,omitempty"`
	Chapter      string       `json:"chapter,omitempty"`
	SourceURL    string       `json:"source_url,omitempty"`
	Date         string       `json:"date,omitempty"`
	Jurisdiction Jurisdiction `json:"jurisdiction_fields"`
	Embedding    []float32    `json:"-"`
}
