// Package docstore is the Postgres system of record for documents, chunks,
// embedding state, keyword fallback search, and search history. Vector
// similarity lives in engine/semantic; this package owns everything durable.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jurisgraph/jurisgraph/engine/domain"
)

// Store wraps a pgx pool with the document/chunk schema.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a document store over a pgx pool.
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EmbeddingDims is the fixed embedding width of the chunks.embedding column.
const EmbeddingDims = 1536

var docSchema = fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
    id         TEXT PRIMARY KEY,
    source     TEXT NOT NULL,
    jurisdiction TEXT NOT NULL,
    cite       TEXT NOT NULL UNIQUE,
    title      TEXT NOT NULL,
    full_text  TEXT NOT NULL,
    source_url TEXT,
    date       TEXT,
    metadata   JSONB,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
CREATE INDEX IF NOT EXISTS idx_documents_cite ON documents(cite);

CREATE TABLE IF NOT EXISTS chunks (
    chunk_id     TEXT PRIMARY KEY,
    document_id  TEXT NOT NULL REFERENCES documents(id),
    chunk_index  INTEGER NOT NULL,
    total_chunks INTEGER NOT NULL,
    chunk_text   TEXT NOT NULL,
    embedding    vector(%d),

    source    TEXT NOT NULL,
    cite      TEXT NOT NULL,
    title     TEXT NOT NULL,
    title_num TEXT,
    chapter   TEXT,
    source_url TEXT,
    date      TEXT,

    region_type        TEXT DEFAULT 'STATE',
    region_id          TEXT DEFAULT '',
    region_name        TEXT DEFAULT '',
    applies_to_country TEXT,
    applies_to_state   TEXT,
    applies_to_counties TEXT[],
    primary_county     TEXT,
    applies_to_city    TEXT,
    jurisdiction_hierarchy JSONB,

    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
CREATE INDEX IF NOT EXISTS idx_chunks_state ON chunks(applies_to_state);
CREATE INDEX IF NOT EXISTS idx_chunks_county ON chunks(primary_county);
CREATE INDEX IF NOT EXISTS idx_chunks_city ON chunks(applies_to_city);

CREATE TABLE IF NOT EXISTS search_history (
    id            SERIAL PRIMARY KEY,
    query         TEXT NOT NULL,
    source_filter TEXT,
    region_filter TEXT,
    results_count INTEGER,
    fallback      BOOLEAN DEFAULT FALSE,
    timestamp     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`, EmbeddingDims)

// CreateSchema creates the document, chunk, and search history tables. The
// pgvector extension must be installable on the target database.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, docSchema); err != nil {
		return fmt.Errorf("docstore: create schema: %w", err)
	}
	return nil
}

const upsertDocumentSQL = `
	INSERT INTO documents (id, source, jurisdiction, cite, title, full_text, source_url, date, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (cite) DO UPDATE SET
		source = EXCLUDED.source,
		jurisdiction = EXCLUDED.jurisdiction,
		title = EXCLUDED.title,
		full_text = EXCLUDED.full_text,
		source_url = EXCLUDED.source_url,
		date = EXCLUDED.date,
		metadata = EXCLUDED.metadata`

// In the conflict update, chunks.chunk_text refers to the stored row before
// the update, so the CASE compares old text against incoming text: unchanged
// text keeps the embedding, changed text clears it for the next embed pass.
const upsertChunkSQL = `
	INSERT INTO chunks (
		chunk_id, document_id, chunk_index, total_chunks, chunk_text,
		source, cite, title, title_num, chapter, source_url, date,
		region_type, region_id, region_name,
		applies_to_country, applies_to_state, applies_to_counties,
		primary_county, applies_to_city, jurisdiction_hierarchy
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
	        $13, $14, $15, $16, $17, $18, $19, $20, $21)
	ON CONFLICT (chunk_id) DO UPDATE SET
		document_id = EXCLUDED.document_id,
		chunk_index = EXCLUDED.chunk_index,
		total_chunks = EXCLUDED.total_chunks,
		embedding = CASE
			WHEN chunks.chunk_text = EXCLUDED.chunk_text THEN chunks.embedding
			ELSE NULL
		END,
		chunk_text = EXCLUDED.chunk_text,
		source = EXCLUDED.source,
		cite = EXCLUDED.cite,
		title = EXCLUDED.title,
		title_num = EXCLUDED.title_num,
		chapter = EXCLUDED.chapter,
		source_url = EXCLUDED.source_url,
		date = EXCLUDED.date,
		region_type = EXCLUDED.region_type,
		region_id = EXCLUDED.region_id,
		region_name = EXCLUDED.region_name,
		applies_to_country = EXCLUDED.applies_to_country,
		applies_to_state = EXCLUDED.applies_to_state,
		applies_to_counties = EXCLUDED.applies_to_counties,
		primary_county = EXCLUDED.primary_county,
		applies_to_city = EXCLUDED.applies_to_city,
		jurisdiction_hierarchy = EXCLUDED.jurisdiction_hierarchy`

const trimChunksSQL = `
	DELETE FROM chunks WHERE document_id = $1 AND chunk_index >= $2`

// UpsertDocument writes a document and its chunks in one transaction, keyed
// by cite and chunk_id. Chunk embeddings survive the upsert only when the
// chunk text is unchanged; changed text clears the embedding so the next
// embedding pass regenerates it. Chunks beyond the new total are deleted so
// a shrunk re-chunking leaves no orphans.
func (s *Store) UpsertDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("docstore: begin upsert %s: %w", doc.Cite, err)
	}
	defer tx.Rollback(ctx)

	meta, err := json.Marshal(doc.Extra)
	if err != nil {
		return fmt.Errorf("docstore: marshal metadata %s: %w", doc.Cite, err)
	}

	docID := doc.ID
	if docID == "" {
		docID = doc.Cite
	}
	_, err = tx.Exec(ctx, upsertDocumentSQL,
		docID, string(doc.Source), doc.JurisdictionText, doc.Cite, doc.Title,
		doc.FullText, doc.SourceURL, doc.Date, meta)
	if err != nil {
		return fmt.Errorf("docstore: upsert document %s: %w", doc.Cite, err)
	}

	for _, c := range chunks {
		hierarchy, err := json.Marshal(c.Jurisdiction.Hierarchy)
		if err != nil {
			return fmt.Errorf("docstore: marshal hierarchy %s: %w", c.ChunkID, err)
		}
		_, err = tx.Exec(ctx, upsertChunkSQL,
			c.ChunkID, docID, c.Index, c.Total, c.Text,
			string(c.Source), c.Cite, c.Title, c.TitleNum, c.Chapter, c.SourceURL, c.Date,
			c.Jurisdiction.RegionType, c.Jurisdiction.RegionID, c.Jurisdiction.RegionName,
			c.Jurisdiction.Country, c.Jurisdiction.State, c.Jurisdiction.Counties,
			c.Jurisdiction.PrimaryCounty, c.Jurisdiction.City, hierarchy)
		if err != nil {
			return fmt.Errorf("docstore: upsert chunk %s: %w", c.ChunkID, err)
		}
	}

	if len(chunks) > 0 {
		_, err = tx.Exec(ctx, trimChunksSQL, docID, chunks[0].Total)
		if err != nil {
			return fmt.Errorf("docstore: trim chunks %s: %w", doc.Cite, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("docstore: commit %s: %w", doc.Cite, err)
	}
	return nil
}
