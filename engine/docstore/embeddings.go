package docstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jurisgraph/jurisgraph/engine/domain"
)

// formatVector renders an embedding as a pgvector literal.
func formatVector(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// UnembeddedChunks returns chunks whose embedding is still NULL, with the
// jurisdiction payload the vector index needs. The embedding pass is
// resumable through this query: already-embedded chunks never reappear.
// source narrows by document source when non-empty; limit <= 0 means no cap.
func (s *Store) UnembeddedChunks(ctx context.Context, source domain.Source, limit int) ([]domain.Chunk, error) {
	q := `
		SELECT chunk_id, document_id, chunk_index, total_chunks, chunk_text,
		       source, cite, title,
		       COALESCE(title_num, ''), COALESCE(chapter, ''),
		       COALESCE(source_url, ''), COALESCE(date, ''),
		       COALESCE(region_type, ''), COALESCE(region_id, ''), COALESCE(region_name, ''),
		       COALESCE(applies_to_country, ''), COALESCE(applies_to_state, ''),
		       COALESCE(applies_to_counties, '{}'),
		       COALESCE(primary_county, ''), COALESCE(applies_to_city, '')
		FROM chunks
		WHERE embedding IS NULL`
	var args []any
	if source != "" {
		args = append(args, string(source))
		q += fmt.Sprintf(" AND source = $%d", len(args))
	}
	q += " ORDER BY chunk_id"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: unembedded chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var src string
		if err := rows.Scan(&c.ChunkID, &c.DocumentCite, &c.Index, &c.Total, &c.Text,
			&src, &c.Cite, &c.Title, &c.TitleNum, &c.Chapter, &c.SourceURL, &c.Date,
			&c.Jurisdiction.RegionType, &c.Jurisdiction.RegionID, &c.Jurisdiction.RegionName,
			&c.Jurisdiction.Country, &c.Jurisdiction.State, &c.Jurisdiction.Counties,
			&c.Jurisdiction.PrimaryCounty, &c.Jurisdiction.City); err != nil {
			return nil, fmt.Errorf("docstore: scan chunk: %w", err)
		}
		c.Source = domain.Source(src)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("docstore: unembedded chunks: %w", err)
	}
	return out, nil
}

// UpdateEmbedding writes a chunk's embedding vector.
func (s *Store) UpdateEmbedding(ctx context.Context, chunkID string, embedding []float32) error {
	if len(embedding) != EmbeddingDims {
		return fmt.Errorf("docstore: embedding for %s has %d dims, want %d",
			chunkID, len(embedding), EmbeddingDims)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE chunks SET embedding = $1::vector WHERE chunk_id = $2`,
		formatVector(embedding), chunkID)
	if err != nil {
		return fmt.Errorf("docstore: update embedding %s: %w", chunkID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("docstore: update embedding %s: chunk not found", chunkID)
	}
	return nil
}

// CountUnembedded reports how many chunks still need embeddings.
func (s *Store) CountUnembedded(ctx context.Context, source domain.Source) (int, error) {
	q := `SELECT COUNT(*) FROM chunks WHERE embedding IS NULL`
	var args []any
	if source != "" {
		q += " AND source = $1"
		args = append(args, string(source))
	}
	var n int
	if err := s.db.QueryRow(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("docstore: count unembedded: %w", err)
	}
	return n, nil
}
