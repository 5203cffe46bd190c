package ingest

import (
	"context"

	"github.com/jurisgraph/jurisgraph/engine/domain"
)

// ChunkedDoc is an enriched document together with its chunks, ready for the
// store stage.
type ChunkedDoc struct {
	Doc    domain.Document
	Chunks []domain.Chunk
}

// DocumentWriter persists a document and its chunks atomically.
// Implemented by docstore.Store.
type DocumentWriter interface {
	UpsertDocument(ctx context.Context, doc domain.Document, chunks []domain.Chunk) error
}

// Enricher resolves and stamps jurisdiction fields. Implemented by
// region.Enricher.
type Enricher interface {
	Enrich(raw domain.RawDocument) domain.Document
}

// Purger removes vector index points past a document's new chunk count.
// Implemented by semantic.VectorStore; optional on Deps.
type Purger interface {
	DeleteStaleChunks(ctx context.Context, cite string, fromIndex int) error
}
