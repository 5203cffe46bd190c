package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jurisgraph/jurisgraph/engine/domain"
)

const (
	// DefaultMaxWords is the word-window size per chunk.
	DefaultMaxWords = 750
	// DefaultOverlapWords is the number of words shared between consecutive chunks.
	DefaultOverlapWords = 75
)

// ErrChunkConfig rejects window parameters that would never make progress.
var ErrChunkConfig = errors.New("ingest: overlap must be smaller than max words, max words positive")

// ChunkWords splits text into overlapping word windows. Text at or under the
// window size comes back whole as a single chunk. Each subsequent window
// starts overlapWords before the previous one ended, so consecutive chunks
// share exactly that many words; the final chunk may be shorter.
func ChunkWords(text string, maxWords, overlapWords int) ([]string, error) {
	if maxWords <= 0 || overlapWords < 0 || overlapWords >= maxWords {
		return nil, fmt.Errorf("%w (max=%d overlap=%d)", ErrChunkConfig, maxWords, overlapWords)
	}

	words := strings.Fields(text)
	if len(words) <= maxWords {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for start < len(words) {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}
		start = end - overlapWords
	}
	return chunks, nil
}

// BuildChunks splits an enriched document into chunks carrying all the
// denormalized jurisdiction fields. Chunk ids are deterministic per
// document+index, so re-chunking with the same parameters reuses them.
func BuildChunks(doc domain.Document, maxWords, overlapWords int) ([]domain.Chunk, error) {
	texts, err := ChunkWords(doc.FullText, maxWords, overlapWords)
	if err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ChunkID:      fmt.Sprintf("%s__chunk_%d", doc.Cite, i),
			DocumentCite: doc.Cite,
			Index:        i,
			Total:        len(texts),
			Text:         text,
			Source:       doc.Source,
			Cite:         doc.Cite,
			Title:        doc.Title,
			TitleNum:     doc.Extra["title_num"],
			Chapter:      doc.Extra["chapter"],
			SourceURL:    doc.SourceURL,
			Date:         doc.Date,
			Jurisdiction: doc.Jurisdiction,
		}
	}
	return chunks, nil
}

// SurrogateCite derives a stable citation for documents that arrive without
// one, keyed on content so re-ingesting the same document upserts rather
// than duplicates.
func SurrogateCite(raw domain.RawDocument) string {
	seed := string(raw.Source) + "|" + raw.Title + "|" + raw.Text
	return "doc-" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}
