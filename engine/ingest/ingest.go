// Package ingest provides the ingestion pipeline that runs raw legal
// documents through validation, jurisdiction enrichment, chunking, and
// storage stages, plus a NATS consumer exposing the same pipeline as a
// streaming surface.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jurisgraph/jurisgraph/engine/domain"
	"github.com/jurisgraph/jurisgraph/pkg/fn"
	"github.com/jurisgraph/jurisgraph/pkg/metrics"
)

const (
	// IngestSubject is the NATS subject for incoming raw documents.
	IngestSubject = "jurisgraph.ingest"
	// DLQSubject is the dead letter queue subject for failed messages.
	DLQSubject = "jurisgraph.ingest.dlq"
	// MaxRetries before sending to DLQ.
	MaxRetries = 3
)

// Deps holds the external dependencies for the ingestion pipeline.
type Deps struct {
	Enricher     Enricher
	Writer       DocumentWriter
	Purger       Purger // optional; nil skips vector-point cleanup
	MaxWords     int
	OverlapWords int
	Logger       *slog.Logger
	Metrics      *metrics.Registry
}

func (d Deps) window() (int, int) {
	max, overlap := d.MaxWords, d.OverlapWords
	if max == 0 {
		max = DefaultMaxWords
	}
	if overlap == 0 {
		overlap = DefaultOverlapWords
	}
	return max, overlap
}

// --- Pipeline stages ---

// Validate checks a RawDocument via domain validation.
var Validate fn.Stage[domain.RawDocument, domain.RawDocument] = func(_ context.Context, raw domain.RawDocument) fn.Result[domain.RawDocument] {
	if err := domain.ValidateRawDocument(raw); err != nil {
		return fn.Err[domain.RawDocument](err)
	}
	return fn.Ok(raw)
}

// NewEnrich creates the enrichment stage. Documents arriving without a cite
// get a content-derived surrogate here so everything downstream has a key.
func NewEnrich(enricher Enricher) fn.Stage[domain.RawDocument, domain.Document] {
	return func(_ context.Context, raw domain.RawDocument) fn.Result[domain.Document] {
		if raw.Cite == "" {
			raw.Cite = SurrogateCite(raw)
		}
		return fn.Ok(enricher.Enrich(raw))
	}
}

// NewChunk creates the chunking stage with the configured word window.
func NewChunk(maxWords, overlapWords int) fn.Stage[domain.Document, ChunkedDoc] {
	return func(_ context.Context, doc domain.Document) fn.Result[ChunkedDoc] {
		chunks, err := BuildChunks(doc, maxWords, overlapWords)
		if err != nil {
			return fn.Err[ChunkedDoc](err)
		}
		return fn.Ok(ChunkedDoc{Doc: doc, Chunks: chunks})
	}
}

// NewStore creates the store stage; it returns the document cite. After a
// successful write, points past the new chunk count are purged from the
// vector index. Purge failures leave only stale trailing points behind, so
// they are logged rather than failing the document.
func NewStore(w DocumentWriter, purger Purger, log *slog.Logger) fn.Stage[ChunkedDoc, string] {
	return func(ctx context.Context, cd ChunkedDoc) fn.Result[string] {
		if err := w.UpsertDocument(ctx, cd.Doc, cd.Chunks); err != nil {
			return fn.Err[string](fmt.Errorf("ingest: store %s: %w", cd.Doc.Cite, err))
		}
		if purger != nil {
			if err := purger.DeleteStaleChunks(ctx, cd.Doc.Cite, len(cd.Chunks)); err != nil {
				log.Warn("ingest: stale point cleanup failed", "cite", cd.Doc.Cite, "error", err)
			}
		}
		return fn.Ok(cd.Doc.Cite)
	}
}

// LoggedTap returns a stage that logs entry/exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(ctx context.Context, t T) fn.Result[T] {
		log.Debug("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Debug("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline constructs the full ingestion pipeline with all stages wired:
// Validate, Enrich, Chunk, Store, with tracing spans per stage.
func NewPipeline(deps Deps) fn.Stage[domain.RawDocument, string] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	maxWords, overlapWords := deps.window()

	validated := fn.Then(LoggedTap[domain.RawDocument]("validate", log),
		fn.TracedStage("ingest.validate", Validate))
	enriched := fn.Then(validated,
		fn.TracedStage("ingest.enrich", NewEnrich(deps.Enricher)))
	chunked := fn.Then(enriched,
		fn.TracedStage("ingest.chunk", NewChunk(maxWords, overlapWords)))
	stored := fn.Then(chunked,
		fn.TracedStage("ingest.store", NewStore(deps.Writer, deps.Purger, log)))

	return stored
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Document domain.RawDocument `json:"document"`
	Error    string             `json:"error"`
	Retries  int                `json:"retries"`
}

// StartConsumer subscribes the pipeline to the ingest subject. Failed
// documents are re-published with an incremented retry header; after
// MaxRetries they go to the DLQ with the error attached.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	met := deps.Metrics
	if met == nil {
		met = metrics.New()
	}
	mDocs := func(source string) *metrics.Counter {
		return met.Counter(metrics.WithLabels("jurisgraph_ingest_docs_total", "source", source),
			"Documents ingested")
	}
	mErrors := met.Counter("jurisgraph_ingest_errors_total", "Pipeline failures")
	mDLQ := met.Counter("jurisgraph_ingest_dlq_total", "Messages sent to the DLQ")
	mDur := met.Histogram("jurisgraph_ingest_pipeline_duration_seconds", "Per-document pipeline time", nil)

	return nc.Subscribe(IngestSubject, func(msg *nats.Msg) {
		var raw domain.RawDocument
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()
		started := time.Now()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get("X-Retry-Count"); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, raw)
		mDur.Since(started)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			mErrors.Inc()
			log.Error("ingest: pipeline failed",
				"error", pipeErr,
				"cite", raw.Cite,
				"retry", retries,
			)

			if retries >= MaxRetries {
				mDLQ.Inc()
				dlq := dlqMessage{Document: raw, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(IngestSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set("X-Retry-Count", fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
		} else {
			cite, _ := result.Unwrap()
			mDocs(string(raw.Source)).Inc()
			log.Info("ingest: success", "cite", cite)
		}

		if msg.Reply != "" {
			_ = msg.Ack()
		}
	})
}
