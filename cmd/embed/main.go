// Command embed runs pass 2 of the pipeline: it selects chunks whose
// embedding is still NULL, generates embeddings in batches, and writes each
// vector to Postgres and to the Qdrant index. The pass is resumable; a
// failed batch is skipped and reported, not fatal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/jurisgraph/jurisgraph/engine/docstore"
	"github.com/jurisgraph/jurisgraph/engine/domain"
	"github.com/jurisgraph/jurisgraph/engine/semantic"
	"github.com/jurisgraph/jurisgraph/pkg/embedding"
	"github.com/jurisgraph/jurisgraph/pkg/fn"
)

func main() {
	var (
		sourceFlag = flag.String("source", "", "only embed chunks from this source")
		limit      = flag.Int("limit", 0, "cap the number of chunks processed (0 = all)")
		batchSize  = flag.Int("batch-size", 100, "chunks per embedding request")
		skipQdrant = flag.Bool("skip-qdrant", false, "write embeddings to Postgres only")
	)
	flag.Parse()
	_ = godotenv.Load()

	log := slog.Default()
	ctx := context.Background()

	var source domain.Source
	if *sourceFlag != "" {
		var err error
		if source, err = domain.ParseSource(*sourceFlag); err != nil {
			log.Error("embed: invalid -source", "error", err)
			os.Exit(1)
		}
	}

	client, err := embedding.NewClient(embedding.Config{
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:     os.Getenv("AZURE_OPENAI_KEY"),
		Model:      os.Getenv("AZURE_OPENAI_EMBEDDING_MODEL"),
		APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
	})
	if err != nil {
		log.Error("embed: embedding client", "error", err)
		os.Exit(1)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Error("embed: DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Error("embed: connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := docstore.NewStore(pool)

	var vs *semantic.VectorStore
	if !*skipQdrant {
		vs, err = semantic.New(envOr("QDRANT_ADDR", "localhost:6334"), envOr("QDRANT_COLLECTION", "jurisgraph"))
		if err != nil {
			log.Error("embed: connect qdrant", "error", err)
			os.Exit(1)
		}
		defer vs.Close()
		if err := vs.EnsureCollection(ctx, docstore.EmbeddingDims); err != nil {
			log.Error("embed: ensure collection", "error", err)
			os.Exit(1)
		}
	}

	chunks, err := store.UnembeddedChunks(ctx, source, *limit)
	if err != nil {
		log.Error("embed: select chunks", "error", err)
		os.Exit(1)
	}
	if len(chunks) == 0 {
		fmt.Println("No chunks need embeddings.")
		return
	}
	log.Info("embed: starting", "chunks", len(chunks), "batch_size", *batchSize)

	embedded, failedBatches := 0, 0
	batches := fn.Chunk(chunks, *batchSize)
	for bi, batch := range batches {
		texts := fn.Map(batch, func(c domain.Chunk) string { return c.Text })
		// Transient API failures get retried with backoff before the batch is
		// given up on; a skipped batch stays unembedded for the next run.
		result := fn.Retry(ctx, fn.DefaultRetry, func(ctx context.Context) fn.Result[[][]float32] {
			return fn.FromPair(client.EmbedBatch(ctx, texts))
		})
		vectors, err := result.Unwrap()
		if err != nil {
			failedBatches++
			log.Error("embed: batch failed", "batch", bi, "size", len(batch), "error", err)
			continue
		}

		ok := true
		for i, c := range batch {
			if err := store.UpdateEmbedding(ctx, c.ChunkID, vectors[i]); err != nil {
				log.Error("embed: store vector", "chunk_id", c.ChunkID, "error", err)
				ok = false
				continue
			}
			embedded++
		}
		if vs != nil {
			if err := vs.UpsertChunks(ctx, batch, vectors); err != nil {
				log.Error("embed: index batch", "batch", bi, "error", err)
				ok = false
			}
		}
		if ok {
			log.Info("embed: batch done", "batch", bi+1, "of", len(batches))
		}
	}

	fmt.Printf("Embedded %d/%d chunks (%d failed batches)\n", embedded, len(chunks), failedBatches)
	if embedded == 0 {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
