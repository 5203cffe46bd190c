// Command setup creates the database schema, loads the region reference
// dataset, and ensures the Qdrant collection exists.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/jurisgraph/jurisgraph/engine/docstore"
	"github.com/jurisgraph/jurisgraph/engine/region"
	"github.com/jurisgraph/jurisgraph/engine/semantic"
)

func main() {
	var (
		regionsFile = flag.String("regions", "data/georgia_regions.json", "region reference dataset")
		skipQdrant  = flag.Bool("skip-qdrant", false, "skip Qdrant collection setup")
	)
	flag.Parse()
	_ = godotenv.Load()

	log := slog.Default()
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Error("setup: DATABASE_URL is required")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Error("setup: connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	regions := region.NewStore(pool)
	if err := regions.CreateSchema(ctx); err != nil {
		log.Error("setup: region schema", "error", err)
		os.Exit(1)
	}
	docs := docstore.NewStore(pool)
	if err := docs.CreateSchema(ctx); err != nil {
		log.Error("setup: document schema", "error", err)
		os.Exit(1)
	}
	log.Info("setup: schema ready")

	ds, err := region.LoadDatasetFile(*regionsFile)
	if err != nil {
		log.Error("setup: load region dataset", "file", *regionsFile, "error", err)
		os.Exit(1)
	}
	if err := regions.Load(ctx, ds); err != nil {
		log.Error("setup: store region dataset", "error", err)
		os.Exit(1)
	}
	log.Info("setup: regions loaded", "regions", len(ds.Regions), "relationships", len(ds.Relationships))

	if !*skipQdrant {
		addr := envOr("QDRANT_ADDR", "localhost:6334")
		collection := envOr("QDRANT_COLLECTION", "jurisgraph")
		vs, err := semantic.New(addr, collection)
		if err != nil {
			log.Error("setup: connect qdrant", "addr", addr, "error", err)
			os.Exit(1)
		}
		defer vs.Close()
		if err := vs.EnsureCollection(ctx, docstore.EmbeddingDims); err != nil {
			log.Error("setup: ensure collection", "collection", collection, "error", err)
			os.Exit(1)
		}
		log.Info("setup: qdrant collection ready", "collection", collection, "dims", docstore.EmbeddingDims)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
