// Command search runs a jurisdiction-scoped query against the chunk index:
// vector similarity when the embedding service is reachable, keyword
// fallback otherwise.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/jurisgraph/jurisgraph/engine/docstore"
	"github.com/jurisgraph/jurisgraph/engine/domain"
	"github.com/jurisgraph/jurisgraph/engine/region"
	"github.com/jurisgraph/jurisgraph/engine/search"
	"github.com/jurisgraph/jurisgraph/engine/semantic"
	"github.com/jurisgraph/jurisgraph/pkg/embedding"
)

const snippetLen = 300

func main() {
	var (
		limit        = flag.Int("limit", 10, "maximum results")
		sourceFlag   = flag.String("source", "", "restrict to a source: CODE, CASE_LAW, or ORDINANCE")
		regionID     = flag.String("region", "", "restrict to a region id, e.g. GA-ATLANTA")
		regionOnly   = flag.Bool("region-only", false, "match the region itself, not its parents")
		full         = flag.Bool("full", false, "print full chunk text instead of a snippet")
		defaultState = flag.String("default-state", "GA", "default state region id")
	)
	flag.Parse()
	_ = godotenv.Load()

	log := slog.Default()
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, `usage: search [flags] "query text"`)
		os.Exit(1)
	}

	var source domain.Source
	if *sourceFlag != "" {
		var err error
		if source, err = domain.ParseSource(*sourceFlag); err != nil {
			log.Error("search: invalid -source", "error", err)
			os.Exit(1)
		}
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Error("search: DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Error("search: connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := docstore.NewStore(pool)

	cache := region.NewCache(region.NewStore(pool))
	if err := cache.Rebuild(ctx); err != nil {
		log.Error("search: build region cache", "error", err)
		os.Exit(1)
	}

	vs, err := semantic.New(envOr("QDRANT_ADDR", "localhost:6334"), envOr("QDRANT_COLLECTION", "jurisgraph"))
	if err != nil {
		log.Error("search: connect qdrant", "error", err)
		os.Exit(1)
	}
	defer vs.Close()

	// A missing embedding config is not fatal here: the engine degrades to
	// keyword search, which is exactly the offline behavior we want.
	var embedder search.Embedder
	client, err := embedding.NewClient(embedding.Config{
		Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		APIKey:     os.Getenv("AZURE_OPENAI_KEY"),
		Model:      os.Getenv("AZURE_OPENAI_EMBEDDING_MODEL"),
		APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
	})
	if err != nil {
		log.Warn("search: embedding unavailable, keyword fallback only", "error", err)
		embedder = unavailableEmbedder{err: err}
	} else {
		embedder = client
	}

	engine := search.NewEngine(search.EngineOpts{
		Cache:        cache,
		Embedder:     embedder,
		Vectors:      vs,
		Keywords:     store,
		History:      store,
		DefaultState: *defaultState,
		Logger:       log,
	})

	results, err := engine.Search(ctx, search.Request{
		Query:          query,
		Limit:          *limit,
		Source:         source,
		RegionID:       *regionID,
		IncludeParents: !*regionOnly,
	})
	if err != nil {
		log.Error("search: failed", "error", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}

	for i, r := range results {
		tag := ""
		if r.Fallback {
			tag = " [keyword fallback]"
		}
		fmt.Printf("%d. %s — %s (%s, score %.3f)%s\n", i+1, r.Cite, r.Title, r.Source, r.Score, tag)
		if r.RegionName != "" {
			fmt.Printf("   jurisdiction: %s\n", r.RegionName)
		}
		text := r.Text
		if !*full && len(text) > snippetLen {
			text = text[:snippetLen] + "..."
		}
		fmt.Printf("   %s\n\n", text)
	}
}

// unavailableEmbedder fails every call with the configuration error, letting
// the engine's fallback path take over.
type unavailableEmbedder struct{ err error }

func (u unavailableEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, u.err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
