// Command ingest runs pass 1 of the pipeline: it reads JSONL files of raw
// legal documents, enriches them with resolved jurisdictions, chunks them,
// and writes documents and chunks to Postgres. Embeddings are generated
// separately by the embed command.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/jurisgraph/jurisgraph/engine/docstore"
	"github.com/jurisgraph/jurisgraph/engine/domain"
	"github.com/jurisgraph/jurisgraph/engine/ingest"
	"github.com/jurisgraph/jurisgraph/engine/region"
	"github.com/jurisgraph/jurisgraph/engine/semantic"
	"github.com/jurisgraph/jurisgraph/pkg/fn"
	"github.com/jurisgraph/jurisgraph/pkg/natsutil"
)

// defaultSources are the known source files loaded by -all.
var defaultSources = []struct {
	file   string
	source domain.Source
}{
	{"data/ga_code.jsonl", domain.SourceCode},
	{"data/case_law.jsonl", domain.SourceCaseLaw},
	{"data/ordinances.jsonl", domain.SourceOrdinance},
}

const ingestWorkers = 4

func main() {
	var (
		all          = flag.Bool("all", false, "ingest all known source files")
		sourceFile   = flag.String("source", "", "JSONL file to ingest")
		sourceType   = flag.String("source-type", "", "source of the file: CODE, CASE_LAW, or ORDINANCE")
		publish      = flag.Bool("publish", false, "publish documents to NATS instead of writing directly")
		skipQdrant   = flag.Bool("skip-qdrant", false, "skip stale vector-point cleanup")
		defaultState = flag.String("default-state", "GA", "default state region id")
		maxWords     = flag.Int("max-words", ingest.DefaultMaxWords, "words per chunk")
		overlapWords = flag.Int("overlap", ingest.DefaultOverlapWords, "words shared between chunks")
	)
	flag.Parse()
	_ = godotenv.Load()

	log := slog.Default()
	ctx := context.Background()

	type job struct {
		file   string
		source domain.Source
	}
	var jobs []job
	switch {
	case *all:
		for _, s := range defaultSources {
			jobs = append(jobs, job{s.file, s.source})
		}
	case *sourceFile != "":
		src, err := domain.ParseSource(*sourceType)
		if err != nil {
			log.Error("ingest: invalid -source-type", "error", err)
			os.Exit(1)
		}
		jobs = append(jobs, job{*sourceFile, src})
	default:
		log.Error("ingest: either -all or -source with -source-type is required")
		os.Exit(1)
	}

	if *publish {
		nc, err := nats.Connect(envOr("NATS_URL", nats.DefaultURL))
		if err != nil {
			log.Error("ingest: connect nats", "error", err)
			os.Exit(1)
		}
		defer nc.Close()

		published, failed := 0, 0
		for _, j := range jobs {
			docs, err := readJSONL(j.file, j.source)
			if err != nil {
				log.Error("ingest: read source file", "file", j.file, "error", err)
				failed++
				continue
			}
			for _, raw := range docs {
				if err := natsutil.Publish(ctx, nc, ingest.IngestSubject, raw); err != nil {
					log.Error("ingest: publish", "cite", raw.Cite, "error", err)
					failed++
					continue
				}
				published++
			}
		}
		fmt.Printf("Published %d documents (%d failures)\n", published, failed)
		if published == 0 {
			os.Exit(1)
		}
		return
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Error("ingest: DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Error("ingest: connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	cache := region.NewCache(region.NewStore(pool))
	if err := cache.Rebuild(ctx); err != nil {
		log.Error("ingest: build region cache", "error", err)
		os.Exit(1)
	}
	log.Info("ingest: region cache ready", "regions", cache.Len())

	var purger ingest.Purger
	if !*skipQdrant {
		vs, err := semantic.New(envOr("QDRANT_ADDR", "localhost:6334"), envOr("QDRANT_COLLECTION", "jurisgraph"))
		if err != nil {
			log.Error("ingest: connect qdrant", "error", err)
			os.Exit(1)
		}
		defer vs.Close()
		purger = vs
	}

	pipeline := ingest.NewPipeline(ingest.Deps{
		Enricher:     region.NewEnricher(cache, *defaultState),
		Writer:       docstore.NewStore(pool),
		Purger:       purger,
		MaxWords:     *maxWords,
		OverlapWords: *overlapWords,
		Logger:       log,
	})

	succeeded, failed := 0, 0
	for _, j := range jobs {
		docs, err := readJSONL(j.file, j.source)
		if err != nil {
			log.Error("ingest: read source file", "file", j.file, "error", err)
			failed++
			continue
		}
		log.Info("ingest: processing file", "file", j.file, "source", j.source, "documents", len(docs))

		results := fn.ParMapResult(docs, ingestWorkers, func(raw domain.RawDocument) fn.Result[string] {
			return pipeline(ctx, raw)
		})
		for i, r := range results {
			if cite, err := r.Unwrap(); err != nil {
				log.Error("ingest: document failed", "file", j.file, "index", i, "error", err)
				failed++
			} else {
				log.Debug("ingest: document stored", "cite", cite)
				succeeded++
			}
		}
	}

	fmt.Printf("Ingested %d documents, %d failures\n", succeeded, failed)
	if succeeded == 0 {
		os.Exit(1)
	}
}

// readJSONL reads one raw document per line; the file's declared source
// overrides anything in the record.
func readJSONL(path string, source domain.Source) ([]domain.RawDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []domain.RawDocument
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var raw domain.RawDocument
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		raw.Source = source
		docs = append(docs, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
