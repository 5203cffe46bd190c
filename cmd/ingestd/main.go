// Command ingestd is the long-running ingestion daemon: it consumes raw
// documents from NATS, runs them through the ingestion pipeline, and serves
// Prometheus metrics on :9091. Repeatedly failing documents land on the DLQ.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/jurisgraph/jurisgraph/engine/docstore"
	"github.com/jurisgraph/jurisgraph/engine/ingest"
	"github.com/jurisgraph/jurisgraph/engine/region"
	"github.com/jurisgraph/jurisgraph/engine/semantic"
	"github.com/jurisgraph/jurisgraph/pkg/metrics"
	"github.com/jurisgraph/jurisgraph/pkg/natsutil"
)

func main() {
	var (
		defaultState = flag.String("default-state", "GA", "default state region id")
		skipQdrant   = flag.Bool("skip-qdrant", false, "skip stale vector-point cleanup")
		metricsPort  = flag.Int("metrics-port", 9091, "port for the /metrics endpoint")
	)
	flag.Parse()
	_ = godotenv.Load()

	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Error("ingestd: DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Error("ingestd: connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	cache := region.NewCache(region.NewStore(pool))
	if err := cache.Rebuild(ctx); err != nil {
		log.Error("ingestd: build region cache", "error", err)
		os.Exit(1)
	}
	log.Info("ingestd: region cache ready", "regions", cache.Len())

	natsURL := envOr("NATS_URL", nats.DefaultURL)
	nc, err := nats.Connect(natsURL, nats.Name("jurisgraph-ingestd"))
	if err != nil {
		log.Error("ingestd: connect nats", "url", natsURL, "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	var purger ingest.Purger
	if !*skipQdrant {
		vs, err := semantic.New(envOr("QDRANT_ADDR", "localhost:6334"), envOr("QDRANT_COLLECTION", "jurisgraph"))
		if err != nil {
			log.Error("ingestd: connect qdrant", "error", err)
			os.Exit(1)
		}
		defer vs.Close()
		purger = vs
	}

	met := metrics.New()
	met.ServeAsync(*metricsPort)

	sub, err := ingest.StartConsumer(nc, ingest.Deps{
		Enricher: region.NewEnricher(cache, *defaultState),
		Writer:   docstore.NewStore(pool),
		Purger:   purger,
		Logger:   log,
		Metrics:  met,
	})
	if err != nil {
		log.Error("ingestd: subscribe", "error", err)
		os.Exit(1)
	}
	defer sub.Drain()

	// Watch the DLQ so dead documents show up in the logs with their error.
	type dlqEntry struct {
		Error   string `json:"error"`
		Retries int    `json:"retries"`
		Document struct {
			Cite string `json:"cite"`
		} `json:"document"`
	}
	dlqSub, err := natsutil.Subscribe(nc, ingest.DLQSubject, func(_ context.Context, e dlqEntry) {
		log.Warn("ingestd: document dead-lettered",
			"cite", e.Document.Cite, "retries", e.Retries, "error", e.Error)
	})
	if err != nil {
		log.Error("ingestd: subscribe dlq", "error", err)
		os.Exit(1)
	}
	defer dlqSub.Drain()

	log.Info("ingestd: consuming", "subject", ingest.IngestSubject, "metrics_port", *metricsPort)
	<-ctx.Done()
	log.Info("ingestd: shutting down")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
