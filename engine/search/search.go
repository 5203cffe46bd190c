package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jurisgraph/jurisgraph/engine/domain"
	"github.com/jurisgraph/jurisgraph/engine/region"
	"github.com/jurisgraph/jurisgraph/pkg/fn"
	"github.com/jurisgraph/jurisgraph/pkg/resilience"
)

// DefaultLimit is the result count when the request does not set one.
const DefaultLimit = 10

// FallbackScore is the constant placeholder score on keyword results, far
// below any plausible cosine similarity so fallback hits never outrank
// vector hits if the two are ever merged.
const FallbackScore = 0.1

// Request is a retrieval query.
type Request struct {
	Query          string
	Limit          int
	Source         domain.Source // empty = all sources
	RegionID       string        // empty = no jurisdiction filter
	IncludeParents bool
}

// Result is a ranked retrieval hit. Fallback marks keyword-path results so
// callers can distinguish them from vector similarity scores.
type Result struct {
	ChunkID    string
	Cite       string
	Title      string
	Text       string
	Source     domain.Source
	RegionName string
	Score      float32
	Fallback   bool
}

// Embedder turns query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorSearcher runs filtered nearest-neighbor search over chunk embeddings.
type VectorSearcher interface {
	SearchFiltered(ctx context.Context, vector []float32, source domain.Source, filter Filter, limit int) ([]Result, error)
}

// KeywordSearcher runs the substring fallback over the chunk store.
type KeywordSearcher interface {
	KeywordSearch(ctx context.Context, terms []string, source domain.Source, filter Filter, limit int) ([]Result, error)
}

// HistoryLogger records search calls for observability.
type HistoryLogger interface {
	LogSearch(ctx context.Context, query, sourceFilter, regionFilter string, resultCount int, fallback bool) error
}

// Engine combines embedding, vector search, and the keyword fallback behind
// one Search call. The breaker around the embedder turns a flapping embedding
// service into fast fallbacks instead of per-query timeouts.
type Engine struct {
	cache        *region.Cache
	embedder     Embedder
	breaker      *resilience.Breaker
	vectors      VectorSearcher
	keywords     KeywordSearcher
	history      HistoryLogger
	defaultState string
	log          *slog.Logger
}

// EngineOpts wires an Engine. History and Logger are optional.
type EngineOpts struct {
	Cache        *region.Cache
	Embedder     Embedder
	Vectors      VectorSearcher
	Keywords     KeywordSearcher
	History      HistoryLogger
	DefaultState string
	Breaker      *resilience.Breaker
	Logger       *slog.Logger
}

// NewEngine creates a retrieval engine.
func NewEngine(opts EngineOpts) *Engine {
	b := opts.Breaker
	if b == nil {
		b = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cache:        opts.Cache,
		embedder:     opts.Embedder,
		breaker:      b,
		vectors:      opts.Vectors,
		keywords:     opts.Keywords,
		history:      opts.History,
		defaultState: opts.DefaultState,
		log:          log,
	}
}

// Search runs a jurisdiction-scoped retrieval. The vector path is primary;
// any failure obtaining the embedding or querying the index degrades to the
// keyword fallback with tagged results. An empty result list is a valid
// outcome, not an error.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}

	var filter Filter
	if req.RegionID != "" {
		filter = BuildFilter(e.cache, req.RegionID, req.IncludeParents, e.defaultState)
	}

	results, err := e.vectorSearch(ctx, req, filter)
	fallback := false
	if err != nil {
		e.log.Warn("search: vector path unavailable, falling back to keywords",
			"error", err, "query", req.Query)
		fallback = true
		results, err = e.keywordSearch(ctx, req, filter)
		if err != nil {
			return nil, fmt.Errorf("search: fallback: %w", err)
		}
	}

	e.logHistory(ctx, req, len(results), fallback)
	return results, nil
}

func (e *Engine) vectorSearch(ctx context.Context, req Request, filter Filter) ([]Result, error) {
	embedded := resilience.CallResult(e.breaker, ctx, func(ctx context.Context) fn.Result[[]float32] {
		return fn.FromPair(e.embedder.Embed(ctx, req.Query))
	})
	vector, err := embedded.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := e.vectors.SearchFiltered(ctx, vector, req.Source, filter, req.Limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return results, nil
}

func (e *Engine) keywordSearch(ctx context.Context, req Request, filter Filter) ([]Result, error) {
	terms := ExtractTerms(req.Query)
	if len(terms) == 0 {
		return nil, nil
	}
	results, err := e.keywords.KeywordSearch(ctx, terms, req.Source, filter, req.Limit)
	if err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Fallback = true
		results[i].Score = FallbackScore
	}
	return results, nil
}

// logHistory records the search; failures are warned, never surfaced.
func (e *Engine) logHistory(ctx context.Context, req Request, count int, fallback bool) {
	if e.history == nil {
		return
	}
	if err := e.history.LogSearch(ctx, req.Query, string(req.Source), req.RegionID, count, fallback); err != nil {
		e.log.Warn("search: history log failed", "error", err)
	}
}

// ExtractTerms tokenizes a query for the keyword fallback: lowercased terms
// longer than two characters, deduplicated, order preserved.
func ExtractTerms(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	cleaned := fn.Map(words, func(w string) string {
		return strings.Trim(w, `.,;:!?"'()`)
	})
	return fn.Unique(fn.Filter(cleaned, func(w string) bool { return len(w) > 2 }))
}
