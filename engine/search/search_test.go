package search

import (
	"context"
	"errors"
	"testing"

	"github.com/jurisgraph/jurisgraph/engine/domain"
)

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}

type fakeVectors struct {
	results []Result
	err     error
	filter  Filter
	source  domain.Source
}

func (f *fakeVectors) SearchFiltered(ctx context.Context, vector []float32, source domain.Source, filter Filter, limit int) ([]Result, error) {
	f.filter = filter
	f.source = source
	return f.results, f.err
}

type fakeKeywords struct {
	results []Result
	err     error
	terms   []string
}

func (f *fakeKeywords) KeywordSearch(ctx context.Context, terms []string, source domain.Source, filter Filter, limit int) ([]Result, error) {
	f.terms = terms
	return f.results, f.err
}

type fakeHistory struct {
	entries  int
	fallback bool
	err      error
}

func (f *fakeHistory) LogSearch(ctx context.Context, query, sourceFilter, regionFilter string, resultCount int, fallback bool) error {
	if f.err != nil {
		return f.err
	}
	f.entries++
	f.fallback = fallback
	return nil
}

func newEngine(t *testing.T, emb *fakeEmbedder, vec *fakeVectors, kw *fakeKeywords, hist *fakeHistory) *Engine {
	t.Helper()
	opts := EngineOpts{
		Cache:        testCache(t),
		Embedder:     emb,
		Vectors:      vec,
		Keywords:     kw,
		DefaultState: "GA",
	}
	if hist != nil {
		opts.History = hist
	}
	return NewEngine(opts)
}

func TestSearchVectorPath(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	vec := &fakeVectors{results: []Result{
		{ChunkID: "OCGA-16-5-1__chunk_0", Score: 0.92},
	}}
	hist := &fakeHistory{}
	e := newEngine(t, emb, vec, &fakeKeywords{}, hist)

	results, err := e.Search(context.Background(), Request{
		Query: "murder sentencing", RegionID: "GA", IncludeParents: true,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Fallback {
		t.Fatalf("expected one untagged vector result, got %v", results)
	}
	if hist.entries != 1 || hist.fallback {
		t.Errorf("search must be logged as vector path")
	}
	if len(vec.filter.Clauses) == 0 {
		t.Error("jurisdiction filter must reach the vector store")
	}
}

func TestSearchFallsBackWhenEmbeddingUnavailable(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("connection refused")}
	kw := &fakeKeywords{results: []Result{
		{ChunkID: "ATL-74-133__chunk_0", Cite: "ATL-74-133"},
	}}
	hist := &fakeHistory{}
	e := newEngine(t, emb, &fakeVectors{}, kw, hist)

	results, err := e.Search(context.Background(), Request{
		Query: "noise ordinance", RegionID: "GA-ATLANTA", IncludeParents: true,
	})
	if err != nil {
		t.Fatalf("Search must not fail when fallback succeeds: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected fallback results, got %d", len(results))
	}
	if !results[0].Fallback {
		t.Error("fallback results must be tagged")
	}
	if results[0].Score != FallbackScore {
		t.Errorf("fallback score = %f, want %f", results[0].Score, FallbackScore)
	}
	if len(kw.terms) != 2 {
		t.Errorf("expected terms [noise ordinance], got %v", kw.terms)
	}
	if !hist.fallback {
		t.Error("history must record the fallback")
	}
}

func TestSearchFallsBackOnVectorStoreError(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.1}}
	vec := &fakeVectors{err: errors.New("qdrant unavailable")}
	kw := &fakeKeywords{results: []Result{{ChunkID: "x"}}}
	e := newEngine(t, emb, vec, kw, nil)

	results, err := e.Search(context.Background(), Request{Query: "speed limits"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || !results[0].Fallback {
		t.Fatalf("expected tagged fallback results, got %v", results)
	}
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.1}}
	e := newEngine(t, emb, &fakeVectors{}, &fakeKeywords{}, nil)

	results, err := e.Search(context.Background(), Request{Query: "zoning variance"})
	if err != nil {
		t.Fatalf("empty result set must not error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", results)
	}
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	e := newEngine(t, &fakeEmbedder{}, &fakeVectors{}, &fakeKeywords{}, nil)
	if _, err := e.Search(context.Background(), Request{Query: "   "}); !errors.Is(err, domain.ErrEmptyQuery) {
		t.Fatalf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearchHistoryFailureDoesNotFailSearch(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.1}}
	vec := &fakeVectors{results: []Result{{ChunkID: "x"}}}
	hist := &fakeHistory{err: errors.New("table missing")}
	e := newEngine(t, emb, vec, &fakeKeywords{}, hist)

	if _, err := e.Search(context.Background(), Request{Query: "permits"}); err != nil {
		t.Fatalf("history failure must not fail the search: %v", err)
	}
}

func TestSearchBreakerSkipsEmbedderWhenOpen(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("timeout")}
	kw := &fakeKeywords{results: []Result{{ChunkID: "x"}}}
	e := newEngine(t, emb, &fakeVectors{}, kw, nil)

	// Trip the breaker with repeated failures.
	for i := 0; i < 6; i++ {
		_, _ = e.Search(context.Background(), Request{Query: "noise ordinance"})
	}
	calls := emb.calls

	if _, err := e.Search(context.Background(), Request{Query: "noise ordinance"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if emb.calls != calls {
		t.Errorf("open breaker must skip the embedder, calls went %d -> %d", calls, emb.calls)
	}
}
