package fn

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResultBasics(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok must be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("Unwrap = %v, %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("Err must not be ok")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr = %d", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("nil error must be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("non-nil error must be err")
	}
}

func TestCollect(t *testing.T) {
	ok := Collect([]Result[int]{Ok(1), Ok(2)})
	vs, err := ok.Unwrap()
	if err != nil || len(vs) != 2 {
		t.Fatalf("Collect ok = %v, %v", vs, err)
	}

	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("boom"))})
	if bad.IsOk() {
		t.Fatal("Collect must surface the first error")
	}
}

func TestPipelineShortCircuits(t *testing.T) {
	calls := 0
	double := Stage[int, int](func(_ context.Context, n int) Result[int] {
		calls++
		return Ok(n * 2)
	})
	fail := Stage[int, int](func(_ context.Context, n int) Result[int] {
		calls++
		return Errf[int]("stop at %d", n)
	})

	r := Pipeline(double, fail, double)(context.Background(), 1)
	if r.IsOk() {
		t.Fatal("expected pipeline error")
	}
	if calls != 2 {
		t.Fatalf("stage after failure must not run, calls = %d", calls)
	}
}

func TestThenComposesTypes(t *testing.T) {
	parse := Stage[string, int](func(_ context.Context, s string) Result[int] {
		return Ok(len(s))
	})
	describe := Stage[int, string](func(_ context.Context, n int) Result[string] {
		return Ok(strings.Repeat("*", n))
	})

	r := Then(parse, describe)(context.Background(), "abc")
	v, err := r.Unwrap()
	if err != nil || v != "***" {
		t.Fatalf("Then = %q, %v", v, err)
	}
}

func TestParMapResultPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results := ParMapResult(items, 2, func(n int) Result[int] {
		return Ok(n * n)
	})
	for i, r := range results {
		v, _ := r.Unwrap()
		if v != items[i]*items[i] {
			t.Fatalf("results[%d] = %d", i, v)
		}
	}
}

func TestChunk(t *testing.T) {
	got := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(got) != 3 || len(got[0]) != 2 || len(got[2]) != 1 {
		t.Fatalf("Chunk = %v", got)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("non-positive size must return nil")
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: 0}, func(context.Context) Result[int] {
		attempts++
		return Errf[int]("still down")
	})
	if r.IsOk() {
		t.Fatal("exhausted retries must surface the error")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryEventuallySucceeds(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: 0}, func(context.Context) Result[int] {
		attempts++
		if attempts < 3 {
			return Errf[int]("transient")
		}
		return Ok(attempts)
	})
	v, err := r.Unwrap()
	if err != nil || v != 3 {
		t.Fatalf("Retry = %v, %v (attempts %d)", v, err, attempts)
	}
}
