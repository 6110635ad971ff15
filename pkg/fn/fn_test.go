package fn

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"
)

func TestResultOkErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok result reports error")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("Unwrap = (%d, %v)", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err result reports ok")
	}
	if got := e.UnwrapOr(7); got != 7 {
		t.Fatalf("UnwrapOr = %d, want 7", got)
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("FromPair with nil error should be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("FromPair with error should be err")
	}
}

func TestMapResult(t *testing.T) {
	r := MapResult(Ok(5), strconv.Itoa)
	v, _ := r.Unwrap()
	if v != "5" {
		t.Fatalf("got %q", v)
	}

	e := MapResult(Err[int](errors.New("nope")), strconv.Itoa)
	if e.IsOk() {
		t.Fatal("error should propagate through MapResult")
	}
}

func TestCollect(t *testing.T) {
	ok := Collect([]Result[int]{Ok(1), Ok(2), Ok(3)})
	vs, err := ok.Unwrap()
	if err != nil || len(vs) != 3 || vs[2] != 3 {
		t.Fatalf("Collect = (%v, %v)", vs, err)
	}

	bad := Collect([]Result[int]{Ok(1), Err[int](errors.New("mid")), Ok(3)})
	if bad.IsOk() {
		t.Fatal("Collect should fail on any error")
	}
}

func TestThenComposition(t *testing.T) {
	double := Stage[int, int](func(_ context.Context, n int) Result[int] { return Ok(n * 2) })
	toStr := Stage[int, string](func(_ context.Context, n int) Result[string] { return Ok(strconv.Itoa(n)) })

	pipeline := Then(double, toStr)
	v, err := pipeline(context.Background(), 21).Unwrap()
	if err != nil || v != "42" {
		t.Fatalf("pipeline = (%q, %v)", v, err)
	}
}

func TestThenShortCircuits(t *testing.T) {
	fail := Stage[int, int](func(_ context.Context, _ int) Result[int] { return Errf[int]("stage failed") })
	var called bool
	next := Stage[int, int](func(_ context.Context, n int) Result[int] {
		called = true
		return Ok(n)
	})

	r := Then(fail, next)(context.Background(), 1)
	if r.IsOk() {
		t.Fatal("expected error")
	}
	if called {
		t.Fatal("second stage ran after failure")
	}
}

func TestTapStage(t *testing.T) {
	var seen int
	tap := TapStage(func(_ context.Context, n int) { seen = n })
	v, err := tap(context.Background(), 9).Unwrap()
	if err != nil || v != 9 || seen != 9 {
		t.Fatalf("tap = (%d, %v), seen = %d", v, err, seen)
	}
}

func TestFanOutOrder(t *testing.T) {
	out := FanOut(
		func() int { time.Sleep(10 * time.Millisecond); return 1 },
		func() int { return 2 },
		func() int { time.Sleep(5 * time.Millisecond); return 3 },
	)
	if out[0] != 1 || out[1] != 2 || out[2] != 3 {
		t.Fatalf("FanOut order broken: %v", out)
	}
}

func TestFanOutResult(t *testing.T) {
	r := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Ok(2) },
	)
	vs, err := r.Unwrap()
	if err != nil || vs[0] != 1 || vs[1] != 2 {
		t.Fatalf("FanOutResult = (%v, %v)", vs, err)
	}

	bad := FanOutResult(
		func() Result[int] { return Ok(1) },
		func() Result[int] { return Errf[int]("worker failed") },
	)
	if bad.IsOk() {
		t.Fatal("expected failure")
	}
}

func TestParMapPreservesOrder(t *testing.T) {
	in := []int{3, 1, 4, 1, 5}
	out := ParMap(in, 2, func(n int) int { return n * 10 })
	want := []int{30, 10, 40, 10, 50}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("ParMap = %v, want %v", out, want)
		}
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond}, func(context.Context) Result[string] {
		attempts++
		if attempts < 3 {
			return Errf[string]("transient")
		}
		return Ok("done")
	})
	v, err := r.Unwrap()
	if err != nil || v != "done" {
		t.Fatalf("retry = (%q, %v)", v, err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestRetryExhausts(t *testing.T) {
	attempts := 0
	r := Retry(context.Background(), RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond}, func(context.Context) Result[int] {
		attempts++
		return Errf[int]("always fails")
	})
	if r.IsOk() || attempts != 2 {
		t.Fatalf("retry ok=%v attempts=%d", r.IsOk(), attempts)
	}
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Retry(ctx, RetryOpts{MaxAttempts: 5, InitialWait: time.Minute}, func(context.Context) Result[int] {
		return Errf[int]("fail")
	})
	_, err := r.Unwrap()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSliceHelpers(t *testing.T) {
	doubled := Map([]int{1, 2}, func(n int) int { return n * 2 })
	if doubled[0] != 2 || doubled[1] != 4 {
		t.Fatalf("Map = %v", doubled)
	}

	evens := Filter([]int{1, 2, 3, 4}, func(n int) bool { return n%2 == 0 })
	if len(evens) != 2 || evens[0] != 2 {
		t.Fatalf("Filter = %v", evens)
	}

	fm := FilterMap([]string{"1", "x", "3"}, func(s string) (int, bool) {
		n, err := strconv.Atoi(s)
		return n, err == nil
	})
	if len(fm) != 2 || fm[1] != 3 {
		t.Fatalf("FilterMap = %v", fm)
	}

	u := Unique([]string{"a", "b", "a", "c", "b"})
	if len(u) != 3 || u[0] != "a" || u[2] != "c" {
		t.Fatalf("Unique = %v", u)
	}

	type item struct{ k, v string }
	ub := UniqueBy([]item{{"x", "1"}, {"y", "2"}, {"x", "3"}}, func(i item) string { return i.k })
	if len(ub) != 2 || ub[0].v != "1" {
		t.Fatalf("UniqueBy = %v", ub)
	}
}
