package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func neverExpire(int) int64 { return 1 << 62 }

func TestPutThenGetDoesNotInvokeLoader(t *testing.T) {
	c := New[int]("t", func(v int) int64 { return neverExpire(v) })
	c.Put("k", 42)

	called := false
	v, err := c.Get(context.Background(), "k", func(ctx context.Context) (int, error) {
		called = true
		return 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Errorf("v = %d, want 42", v)
	}
	if called {
		t.Error("loader should not have been invoked for a cache hit")
	}
}

func TestContains(t *testing.T) {
	c := New[int]("t", neverExpire)
	if c.Contains("k") {
		t.Error("expected Contains(k) = false before Put")
	}
	c.Put("k", 1)
	if !c.Contains("k") {
		t.Error("expected Contains(k) = true after Put")
	}
}

func TestGetDedupesConcurrentLoaders(t *testing.T) {
	c := New[int]("t", neverExpire)

	var calls int32
	release := make(chan struct{})

	loader := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]int, n)
	errs := make([]error, n)
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k", loader)
			results[i] = v
			errs[i] = err
		}()
	}

	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("loader invoked %d times, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("awaiter %d error: %v", i, errs[i])
		}
		if results[i] != 7 {
			t.Errorf("awaiter %d value = %d, want 7", i, results[i])
		}
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	c := New[int]("t", neverExpire)

	boom := errors.New("boom")
	var calls int32
	_, err := c.Get(context.Background(), "k", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, boom
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if c.Contains("k") {
		t.Error("a failed load must not populate the cache")
	}

	v, err := c.Get(context.Background(), "k", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 9, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v != 9 {
		t.Errorf("v = %d, want 9", v)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("loader invoked %d times across both Get calls, want 2 (retry after failure)", got)
	}
}

func TestExpiredEntryTreatedAsMiss(t *testing.T) {
	var clockVal int64
	c := New[int]("t", func(v int) int64 { return 100 }, WithClock[int](func() int64 { return clockVal }))

	c.Put("k", 1)

	clockVal = 50
	if !c.Contains("k") {
		t.Error("expected entry to still be valid before expiry")
	}

	clockVal = 100
	if c.Contains("k") {
		t.Error("expected entry to be expired at now == expiresAt")
	}

	called := false
	v, err := c.Get(context.Background(), "k", func(ctx context.Context) (int, error) {
		called = true
		return 2, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("expected loader to be invoked after expiry")
	}
	if v != 2 {
		t.Errorf("v = %d, want 2", v)
	}
}

func TestDelete(t *testing.T) {
	c := New[int]("t", neverExpire)
	c.Put("k", 1)
	c.Delete("k")
	if c.Contains("k") {
		t.Error("expected entry removed after Delete")
	}
}

func TestWithCapacityEvictsLRU(t *testing.T) {
	c := New[int]("t", neverExpire, WithCapacity[int](2))
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a"

	if c.Contains("a") {
		t.Error("expected least-recently-used entry \"a\" to be evicted")
	}
	if !c.Contains("b") || !c.Contains("c") {
		t.Error("expected \"b\" and \"c\" to remain cached")
	}
}
