package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/containerman17/hdwallet-discovery/internal/address"
)

type failingOnceSource struct {
	calls int32
	fail  bool
}

var _ address.Source = (*failingOnceSource)(nil)

func (f *failingOnceSource) Derive(ctx context.Context, first, last uint32) ([]string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail {
		return nil, fmt.Errorf("boom")
	}
	return []string{fmt.Sprintf("a%d", first)}, nil
}

func TestCacheHitAvoidsInnerCall(t *testing.T) {
	inner := &failingOnceSource{}
	c := New(inner)

	if _, err := c.Derive(context.Background(), 0, 19); err != nil {
		t.Fatalf("derive: %v", err)
	}
	if _, err := c.Derive(context.Background(), 0, 19); err != nil {
		t.Fatalf("derive: %v", err)
	}

	if atomic.LoadInt32(&inner.calls) != 1 {
		t.Fatalf("inner called %d times, want 1", inner.calls)
	}
}

func TestCacheMissOnOverlappingButUnequalRange(t *testing.T) {
	inner := &failingOnceSource{}
	c := New(inner)

	if _, err := c.Derive(context.Background(), 0, 19); err != nil {
		t.Fatalf("derive: %v", err)
	}
	if _, err := c.Derive(context.Background(), 1, 20); err != nil {
		t.Fatalf("derive: %v", err)
	}

	if atomic.LoadInt32(&inner.calls) != 2 {
		t.Fatalf("overlapping-but-unequal ranges must each miss, got %d inner calls", inner.calls)
	}
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	inner := &failingOnceSource{fail: true}
	c := New(inner)

	if _, err := c.Derive(context.Background(), 0, 19); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.Derive(context.Background(), 0, 19); err == nil {
		t.Fatal("expected error again — failures must not be cached")
	}

	if atomic.LoadInt32(&inner.calls) != 2 {
		t.Fatalf("inner called %d times, want 2 (no caching of failures)", inner.calls)
	}
}

func TestCacheStoreRestoreRoundTrip(t *testing.T) {
	inner := &failingOnceSource{}
	c := New(inner)
	if _, err := c.Derive(context.Background(), 0, 19); err != nil {
		t.Fatalf("derive: %v", err)
	}

	snapshot := c.Store()

	restored := New(&failingOnceSource{})
	restored.Restore(snapshot)

	if _, err := restored.Derive(context.Background(), 0, 19); err != nil {
		t.Fatalf("derive after restore: %v", err)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	inner := &failingOnceSource{}
	c := New(inner)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Derive(context.Background(), 0, 19)
		}()
	}
	wg.Wait()
}
