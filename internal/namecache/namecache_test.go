package namecache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestResolveCachesSuccess(t *testing.T) {
	var calls int32
	c := New(func(ctx context.Context, itemID string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "Drill " + itemID, nil
	})
	for i := 0; i < 3; i++ {
		name, err := c.Resolve(context.Background(), "i1")
		if err != nil || name != "Drill i1" {
			t.Fatalf("got %q err=%v", name, err)
		}
	}
	if calls != 1 {
		t.Fatalf("lookup calls=%d want 1", calls)
	}
}

func TestResolveDoesNotCacheFailures(t *testing.T) {
	fail := true
	c := New(func(ctx context.Context, itemID string) (string, error) {
		if fail {
			return "", errors.New("offline")
		}
		return "Tent", nil
	})
	if _, err := c.Resolve(context.Background(), "i1"); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := c.Cached("i1"); ok {
		t.Fatal("failure must not be cached")
	}
	fail = false
	if name, err := c.Resolve(context.Background(), "i1"); err != nil || name != "Tent" {
		t.Fatalf("got %q err=%v", name, err)
	}
}

func TestResolveConcurrent(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	c := New(func(ctx context.Context, itemID string) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "Kayak", nil
	})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if name, err := c.Resolve(context.Background(), "i1"); err != nil || name != "Kayak" {
				t.Errorf("got %q err=%v", name, err)
			}
		}()
	}
	close(release)
	wg.Wait()
	if n := atomic.LoadInt32(&calls); n < 1 || n > 8 {
		t.Fatalf("unexpected lookup count %d", n)
	}
	if name, ok := c.Cached("i1"); !ok || name != "Kayak" {
		t.Fatalf("cached=%q ok=%v", name, ok)
	}
}
