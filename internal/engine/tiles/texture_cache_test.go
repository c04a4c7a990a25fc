package tiles

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTextureCacheCoalescesLoads(t *testing.T) {
	loader := newFakeLoader(t)
	loader.gate = make(chan struct{})
	cache := NewTextureCache(loader)

	const path = "img/level_0/tiles/tile_000_000.png"
	const waiters = 8

	var wg sync.WaitGroup
	textures := make([]*Texture, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tex, err := cache.Get(context.Background(), path)
			if err != nil {
				t.Errorf("Get: %v", err)
			}
			textures[i] = tex
		}(i)
	}

	// Give every waiter a chance to join the pending entry, then release.
	time.Sleep(20 * time.Millisecond)
	close(loader.gate)
	wg.Wait()

	if got := loader.callCount(path); got != 1 {
		t.Errorf("loader called %d times, want 1 (coalesced)", got)
	}
	for i := 1; i < waiters; i++ {
		if textures[i] != textures[0] {
			t.Errorf("waiter %d got a different texture instance", i)
		}
	}
}

func TestTextureCacheRetriesAfterFailure(t *testing.T) {
	loader := newFakeLoader(t)
	cache := NewTextureCache(loader)
	const path = "img/level_1/tiles/tile_000_001.png"

	loader.failNext(path, 1)
	if _, err := cache.Get(context.Background(), path); err == nil {
		t.Fatal("expected first load to fail")
	}
	if cache.Len() != 0 {
		t.Errorf("failed entry still resident, cache len %d", cache.Len())
	}

	tex, err := cache.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if tex == nil || tex.RGBA == nil {
		t.Fatal("retry returned no texture")
	}
	if got := loader.callCount(path); got != 2 {
		t.Errorf("loader called %d times, want 2", got)
	}
}

func TestTextureCacheSharesEntries(t *testing.T) {
	loader := newFakeLoader(t)
	cache := NewTextureCache(loader)
	const path = "img/level_2/tiles/tile_002_003.png"

	a, err := cache.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, err := cache.Get(context.Background(), path)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a != b {
		t.Error("expected both gets to return the shared texture instance")
	}
	if got := loader.callCount(path); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
}

func TestTextureCacheContextCancel(t *testing.T) {
	loader := newFakeLoader(t)
	loader.gate = make(chan struct{})
	defer close(loader.gate)
	cache := NewTextureCache(loader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.Get(ctx, "img/level_0/tiles/tile_000_000.png")
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
