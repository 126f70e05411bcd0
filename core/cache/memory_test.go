package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func get(t *testing.T, s *MemoryStore, key string) (string, bool) {
	t.Helper()
	v, ok, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", key, err)
	}
	return string(v), ok
}

func set(t *testing.T, s *MemoryStore, key, value string) {
	t.Helper()
	if err := s.Set(context.Background(), key, []byte(value)); err != nil {
		t.Fatalf("Set(%q) error = %v", key, err)
	}
}

func TestMemoryStoreEvictsLeastRecentlyUsed(t *testing.T) {
	store := NewMemoryStore(Config{MaxEntries: 2})

	set(t, store, "exercise:a", "1")
	set(t, store, "exercise:b", "2")
	get(t, store, "exercise:a")
	set(t, store, "exercise:c", "3")

	if _, ok := get(t, store, "exercise:b"); ok {
		t.Error("exercise:b should have been evicted")
	}
	for key, want := range map[string]string{"exercise:a": "1", "exercise:c": "3"} {
		if got, ok := get(t, store, key); !ok || got != want {
			t.Errorf("Get(%q) = %q, %v, want %q, true", key, got, ok, want)
		}
	}
	if stats := store.Stats(); stats.Evictions != 1 || stats.Size != 2 {
		t.Errorf("Stats() = %+v, want 1 eviction and size 2", stats)
	}
}

func TestMemoryStoreByteBound(t *testing.T) {
	store := NewMemoryStore(Config{MaxBytes: 10})

	set(t, store, "mathml:a", "aaaa")
	set(t, store, "mathml:b", "bbbb")
	set(t, store, "mathml:c", "cccc")

	if _, ok := get(t, store, "mathml:a"); ok {
		t.Error("mathml:a should have been evicted to stay under MaxBytes")
	}
	if stats := store.Stats(); stats.Bytes != 8 || stats.Size != 2 {
		t.Errorf("Stats() = %+v, want 8 bytes in 2 entries", stats)
	}

	set(t, store, "mathml:big", strings.Repeat("x", 11))
	if _, ok := get(t, store, "mathml:big"); ok {
		t.Error("a value larger than MaxBytes should not be stored")
	}
	if _, ok := get(t, store, "mathml:c"); !ok {
		t.Error("an oversized value should not evict existing entries")
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore(Config{MaxBytes: 100})

	set(t, store, "k", "first")
	set(t, store, "k", "second!")

	if got, _ := get(t, store, "k"); got != "second!" {
		t.Errorf("Get(k) = %q, want %q", got, "second!")
	}
	if stats := store.Stats(); stats.Size != 1 || stats.Bytes != 7 {
		t.Errorf("Stats() = %+v, want one entry of 7 bytes", stats)
	}
}

func TestMemoryStoreTTL(t *testing.T) {
	store := NewMemoryStore(Config{TTL: time.Minute})
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	set(t, store, "k", "v")
	now = now.Add(59 * time.Second)
	if _, ok := get(t, store, "k"); !ok {
		t.Error("entry should be live before its TTL")
	}

	now = now.Add(2 * time.Second)
	if _, ok := get(t, store, "k"); ok {
		t.Error("entry should expire after its TTL")
	}
	if stats := store.Stats(); stats.Size != 0 || stats.Bytes != 0 {
		t.Errorf("expired entry should be dropped: %+v", stats)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore(DefaultConfig())

	set(t, store, "a", "1")
	get(t, store, "a")
	get(t, store, "a")
	get(t, store, "missing")

	stats := store.Stats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("Stats() hits=%d misses=%d, want 2 and 1", stats.Hits, stats.Misses)
	}
}

func TestMemoryStoreConcurrency(t *testing.T) {
	store := NewMemoryStore(Config{MaxEntries: 50})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("exercise:%d-%d", n, j%60)
				store.Set(ctx, key, []byte(key))
				store.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if stats := store.Stats(); stats.Size > 50 {
		t.Errorf("Size = %d, want at most 50", stats.Size)
	}
}
