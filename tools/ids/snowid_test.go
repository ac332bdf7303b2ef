package ids

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateUnique(t *testing.T) {
	const n = 10000
	seen := make(map[int64]struct{}, n)
	for i := 0; i < n; i++ {
		id := Generate()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d after %d generations", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestGenerateMonotonic(t *testing.T) {
	prev := Generate()
	for i := 0; i < 1000; i++ {
		id := Generate()
		if id <= prev {
			t.Fatalf("ids must increase: %d then %d", prev, id)
		}
		prev = id
	}
}

func TestGenerateConcurrent(t *testing.T) {
	const workers, per = 8, 500
	var mu sync.Mutex
	seen := make(map[int64]struct{}, workers*per)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, Generate())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers*per {
		t.Fatalf("collisions under concurrency: %d unique of %d", len(seen), workers*per)
	}
}

func TestGroupIDFormat(t *testing.T) {
	id := GroupID()
	if !strings.HasPrefix(id, "group_") {
		t.Fatalf("want group_ prefix, got %q", id)
	}
	if id == GroupID() {
		t.Fatal("group ids must be unique")
	}
}
