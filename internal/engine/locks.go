package engine

import (
	"sort"
	"sync"
)

// lockTable hands out one mutex per entity key. Mutations against the same
// resource node, agent inventory, or trade offer must not interleave; a
// read-modify-write holds the entity's lock for its whole span.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) get(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}

// lock acquires the keys in sorted order so overlapping multi-entity
// operations (a trade touching two agents) cannot deadlock. The returned
// function releases them in reverse order.
func (t *lockTable) lock(keys ...string) func() {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	// Dedupe; locking the same key twice would self-deadlock.
	uniq := sorted[:0]
	for i, k := range sorted {
		if i == 0 || k != sorted[i-1] {
			uniq = append(uniq, k)
		}
	}

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		l := t.get(k)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
