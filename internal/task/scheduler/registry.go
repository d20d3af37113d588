package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"
)

type handle struct {
	id     string
	at     time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry maps post ids to their armed handle. It holds at most one handle per id.
type Registry struct {
	mu sync.Mutex
	m  map[string]*handle
}

func NewRegistry() *Registry { return &Registry{m: map[string]*handle{}} }

// Insert records h and returns the handle it replaced, if any. The caller
// must cancel the returned handle.
func (r *Registry) Insert(h *handle) *handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.m[h.id]
	r.m[h.id] = h
	return prev
}

// Claim removes the entry only if h still owns it. A false result means the
// handle was cancelled or replaced and must not deliver.
func (r *Registry) Claim(id string, h *handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.m[id]; ok && cur == h {
		delete(r.m, id)
		return true
	}
	return false
}

func (r *Registry) Remove(id string) *handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.m[id]
	delete(r.m, id)
	return h
}

func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.m[id]
	return ok
}

// Drain empties the registry and returns every handle it held.
func (r *Registry) Drain() []*handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*handle, 0, len(r.m))
	for _, h := range r.m {
		out = append(out, h)
	}
	r.m = map[string]*handle{}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Armed describes one pending handle.
type Armed struct {
	PostID string    `json:"post_id"`
	At     time.Time `json:"at"`
}

// Snapshot lists armed handles ordered by fire time, then id.
func (r *Registry) Snapshot() []Armed {
	r.mu.Lock()
	out := make([]Armed, 0, len(r.m))
	for id, h := range r.m {
		out = append(out, Armed{PostID: id, At: h.at})
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].PostID < out[j].PostID
	})
	return out
}
