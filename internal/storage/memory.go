package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Sumitpatel080/Forward/internal/post"
)

// Memory is a volatile Store. It is used by tests and throwaway runs.
type Memory struct {
	mu       sync.RWMutex
	posts    map[string]post.ScheduledPost
	channels map[int64]post.Channel
	audit    []AuditEntry
	closed   bool
}

func NewMemory() *Memory {
	return &Memory{posts: map[string]post.ScheduledPost{}, channels: map[int64]post.Channel{}}
}

func (m *Memory) PutPost(_ context.Context, p post.ScheduledPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.posts[p.ID] = p.Normalize()
	return nil
}

func (m *Memory) GetPost(_ context.Context, id string) (post.ScheduledPost, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return post.ScheduledPost{}, false, ErrClosed
	}
	p, ok := m.posts[id]
	if !ok {
		return post.ScheduledPost{}, false, nil
	}
	return p.Normalize(), true, nil
}

func (m *Memory) ListPosts(_ context.Context) ([]post.ScheduledPost, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]post.ScheduledPost, 0, len(m.posts))
	for _, p := range m.posts {
		if p.Status == post.StatusScheduled {
			out = append(out, p.Normalize())
		}
	}
	sortPosts(out)
	return out, nil
}

func (m *Memory) DeletePost(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.posts, id)
	return nil
}

func (m *Memory) PutChannel(_ context.Context, ch post.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.channels[ch.ID] = ch
	return nil
}

func (m *Memory) ListChannels(_ context.Context) ([]post.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]post.Channel, 0, len(m.channels))
	for _, c := range m.channels {
		out = append(out, c)
	}
	sortChannels(out)
	return out, nil
}

func (m *Memory) DeleteChannel(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.channels[id]
	delete(m.channels, id)
	return ok, nil
}

func (m *Memory) AppendAudit(_ context.Context, e AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	m.audit = append(m.audit, e)
	return nil
}

// Audit returns a copy of the recorded audit entries.
func (m *Memory) Audit() []AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AuditEntry(nil), m.audit...)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
