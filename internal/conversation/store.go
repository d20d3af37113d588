package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore holds at most one State per user, each with an idle deadline.
type StateStore interface {
	Load(ctx context.Context, uid int64) (State, bool, error)
	Save(ctx context.Context, uid int64, st State, ttl time.Duration) error
	Delete(ctx context.Context, uid int64) error
	// Evict removes states whose deadline passed and reports how many.
	Evict(ctx context.Context, now time.Time) (int, error)
	Len(ctx context.Context) (int, error)
	// Drain drops every state that does not outlive the process.
	Drain(ctx context.Context) error
}

type memEntry struct {
	st      State
	expires time.Time // zero: never
}

// MemoryStore is the default StateStore. Interrupted workflows are simply restarted.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[int64]memEntry
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[int64]memEntry{}, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, uid int64) (State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[uid]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.m, uid)
		return nil, false, nil
	}
	return e.st, true, nil
}

func (s *MemoryStore) Save(_ context.Context, uid int64, st State, ttl time.Duration) error {
	if st == nil {
		return errors.New("save: nil state")
	}
	e := memEntry{st: st}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.m[uid] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, uid int64) error {
	s.mu.Lock()
	delete(s.m, uid)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Evict(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for uid, e := range s.m {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(s.m, uid)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m), nil
}

func (s *MemoryStore) Drain(context.Context) error {
	s.mu.Lock()
	s.m = map[int64]memEntry{}
	s.mu.Unlock()
	return nil
}

// RedisStore keeps states as JSON under <ns>:conversation:<uid> with a native
// expiry, so an unfinished workflow survives a restart until it idles out.
type RedisStore struct {
	rdb *redis.Client
	ns  string
}

func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	if strings.TrimSpace(namespace) == "" {
		namespace = "forwardbot"
	}
	return &RedisStore{rdb: rdb, ns: namespace}
}

func (s *RedisStore) key(uid int64) string {
	return s.ns + ":conversation:" + strconv.FormatInt(uid, 10)
}

func (s *RedisStore) Load(ctx context.Context, uid int64) (State, bool, error) {
	b, err := s.rdb.Get(ctx, s.key(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	st, err := Decode(b)
	if err != nil {
		// unreadable state: drop it so the user can start over
		_ = s.rdb.Del(ctx, s.key(uid)).Err()
		return nil, false, nil
	}
	return st, true, nil
}

func (s *RedisStore) Save(ctx context.Context, uid int64, st State, ttl time.Duration) error {
	b, err := Encode(st)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(uid), b, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, uid int64) error {
	return s.rdb.Del(ctx, s.key(uid)).Err()
}

// Evict is a no-op: Redis expires keys itself.
func (s *RedisStore) Evict(context.Context, time.Time) (int, error) { return 0, nil }

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.rdb.Scan(ctx, 0, s.ns+":conversation:*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n, iter.Err()
}

// Drain keeps redis states; they expire on their own.
func (s *RedisStore) Drain(context.Context) error { return nil }
