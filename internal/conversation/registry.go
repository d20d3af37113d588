package conversation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

const DefaultIdleTimeout = 30 * time.Minute

var ErrDraining = errors.New("conversation registry is draining")

// Registry owns every user's State. Updates to one user are serialized by a
// striped lock, so a load-modify-save cycle is never interleaved.
type Registry struct {
	store StateStore
	log   logx.Logger
	now   func() time.Time

	idle     atomic.Int64 // time.Duration
	draining atomic.Bool

	locks [64]sync.Mutex
}

func NewRegistry(store StateStore, idle time.Duration, log logx.Logger) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Registry{store: store, log: log, now: time.Now}
	r.SetIdleTimeout(idle)
	return r
}

// SetIdleTimeout applies to states saved from now on. d <= 0 restores the default.
func (r *Registry) SetIdleTimeout(d time.Duration) {
	if d <= 0 {
		d = DefaultIdleTimeout
	}
	r.idle.Store(int64(d))
}

func (r *Registry) IdleTimeout() time.Duration { return time.Duration(r.idle.Load()) }

func (r *Registry) lock(uid int64) *sync.Mutex {
	i := uid % int64(len(r.locks))
	if i < 0 {
		i = -i
	}
	return &r.locks[i]
}

func (r *Registry) Get(ctx context.Context, uid int64) (State, bool, error) {
	return r.store.Load(ctx, uid)
}

// UpdateFunc receives the current state (ok=false when idle) and returns the
// next one. A nil next state ends the conversation. An error leaves the
// stored state untouched.
type UpdateFunc func(cur State, ok bool) (next State, err error)

// Update applies fn atomically for uid and refreshes the idle deadline.
func (r *Registry) Update(ctx context.Context, uid int64, fn UpdateFunc) error {
	if r.draining.Load() {
		return ErrDraining
	}
	mu := r.lock(uid)
	mu.Lock()
	defer mu.Unlock()

	cur, ok, err := r.store.Load(ctx, uid)
	if err != nil {
		return err
	}
	next, err := fn(cur, ok)
	if err != nil {
		return err
	}
	if next == nil {
		if !ok {
			return nil
		}
		return r.store.Delete(ctx, uid)
	}
	return r.store.Save(ctx, uid, next, r.IdleTimeout())
}

// Sweep evicts conversations idle for longer than the timeout.
func (r *Registry) Sweep(ctx context.Context) (int, error) {
	n, err := r.store.Evict(ctx, r.now())
	if n > 0 {
		r.log.Info("idle conversations evicted", logx.Int("count", n))
	}
	return n, err
}

func (r *Registry) Len(ctx context.Context) int {
	n, err := r.store.Len(ctx)
	if err != nil {
		r.log.Debug("conversation count failed", logx.Err(err))
		return 0
	}
	return n
}

// Drain refuses further updates and drops volatile states.
func (r *Registry) Drain(ctx context.Context) error {
	r.draining.Store(true)
	return r.store.Drain(ctx)
}

// RunSweeper runs Sweep on a cron spec (e.g. "@every 1m") until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, spec string) error {
	if spec == "" {
		spec = "@every 1m"
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := r.Sweep(sctx); err != nil {
			r.log.Warn("conversation sweep failed", logx.Err(err))
		}
	}); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
