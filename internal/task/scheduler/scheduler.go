package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sumitpatel080/Forward/internal/delivery"
	"github.com/Sumitpatel080/Forward/internal/eventbus"
	"github.com/Sumitpatel080/Forward/internal/post"
	"github.com/Sumitpatel080/Forward/internal/storage"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

const (
	EventScheduled = "post.scheduled"
	EventSent      = "post.sent"
	EventCancelled = "post.cancelled"
	EventRecovered = "post.recovered"
)

var ErrStopped = errors.New("scheduler stopped")

// Store is the persistence the scheduler needs; storage.Store satisfies it.
type Store interface {
	PutPost(ctx context.Context, p post.ScheduledPost) error
	GetPost(ctx context.Context, id string) (post.ScheduledPost, bool, error)
	ListPosts(ctx context.Context) ([]post.ScheduledPost, error)
	DeletePost(ctx context.Context, id string) error
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

type Deliverer interface {
	Deliver(ctx context.Context, p post.ScheduledPost) delivery.Report
}

// SentEvent is the payload of EventSent.
type SentEvent struct {
	PostID   string `json:"post_id"`
	Channels int    `json:"channels"`
	Sent     int    `json:"sent"`
	Failed   int    `json:"failed"`
	Overdue  bool   `json:"overdue"`
}

type Scheduler struct {
	store Store
	exec  Deliverer
	clock post.Clock
	bus   eventbus.Bus
	log   logx.Logger

	reg *Registry

	// mu orders arming against Stop so wg.Add never races wg.Wait.
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

func WithClock(c post.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithBus(b eventbus.Bus) Option { return func(s *Scheduler) { s.bus = b } }

func New(store Store, exec Deliverer, log logx.Logger, opts ...Option) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		store: store,
		exec:  exec,
		clock: post.SystemClock{},
		log:   log,
		reg:   NewRegistry(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Schedule persists p and arms its timer. A post whose time is not in the
// future is delivered synchronously and never persisted.
func (s *Scheduler) Schedule(ctx context.Context, p post.ScheduledPost) (string, error) {
	now := s.clock.Now()
	p = p.Normalize()
	if p.Status == "" {
		p.Status = post.StatusScheduled
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if err := p.Validate(); err != nil {
		return "", err
	}
	if s.isStopped() {
		return "", &post.Error{Kind: post.KindState, Op: "scheduler.schedule", Err: ErrStopped}
	}

	if p.ScheduleTime.Sub(now) <= 0 {
		if h := s.reg.Remove(p.ID); h != nil {
			h.cancel()
		}
		s.log.Info("post already due, delivering now", logx.String("post_id", p.ID), logx.Time("at", p.ScheduleTime))
		s.deliver(context.WithoutCancel(ctx), p, true)
		return p.ID, nil
	}

	if err := s.store.PutPost(ctx, p); err != nil {
		return "", post.Persistence("scheduler.schedule", err)
	}
	if !s.arm(p) {
		return "", &post.Error{Kind: post.KindState, Op: "scheduler.schedule", Err: ErrStopped}
	}

	s.log.Info("post scheduled",
		logx.String("post_id", p.ID),
		logx.Time("at", p.ScheduleTime),
		logx.Int("channels", len(p.Channels)),
		logx.Int("messages", len(p.Messages)))
	s.publish(EventScheduled, map[string]any{"post_id": p.ID, "at": p.ScheduleTime, "channels": len(p.Channels)})
	s.audit(ctx, storage.AuditEntry{Action: "schedule", PostID: p.ID, Channels: len(p.Channels)})
	return p.ID, nil
}

// Cancel stops the handle for id (if any), waits for its timer goroutine to
// exit and deletes the record. It is idempotent; found reports whether
// anything existed.
func (s *Scheduler) Cancel(ctx context.Context, id string) (bool, error) {
	h := s.reg.Remove(id)
	if h != nil {
		h.cancel()
		select {
		case <-h.done:
		case <-ctx.Done():
		}
	}

	_, existed, err := s.store.GetPost(ctx, id)
	if err != nil {
		s.log.Debug("cancel: lookup failed", logx.String("post_id", id), logx.Err(err))
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		return h != nil, post.Persistence("scheduler.cancel", err)
	}

	found := h != nil || existed
	if found {
		s.log.Info("post cancelled", logx.String("post_id", id), logx.Bool("was_armed", h != nil))
		s.publish(EventCancelled, map[string]any{"post_id": id})
		s.audit(ctx, storage.AuditEntry{Action: "cancel", PostID: id})
	}
	return found, nil
}

// Snapshot lists pending handles.
func (s *Scheduler) Snapshot() []Armed { return s.reg.Snapshot() }

func (s *Scheduler) Len() int { return s.reg.Len() }

// Stop cancels every pending handle and waits for in-flight deliveries.
// Records stay persisted so the next start recovers them.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	hs := s.reg.Drain()
	s.mu.Unlock()

	for _, h := range hs {
		h.cancel()
	}
	s.log.Info("stopping", logx.Int("pending", len(hs)))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// arm starts the timer goroutine for an already persisted post.
func (s *Scheduler) arm(p post.ScheduledPost) bool {
	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{id: p.ID, at: p.ScheduleTime, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return false
	}
	prev := s.reg.Insert(h)
	s.wg.Add(1)
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		s.log.Debug("replaced armed handle", logx.String("post_id", p.ID))
	}
	go s.wait(ctx, h)
	return true
}

func (s *Scheduler) wait(ctx context.Context, h *handle) {
	defer s.wg.Done()
	defer close(h.done)

	t := time.NewTimer(h.at.Sub(s.clock.Now()))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	if !s.reg.Claim(h.id, h) {
		return
	}
	// Committed: shutdown no longer interrupts this delivery.
	dctx := context.Background()
	p, ok, err := s.store.GetPost(dctx, h.id)
	if err != nil {
		s.log.Error("fire: reading post failed, leaving it for recovery", logx.String("post_id", h.id), logx.Err(err))
		return
	}
	if !ok {
		s.log.Info("fire: post no longer stored, skipping", logx.String("post_id", h.id))
		return
	}
	s.deliver(dctx, p, false)
}

func (s *Scheduler) deliver(ctx context.Context, p post.ScheduledPost, overdue bool) delivery.Report {
	rep := s.exec.Deliver(ctx, p)
	if err := s.store.DeletePost(ctx, p.ID); err != nil {
		s.log.Error("deleting delivered post failed", logx.String("post_id", p.ID), logx.Err(post.Persistence("scheduler.deliver", err)))
	}

	lvl := s.log.Info
	if !rep.OK() {
		lvl = s.log.Warn
	}
	lvl("post delivered",
		logx.String("post_id", p.ID),
		logx.Bool("overdue", overdue),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", len(rep.Failures)),
		logx.Duration("took", rep.Took))

	s.publish(EventSent, SentEvent{PostID: p.ID, Channels: rep.Channels, Sent: rep.Sent, Failed: len(rep.Failures), Overdue: overdue})
	e := storage.AuditEntry{Action: "sent", PostID: p.ID, Channels: rep.Channels, OK: rep.Sent, Fail: len(rep.Failures), TookMS: rep.Took.Milliseconds()}
	if len(rep.Failures) > 0 {
		e.Error = rep.Failures[0].Err.Error()
	}
	s.audit(ctx, e)
	return rep
}

func (s *Scheduler) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: data})
}

func (s *Scheduler) audit(ctx context.Context, e storage.AuditEntry) {
	if e.At.IsZero() {
		e.At = s.clock.Now()
	}
	if err := s.store.AppendAudit(ctx, e); err != nil {
		s.log.Debug("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}
