package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumitpatel080/Forward/internal/delivery"
	"github.com/Sumitpatel080/Forward/internal/eventbus"
	"github.com/Sumitpatel080/Forward/internal/post"
	"github.com/Sumitpatel080/Forward/internal/storage"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type fakeDeliverer struct {
	mu    sync.Mutex
	posts []string
}

func (f *fakeDeliverer) Deliver(_ context.Context, p post.ScheduledPost) delivery.Report {
	f.mu.Lock()
	f.posts = append(f.posts, p.ID)
	f.mu.Unlock()
	return delivery.Report{PostID: p.ID, Channels: len(p.Channels), Sent: len(p.Messages) * len(p.Channels)}
}

func (f *fakeDeliverer) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

type failingStore struct {
	*storage.Memory
	putErr, listErr error
}

func (f *failingStore) PutPost(ctx context.Context, p post.ScheduledPost) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Memory.PutPost(ctx, p)
}

func (f *failingStore) ListPosts(ctx context.Context) ([]post.ScheduledPost, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Memory.ListPosts(ctx)
}

func newPost(id string, at time.Time) post.ScheduledPost {
	return post.ScheduledPost{
		ID:           id,
		ScheduleTime: at,
		Channels:     []int64{101, 102},
		Messages:     []post.MessageReference{{SourceChatID: 1, SourceMessageID: 10}},
		Status:       post.StatusScheduled,
	}
}

func setup(t *testing.T) (*Scheduler, *storage.Memory, *fakeDeliverer) {
	t.Helper()
	st := storage.NewMemory()
	fd := &fakeDeliverer{}
	s := New(st, fd, logx.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, st, fd
}

func stored(t *testing.T, st storage.Store, id string) bool {
	t.Helper()
	_, ok, err := st.GetPost(context.Background(), id)
	require.NoError(t, err)
	return ok
}

func TestScheduleFiresOnceAndRemovesRecord(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	fd := &fakeDeliverer{}
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	s := New(st, fd, logx.Nop(), WithBus(bus))
	defer s.Stop(context.Background())

	id, err := s.Schedule(context.Background(), newPost("post_fire", time.Now().Add(60*time.Millisecond)))
	require.NoError(t, err)
	assert.Equal(t, "post_fire", id)
	assert.Equal(t, 1, s.Len())
	assert.True(t, stored(t, st, id))

	require.Eventually(t, func() bool { return len(fd.delivered()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !stored(t, st, id) }, time.Second, 5*time.Millisecond)
	assert.Zero(t, s.Len())

	var types []string
	for len(types) < 2 {
		select {
		case e := <-events:
			types = append(types, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("missing events, got %v", types)
		}
	}
	assert.Equal(t, []string{EventScheduled, EventSent}, types)

	var actions []string
	for _, e := range st.Audit() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"schedule", "sent"}, actions)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"post_fire"}, fd.delivered())
}

func TestScheduleDueNowDeliversSynchronously(t *testing.T) {
	t.Parallel()

	s, st, fd := setup(t)
	for _, at := range []time.Time{time.Now().Add(-time.Minute), time.Now()} {
		id, err := s.Schedule(context.Background(), newPost("post_now", at))
		require.NoError(t, err)
		assert.False(t, stored(t, st, id))
	}
	assert.Equal(t, []string{"post_now", "post_now"}, fd.delivered())
	assert.Zero(t, s.Len())
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	s, st, fd := setup(t)
	_, err := s.Schedule(context.Background(), newPost("post_c", time.Now().Add(80*time.Millisecond)))
	require.NoError(t, err)

	found, err := s.Cancel(context.Background(), "post_c")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Cancel(context.Background(), "post_c")
	require.NoError(t, err)
	assert.False(t, found)

	assert.Zero(t, s.Len())
	assert.False(t, stored(t, st, "post_c"))
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, fd.delivered())
}

func TestRescheduleKeepsOneHandle(t *testing.T) {
	t.Parallel()

	s, _, fd := setup(t)
	p := newPost("post_dup", time.Now().Add(40*time.Millisecond))
	_, err := s.Schedule(context.Background(), p)
	require.NoError(t, err)
	p.ScheduleTime = time.Now().Add(80 * time.Millisecond)
	_, err = s.Schedule(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())

	require.Eventually(t, func() bool { return len(fd.delivered()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, fd.delivered(), 1)
}

func TestFireSkipsPostDeletedElsewhere(t *testing.T) {
	t.Parallel()

	s, st, fd := setup(t)
	_, err := s.Schedule(context.Background(), newPost("post_gone", time.Now().Add(30*time.Millisecond)))
	require.NoError(t, err)
	require.NoError(t, st.DeletePost(context.Background(), "post_gone"))

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, fd.delivered())
}

func TestSchedulePersistenceFailure(t *testing.T) {
	t.Parallel()

	st := &failingStore{Memory: storage.NewMemory(), putErr: errors.New("disk full")}
	s := New(st, &fakeDeliverer{}, logx.Nop())
	defer s.Stop(context.Background())

	_, err := s.Schedule(context.Background(), newPost("post_p", time.Now().Add(time.Hour)))
	require.Error(t, err)
	assert.Equal(t, post.KindPersistence, post.KindOf(err))
	assert.Zero(t, s.Len())
}

func TestScheduleRejectsInvalidPost(t *testing.T) {
	t.Parallel()

	s, _, _ := setup(t)
	p := newPost("post_bad", time.Now().Add(time.Hour))
	p.Channels = nil
	_, err := s.Schedule(context.Background(), p)
	assert.Equal(t, post.KindValidation, post.KindOf(err))
}

func TestRecover(t *testing.T) {
	t.Parallel()

	s, st, fd := setup(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.PutPost(ctx, newPost("post_late2", now.Add(-30*time.Minute))))
	require.NoError(t, st.PutPost(ctx, newPost("post_late1", now.Add(-time.Hour))))
	require.NoError(t, st.PutPost(ctx, newPost("post_future", now.Add(time.Hour))))
	bad := newPost("post_broken", now.Add(time.Hour))
	bad.Messages = nil
	require.NoError(t, st.PutPost(ctx, bad))

	rep, err := s.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Overdue)
	assert.Equal(t, 1, rep.Armed)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, []string{"post_late1", "post_late2"}, fd.delivered())
	assert.False(t, stored(t, st, "post_late1"))
	assert.False(t, stored(t, st, "post_late2"))
	assert.True(t, stored(t, st, "post_future"))
	require.Len(t, s.Snapshot(), 1)
	assert.Equal(t, "post_future", s.Snapshot()[0].PostID)

	// second pass: nothing overdue, the future post is already armed
	rep, err = s.Init(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Overdue)
	assert.Equal(t, 1, rep.AlreadyArmed)
	assert.Len(t, fd.delivered(), 2)
	assert.Equal(t, 1, s.Len())
}

func TestRecoverOnEmptyStoreIsNoop(t *testing.T) {
	t.Parallel()

	s, _, fd := setup(t)
	rep := s.Recover(context.Background(), nil, time.Now())
	assert.Zero(t, rep.Total())
	assert.Empty(t, fd.delivered())
}

func TestInitTreatsReadFailureAsEmpty(t *testing.T) {
	t.Parallel()

	st := &failingStore{Memory: storage.NewMemory(), listErr: errors.New("connection refused")}
	s := New(st, &fakeDeliverer{}, logx.Nop())
	defer s.Stop(context.Background())

	rep, err := s.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, post.KindPersistence, post.KindOf(err))
	assert.Zero(t, rep.Total())
}

func TestStopKeepsRecordsAndRefusesNewWork(t *testing.T) {
	t.Parallel()

	st := storage.NewMemory()
	fd := &fakeDeliverer{}
	s := New(st, fd, logx.Nop())

	_, err := s.Schedule(context.Background(), newPost("post_s", time.Now().Add(50*time.Millisecond)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Zero(t, s.Len())
	assert.True(t, stored(t, st, "post_s"))

	_, err = s.Schedule(context.Background(), newPost("post_t", time.Now().Add(time.Hour)))
	require.ErrorIs(t, err, ErrStopped)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, fd.delivered())
}

func TestRegistryClaim(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	h1 := &handle{id: "a", cancel: func() {}}
	h2 := &handle{id: "a", cancel: func() {}}
	assert.Nil(t, r.Insert(h1))
	assert.Same(t, h1, r.Insert(h2))
	assert.False(t, r.Claim("a", h1))
	assert.True(t, r.Claim("a", h2))
	assert.False(t, r.Claim("a", h2))
	assert.Zero(t, r.Len())
}

func TestCancelWaitsForTimerExit(t *testing.T) {
	t.Parallel()

	s, _, fd := setup(t)
	_, err := s.Schedule(context.Background(), newPost("post_w", time.Now().Add(time.Hour)))
	require.NoError(t, err)

	s.reg.mu.Lock()
	h := s.reg.m["post_w"]
	s.reg.mu.Unlock()
	require.NotNil(t, h)

	found, err := s.Cancel(context.Background(), "post_w")
	require.NoError(t, err)
	assert.True(t, found)
	select {
	case <-h.done:
	default:
		t.Fatal("timer goroutine still running after Cancel")
	}
	assert.Empty(t, fd.delivered())
}
