package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumitpatel080/Forward/internal/post"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2030, 5, 1, 9, 0, 0, 0, post.IST)
	in := CollectingMessages{
		ScheduleTime: at,
		Loose:        []post.MessageReference{{SourceChatID: 1, SourceMessageID: 2}},
		Groups:       []post.MediaGroup{{ID: "g", Messages: []post.MessageReference{{SourceChatID: 1, SourceMessageID: 3, MediaGroupID: "g"}}}},
	}
	b, err := Encode(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"step":"collecting_messages"`)

	out, err := Decode(b)
	require.NoError(t, err)
	got := out.(CollectingMessages)
	assert.True(t, got.ScheduleTime.Equal(at))
	assert.Equal(t, in.Loose, got.Loose)
	assert.Equal(t, in.Groups, got.Groups)

	_, err = Decode([]byte(`{"step":"flying","data":{}}`))
	require.Error(t, err)
}

func TestMemoryStoreExpiry(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, 1, AwaitingDate{}, time.Minute))
	require.NoError(t, s.Save(ctx, 2, AwaitingDate{}, time.Hour))

	n, err := s.Evict(ctx, clock.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	clock = clock.Add(2 * time.Hour)
	_, ok, err := s.Load(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistrySweepAndDrain(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	clock := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	r := NewRegistry(store, 10*time.Minute, logx.Nop())
	r.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, r.Update(ctx, 7, func(State, bool) (State, error) { return AwaitingDate{}, nil }))
	assert.Equal(t, 1, r.Len(ctx))

	clock = clock.Add(11 * time.Minute)
	n, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, r.Len(ctx))

	require.NoError(t, r.Update(ctx, 8, func(State, bool) (State, error) { return AwaitingDate{}, nil }))
	require.NoError(t, r.Drain(ctx))
	assert.Zero(t, r.Len(ctx))
	assert.ErrorIs(t, r.Update(ctx, 8, func(State, bool) (State, error) { return AwaitingDate{}, nil }), ErrDraining)
}

func TestRegistryUpdatesAreSerializedPerUser(t *testing.T) {
	t.Parallel()

	r := NewRegistry(NewMemoryStore(), time.Hour, logx.Nop())
	ctx := context.Background()
	require.NoError(t, r.Update(ctx, 1, func(State, bool) (State, error) {
		return SelectingChannels{Selected: []int64{}}, nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = r.Update(ctx, 1, func(cur State, _ bool) (State, error) {
				st := cur.(SelectingChannels)
				st.Selected = append(append([]int64(nil), st.Selected...), id)
				return st, nil
			})
		}(int64(i))
	}
	wg.Wait()

	st, ok, err := r.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, st.(SelectingChannels).Selected, 50)
}

func TestRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb, "fb")
	ctx := context.Background()

	date := time.Date(2030, 2, 3, 0, 0, 0, 0, post.IST)
	require.NoError(t, s.Save(ctx, 99, AwaitingCustomTime{Date: date}, time.Minute))
	assert.True(t, mr.Exists("fb:conversation:99"))
	assert.Equal(t, time.Minute, mr.TTL("fb:conversation:99"))

	st, ok, err := s.Load(ctx, 99)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, st.(AwaitingCustomTime).Date.Equal(date))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mr.FastForward(2 * time.Minute)
	_, ok, err = s.Load(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mr.Set("fb:conversation:5", "garbage"))
	_, ok, err = s.Load(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("fb:conversation:5"))
}
