package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumitpatel080/Forward/internal/post"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type call struct {
	to, from int64
	ids      []int
}

type fakeForwarder struct {
	mu     sync.Mutex
	calls  []call
	failTo map[int64]bool
	failID map[int]bool
}

func (f *fakeForwarder) ForwardMessages(_ context.Context, to, from int64, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{to: to, from: from, ids: append([]int(nil), ids...)})
	if f.failTo[to] {
		return errors.New("chat not found")
	}
	for _, id := range ids {
		if f.failID[id] {
			return errors.New("message to forward not found")
		}
	}
	return nil
}

func msgs(refs ...post.MessageReference) post.ScheduledPost {
	return post.ScheduledPost{ID: "post_t", Channels: []int64{101}, Messages: refs, Status: post.StatusScheduled}
}

func TestMediaGroupIsOneTransfer(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	ex := New(fwd, logx.Nop(), WithPace(0))
	rep := ex.Deliver(context.Background(), msgs(
		post.MessageReference{SourceChatID: 9, SourceMessageID: 1, MediaGroupID: "g"},
		post.MessageReference{SourceChatID: 9, SourceMessageID: 2, MediaGroupID: "g"},
		post.MessageReference{SourceChatID: 9, SourceMessageID: 3},
	))

	require.True(t, rep.OK())
	assert.Equal(t, []call{
		{to: 101, from: 9, ids: []int{1, 2}},
		{to: 101, from: 9, ids: []int{3}},
	}, fwd.calls)
	assert.Equal(t, 3, rep.Sent)
	assert.Equal(t, 2, rep.Transfers)
}

func TestChannelOrderAndGroupsBeforeLoose(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	p := msgs(
		post.MessageReference{SourceChatID: 9, SourceMessageID: 5},
		post.MessageReference{SourceChatID: 9, SourceMessageID: 6, MediaGroupID: "a"},
		post.MessageReference{SourceChatID: 9, SourceMessageID: 7, MediaGroupID: "b"},
		post.MessageReference{SourceChatID: 9, SourceMessageID: 8, MediaGroupID: "a"},
	)
	p.Channels = []int64{2, 1}
	New(fwd, logx.Nop(), WithPace(0)).Deliver(context.Background(), p)

	want := []call{
		{2, 9, []int{6, 8}}, {2, 9, []int{7}}, {2, 9, []int{5}},
		{1, 9, []int{6, 8}}, {1, 9, []int{7}}, {1, 9, []int{5}},
	}
	assert.Equal(t, want, fwd.calls)
}

func TestFailureIsolation(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{failTo: map[int64]bool{101: true}, failID: map[int]bool{3: true}}
	p := msgs(
		post.MessageReference{SourceChatID: 9, SourceMessageID: 3},
		post.MessageReference{SourceChatID: 9, SourceMessageID: 4},
	)
	p.Channels = []int64{101, 102}
	rep := New(fwd, logx.Nop(), WithPace(0)).Deliver(context.Background(), p)

	assert.Len(t, fwd.calls, 4)
	require.Len(t, rep.Failures, 3)
	assert.Equal(t, int64(102), rep.Failures[2].Channel)
	assert.Equal(t, []int{3}, rep.Failures[2].MessageIDs)
	assert.Equal(t, post.KindDelivery, post.KindOf(rep.Failures[0].Err))
	assert.Equal(t, 1, rep.Sent)
}

func TestGroupSpanningChatsIsSplit(t *testing.T) {
	t.Parallel()

	got := splitBySource([]post.MessageReference{
		{SourceChatID: 1, SourceMessageID: 1},
		{SourceChatID: 1, SourceMessageID: 2},
		{SourceChatID: 2, SourceMessageID: 3},
	})
	assert.Equal(t, []sourceRun{{1, []int{1, 2}}, {2, []int{3}}}, got)
}

func TestLooseMessagesArePaced(t *testing.T) {
	t.Parallel()

	fwd := &fakeForwarder{}
	pace := 30 * time.Millisecond
	start := time.Now()
	New(fwd, logx.Nop(), WithPace(pace)).Deliver(context.Background(), msgs(
		post.MessageReference{SourceChatID: 9, SourceMessageID: 1},
		post.MessageReference{SourceChatID: 9, SourceMessageID: 2},
		post.MessageReference{SourceChatID: 9, SourceMessageID: 3},
	))
	assert.GreaterOrEqual(t, time.Since(start), 2*pace)
	assert.Len(t, fwd.calls, 3)
}

func TestCancelledContextStops(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fwd := &fakeForwarder{}
	rep := New(fwd, logx.Nop()).Deliver(ctx, msgs(post.MessageReference{SourceChatID: 9, SourceMessageID: 1}))
	assert.Empty(t, fwd.calls)
	assert.Zero(t, rep.Sent)
}
