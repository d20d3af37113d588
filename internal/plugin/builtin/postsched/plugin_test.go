package postsched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/Sumitpatel080/Forward/internal/channels"
	"github.com/Sumitpatel080/Forward/internal/conversation"
	"github.com/Sumitpatel080/Forward/internal/delivery"
	core "github.com/Sumitpatel080/Forward/internal/plugin"
	"github.com/Sumitpatel080/Forward/internal/post"
	"github.com/Sumitpatel080/Forward/internal/storage"
	"github.com/Sumitpatel080/Forward/internal/task/scheduler"
	kit "github.com/Sumitpatel080/Forward/internal/transport"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

const admin = int64(42)

var now = time.Date(2030, 1, 1, 14, 0, 0, 0, post.IST)

type output struct {
	text   string
	markup *tele.ReplyMarkup
	edit   bool
}

type fakeAdapter struct {
	mu     sync.Mutex
	out    []output
	alerts []string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error { return nil }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.record(text, opt, false)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 100}, nil
}

func (f *fakeAdapter) EditText(_ context.Context, _ kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.record(text, opt, true)
	return nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if alert {
		f.alerts = append(f.alerts, text)
	}
	return nil
}

func (f *fakeAdapter) record(text string, opt *kit.SendOptions, edit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := output{text: text, edit: edit}
	if opt != nil {
		o.markup, _ = opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	}
	f.out = append(f.out, o)
}

func (f *fakeAdapter) last(t *testing.T) output {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.out)
	return f.out[len(f.out)-1]
}

type nopDeliverer struct{}

func (nopDeliverer) Deliver(_ context.Context, p post.ScheduledPost) delivery.Report {
	return delivery.Report{PostID: p.ID}
}

type fixture struct {
	p     *Plugin
	ad    *fakeAdapter
	store *storage.Memory
	sched *scheduler.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := post.ClockFunc(func() time.Time { return now })
	store := storage.NewMemory()
	chs := channels.New(store, logx.Nop())
	_, err := chs.Add(ctx, admin, -1001, "News")
	require.NoError(t, err)
	_, err = chs.Add(ctx, admin, -1002, "Deals")
	require.NoError(t, err)

	sched := scheduler.New(store, nopDeliverer{}, logx.Nop(), scheduler.WithClock(clock))
	t.Cleanup(func() { _ = sched.Stop(context.Background()) })
	engine := conversation.NewEngine(conversation.NewRegistry(conversation.NewMemoryStore(), 0, logx.Nop()), sched, chs, clock, logx.Nop())

	p := New()
	require.NoError(t, p.Init(ctx, core.Deps{
		Logger:    logx.Nop(),
		Store:     store,
		Scheduler: sched,
		Engine:    engine,
		Channels:  chs,
		Clock:     clock,
	}))
	return &fixture{p: p, ad: &fakeAdapter{}, store: store, sched: sched}
}

func (f *fixture) cmd(args ...string) *core.Request {
	return &core.Request{
		Update:  kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ID: 1, ChatID: admin, FromID: admin, IsPrivate: true}},
		Chat:    kit.ChatTarget{ChatID: admin},
		FromID:  admin,
		Args:    args,
		Adapter: f.ad,
		Logger:  logx.Nop(),
	}
}

func (f *fixture) callback(data string) *core.Request {
	return &core.Request{
		Update:  kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb", ChatID: admin, FromID: admin, MessageID: 100, Data: data}},
		Chat:    kit.ChatTarget{ChatID: admin},
		FromID:  admin,
		Adapter: f.ad,
		Logger:  logx.Nop(),
	}
}

func (f *fixture) forward(id int, group string) *core.Request {
	r := f.cmd()
	r.Update.Message = &kit.Message{ID: id, ChatID: admin, FromID: admin, IsPrivate: true, Forwarded: true, MediaGroupID: group, HasMedia: group != ""}
	return r
}

func buttons(m *tele.ReplyMarkup) []string {
	var out []string
	if m == nil {
		return out
	}
	for _, row := range m.InlineKeyboard {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestScheduleWorkflowThroughTelegram(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.p.cmdSchedule(ctx, f.cmd()))
	out := f.ad.last(t)
	assert.Contains(t, out.text, "Select the date")
	assert.Contains(t, buttons(out.markup), "postsched:date:1")

	require.NoError(t, f.p.cbDate(ctx, f.callback("postsched:date:1"), "1"))
	out = f.ad.last(t)
	assert.True(t, out.edit)
	assert.Contains(t, out.text, "2030-01-02")
	assert.Contains(t, buttons(out.markup), "postsched:time:20300102:12:00")

	require.NoError(t, f.p.cbTime(ctx, f.callback(""), "20300102:12:00"))
	assert.Contains(t, f.ad.last(t).text, "2030-01-02 12:00:00 IST")
	assert.Contains(t, f.ad.last(t).text, "from now")

	for _, r := range []*core.Request{f.forward(10, ""), f.forward(11, "mg1"), f.forward(12, "mg1"), f.forward(13, "")} {
		require.NoError(t, f.p.onMessage(ctx, r))
	}
	assert.Contains(t, f.ad.last(t).text, "Message 3 collected")

	require.NoError(t, f.p.cbEvent(conversation.Done{})(ctx, f.callback(""), ""))
	out = f.ad.last(t)
	assert.Contains(t, out.text, "Select channels")
	assert.Contains(t, buttons(out.markup), "postsched:chan:-1001")

	require.NoError(t, f.p.cbEvent(conversation.Confirm{})(ctx, f.callback(""), ""))
	assert.Equal(t, []string{"⚠️ No channels selected"}, f.ad.alerts)

	require.NoError(t, f.p.cbChannel(ctx, f.callback(""), "-1001"))
	require.NoError(t, f.p.cbChannel(ctx, f.callback(""), "-1002"))
	require.NoError(t, f.p.cbEvent(conversation.Confirm{})(ctx, f.callback(""), ""))
	out = f.ad.last(t)
	assert.Contains(t, out.text, "Post scheduled")
	assert.Contains(t, out.text, "News, Deals")
	assert.Contains(t, out.text, "<b>Messages:</b> 4")

	posts, err := f.store.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, []int64{-1001, -1002}, posts[0].Channels)
	assert.Equal(t, 1, f.sched.Len())
}

func TestPastTimeIsRejectedAsAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.p.cmdSchedule(ctx, f.cmd()))
	require.NoError(t, f.p.cbTime(ctx, f.callback(""), "20300101:09:00"))
	assert.Equal(t, []string{"⚠️ Selected time is in the past"}, f.ad.alerts)

	require.NoError(t, f.p.cmdSchedule(ctx, f.cmd("2029-12-31", "10:00")))
	assert.Contains(t, f.ad.last(t).text, "in the past")

	require.NoError(t, f.p.cmdSchedule(ctx, f.cmd("tomorrow")))
	assert.Contains(t, f.ad.last(t).text, "Invalid date/time")
}

func TestListAndCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.p.cmdList(ctx, f.cmd()))
	assert.Contains(t, f.ad.last(t).text, "No scheduled posts")

	for i := range 12 {
		_, err := f.sched.Schedule(ctx, post.ScheduledPost{
			ID:           "post_" + string(rune('a'+i)),
			ScheduleTime: now.Add(time.Duration(i+1) * time.Hour),
			Channels:     []int64{-1001},
			Messages:     []post.MessageReference{{SourceChatID: admin, SourceMessageID: i + 1}},
			Status:       post.StatusScheduled,
			CreatedAt:    now,
		})
		require.NoError(t, err)
	}
	require.NoError(t, f.p.cmdList(ctx, f.cmd()))
	text := f.ad.last(t).text
	assert.Contains(t, text, "post_a")
	assert.Contains(t, text, "1 hour from now")
	assert.NotContains(t, text, "post_k")
	assert.Contains(t, text, "... and 2 more posts")

	require.NoError(t, f.p.cmdCancelPost(ctx, f.cmd("post_a")))
	assert.Contains(t, f.ad.last(t).text, "cancelled")
	require.NoError(t, f.p.cmdCancelPost(ctx, f.cmd("post_a")))
	assert.Contains(t, f.ad.last(t).text, "No scheduled post")
	require.NoError(t, f.p.cmdCancelPost(ctx, f.cmd()))
	assert.Contains(t, f.ad.last(t).text, "Usage")
}

func TestParseTimePayload(t *testing.T) {
	t.Parallel()
	ev, ok := parseTimePayload("20300102:18:00")
	require.True(t, ok)
	assert.Equal(t, "18:00", ev.Clock)
	assert.Equal(t, 2, ev.Date.Day())

	ev, ok = parseTimePayload("20300102:custom")
	require.True(t, ok)
	assert.True(t, ev.Custom)

	_, ok = parseTimePayload("garbage")
	assert.False(t, ok)
}
