package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumitpatel080/Forward/internal/eventbus"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type fakePlugin struct {
	Base
	name     string
	startErr error
	panics   bool

	mu     sync.Mutex
	inits  int
	starts int
	stops  int
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Init(_ context.Context, d Deps) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inits++
	p.InitBase(d, p.name)
	return nil
}

func (p *fakePlugin) Start(ctx context.Context) error {
	if p.panics {
		panic("boom")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	p.StartBase(ctx)
	return p.startErr
}

func (p *fakePlugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
	return p.StopBase(ctx)
}

func (p *fakePlugin) Commands() []Command {
	return []Command{{Name: p.name + "_cmd", Handle: func(context.Context, *Request) error { return nil }}}
}

func (p *fakePlugin) Callbacks() []CallbackRoute {
	return []CallbackRoute{{Action: "go", Handle: func(context.Context, *Request, string) error { return nil }}}
}

type sink struct {
	cmds []Command
	cbs  []CallbackRoute
}

func (s *sink) SetRegistry(cmds []Command, cbs []CallbackRoute, _ []MessageRoute) {
	s.cmds, s.cbs = cmds, cbs
}

func TestManagerLifecycle(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()

	sk := &sink{}
	m := NewManager(logx.Nop(), bus, sk)
	a := &fakePlugin{name: "a"}
	b := &fakePlugin{name: "b", startErr: errors.New("nope")}
	c := &fakePlugin{name: "c", panics: true}
	require.NoError(t, m.Register(a, b, c))
	require.Error(t, m.Register(&fakePlugin{name: "a"}))

	ctx := context.Background()
	m.StartAll(ctx, Deps{}, map[string]Settings{"a": {Enabled: true, Timeout: time.Second}})

	st := m.Statuses()
	require.Len(t, st, 3)
	assert.True(t, st[0].Running)
	assert.False(t, st[1].Running)
	assert.Equal(t, "nope", st[1].Err)
	assert.False(t, st[2].Running)
	assert.Contains(t, st[2].Err, "panic")

	require.Len(t, sk.cmds, 1)
	assert.Equal(t, "a", sk.cmds[0].Plugin)
	assert.Equal(t, time.Second, sk.cmds[0].Timeout)
	require.Len(t, sk.cbs, 1)
	assert.Equal(t, "a", sk.cbs[0].Plugin)

	select {
	case ev := <-events:
		assert.Equal(t, EventPluginStarted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no plugin event")
	}

	m.Apply(ctx, map[string]Settings{"a": {Enabled: false}})
	assert.Empty(t, sk.cmds)
	assert.Equal(t, 1, a.stops)

	m.Apply(ctx, map[string]Settings{})
	assert.Len(t, sk.cmds, 1)
	assert.Equal(t, 1, a.inits, "init runs once across restarts")
	assert.Equal(t, 2, a.starts)

	require.NoError(t, m.StopAll(ctx))
	assert.Nil(t, sk.cmds)
	assert.Equal(t, 2, a.stops)
}
