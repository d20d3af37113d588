// Package plugin hosts the bot's feature modules. A plugin contributes
// commands, callbacks and message handlers to the router and owns any
// goroutines it starts through its Base supervisor.
package plugin

import (
	"context"
	"errors"
	"time"

	"github.com/Sumitpatel080/Forward/internal/channels"
	"github.com/Sumitpatel080/Forward/internal/conversation"
	"github.com/Sumitpatel080/Forward/internal/eventbus"
	"github.com/Sumitpatel080/Forward/internal/post"
	rtsup "github.com/Sumitpatel080/Forward/internal/runtime/supervisor"
	"github.com/Sumitpatel080/Forward/internal/storage"
	"github.com/Sumitpatel080/Forward/internal/task/scheduler"
	kit "github.com/Sumitpatel080/Forward/internal/transport"
	"github.com/Sumitpatel080/Forward/internal/transport/telegram/router"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type (
	Command       = router.Command
	CallbackRoute = router.CallbackRoute
	MessageRoute  = router.MessageRoute
	Request       = router.Request
	HandlerFunc   = router.HandlerFunc
)

const (
	AccessOwnerOnly = router.AccessOwnerOnly
	AccessEveryone  = router.AccessEveryone
)

type Plugin interface {
	Name() string
	Init(ctx context.Context, deps Deps) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Commands() []Command
}

type CallbackProvider interface {
	Callbacks() []CallbackRoute
}

type MessageProvider interface {
	Messages() []MessageRoute
}

// StatusFunc reports a runtime snapshot as display lines (used by /status).
type StatusFunc func(ctx context.Context) []string

type Deps struct {
	Logger    logx.Logger
	Adapter   kit.Adapter
	Bus       eventbus.Bus
	Store     storage.Store
	Scheduler *scheduler.Scheduler
	Engine    *conversation.Engine
	Channels  *channels.Registry
	Status    StatusFunc
	Clock     post.Clock
	StartedAt time.Time
}

// Base gives plugins a named logger and a supervisor scoped to Start/Stop.
//
//	type Plugin struct{ plugin.Base }
//	func (p *Plugin) Init(_ context.Context, d plugin.Deps) error { p.InitBase(d, p.Name()); return nil }
//	func (p *Plugin) Start(ctx context.Context) error { p.StartBase(ctx); return nil }
//	func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }
type Base struct {
	Log    logx.Logger
	Deps   Deps
	Runner *rtsup.Supervisor
	name   string
}

func (b *Base) InitBase(deps Deps, name string) {
	if deps.Clock == nil {
		deps.Clock = post.SystemClock{}
	}
	b.Deps = deps
	b.name = name
	log := deps.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	b.Log = log.With(logx.String("plugin", name))
}

func (b *Base) StartBase(ctx context.Context) {
	b.Runner = rtsup.New(ctx, rtsup.WithLogger(b.Log))
}

// StopBase cancels the plugin's goroutines and waits for them, bounded by ctx.
func (b *Base) StopBase(ctx context.Context) error {
	if b.Runner == nil {
		return nil
	}
	b.Runner.Cancel()
	err := b.Runner.Wait(ctx)
	b.Runner = nil
	return err
}

// PublishEvent publishes on the in-process bus when one is configured.
func (b *Base) PublishEvent(typ string, data any) {
	if b.Deps.Bus == nil {
		return
	}
	b.Deps.Bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// AppendAudit writes an audit entry; failures are logged, not returned.
func (b *Base) AppendAudit(ctx context.Context, e storage.AuditEntry) {
	if b.Deps.Store == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if err := b.Deps.Store.AppendAudit(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		b.Log.Warn("audit append failed", logx.String("action", e.Action), logx.Err(err))
	}
}
