// Package app wires the bot together: storage, scheduler, conversation
// engine, Telegram transport, plugins and the optional status/event surfaces.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sumitpatel080/Forward/internal/channels"
	"github.com/Sumitpatel080/Forward/internal/config"
	"github.com/Sumitpatel080/Forward/internal/conversation"
	"github.com/Sumitpatel080/Forward/internal/delivery"
	"github.com/Sumitpatel080/Forward/internal/eventbus"
	"github.com/Sumitpatel080/Forward/internal/observability/status"
	"github.com/Sumitpatel080/Forward/internal/plugin"
	"github.com/Sumitpatel080/Forward/internal/post"
	rtsup "github.com/Sumitpatel080/Forward/internal/runtime/supervisor"
	"github.com/Sumitpatel080/Forward/internal/storage"
	"github.com/Sumitpatel080/Forward/internal/task/scheduler"
	kit "github.com/Sumitpatel080/Forward/internal/transport"
	telegram "github.com/Sumitpatel080/Forward/internal/transport/telegram/adapter"
	"github.com/Sumitpatel080/Forward/internal/transport/telegram/router"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
	"github.com/Sumitpatel080/Forward/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store   storage.Store
	adapter *telegram.Adapter
	sched   *scheduler.Scheduler
	convs   *conversation.Registry
	convRDB *redis.Client
	engine  *conversation.Engine
	chans   *channels.Registry
	router  *router.Router
	pm      *plugin.Manager
	status  *status.Server
	events  eventbus.Publisher

	pace      atomic.Int64
	startedAt time.Time
	updates   chan kit.Update
}

// New builds every component from the committed config of cfgm. Nothing
// runs until Start.
func New(ctx context.Context, cfgm *config.Manager) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.PollTimeout(),
	}, logx.NewConsole("INFO").With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	logSvc, root := logx.New(mapLogConfig(cfg, false), ad)
	logSvc.SetTelegramTarget(logTarget(cfg), cfg.Logging.Telegram.ThreadID)
	logSvc.Apply(mapLogConfig(cfg, true))
	log := root.With(logx.String("comp", "app"))

	a := &App{
		cfgm:      cfgm,
		log:       log,
		logs:      logSvc,
		bus:       eventbus.New(),
		adapter:   ad,
		startedAt: time.Now(),
		updates:   make(chan kit.Update, 256),
	}
	a.pace.Store(int64(cfg.Pace()))

	a.store, err = OpenStore(ctx, cfg, root)
	if err != nil {
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", cfg.Storage.Driver))

	exec := delivery.New(ad, root.With(logx.String("comp", "delivery")),
		delivery.WithPaceFunc(func() time.Duration { return time.Duration(a.pace.Load()) }))
	a.sched = scheduler.New(a.store, exec, root.With(logx.String("comp", "scheduler")), scheduler.WithBus(a.bus))

	stateStore, rdb, err := openConversationStore(ctx, cfg)
	if err != nil {
		_ = a.store.Close()
		return nil, err
	}
	a.convRDB = rdb
	a.convs = conversation.NewRegistry(stateStore, cfg.IdleTimeout(), root.With(logx.String("comp", "conversation")))
	a.chans = channels.New(a.store, root.With(logx.String("comp", "channels")))
	a.engine = conversation.NewEngine(a.convs, a.sched, a.chans, post.SystemClock{}, root.With(logx.String("comp", "engine")))

	a.router = router.New(ad, root.With(logx.String("comp", "telegram.router")), cfg.Telegram.OwnerUserIDs)
	a.pm = plugin.NewManager(root.With(logx.String("comp", "plugins")), a.bus, a.router)

	if url := strings.TrimSpace(cfg.Events.AMQPURL); url != "" {
		pub, err := eventbus.DialAMQP(url, cfg.Events.Exchange)
		if err != nil {
			// Events are optional; the bot keeps running without the relay.
			log.Warn("event publisher disabled", logx.Err(err))
		} else {
			a.events = pub
		}
	}

	a.status = status.New(status.Config{Enabled: cfg.Status.Enabled, Addr: cfg.StatusAddr()}, status.Sources{
		StartedAt:     a.startedAt,
		Armed:         a.sched.Snapshot,
		Conversations: a.convs.Len,
		Supervisors:   a.supervisorCounters,
	}, root.With(logx.String("comp", "status")))
	return a, nil
}

func (a *App) Plugins() *plugin.Manager { return a.pm }

// Done is closed when the app supervisor context is cancelled.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start recovers persisted posts before any update is dispatched, then
// starts the transport, plugins and the optional surfaces.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	c := a.sup.Context()
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	_, _ = systemd.Status("recovering scheduled posts")
	report, err := a.sched.Init(c)
	if err != nil {
		_, _ = systemd.Status("recovery read failed")
	}

	cfg := a.cfgm.Get()
	a.sup.Go("conversation.sweep", func(c context.Context) error {
		return a.convs.RunSweeper(c, cfg.SweepSpec())
	})

	a.pm.StartAll(c, plugin.Deps{
		Logger:    a.log.With(logx.String("comp", "plugin")),
		Adapter:   a.adapter,
		Bus:       a.bus,
		Store:     a.store,
		Scheduler: a.sched,
		Engine:    a.engine,
		Channels:  a.chans,
		Status:    a.statusLines,
		Clock:     post.SystemClock{},
		StartedAt: a.startedAt,
	}, mapPluginSettings(cfg))

	if err := a.adapter.Start(c, a.updates); err != nil {
		return err
	}
	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})

	if a.events != nil {
		a.sup.Go0("events.relay", func(c context.Context) {
			eventbus.Relay(c, a.bus, a.events, a.log.With(logx.String("comp", "events")))
		})
	}
	a.sup.Go0("eventbus.log", a.logEvents)
	a.status.Start(c)

	a.watchConfig()

	if _, err := systemd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	}
	a.sup.Go("systemd.watchdog", systemd.Watchdog)
	a.notifyStartup(c, report)

	a.log.Info("app started", logx.Int("armed", a.sched.Len()))
	return nil
}

func (a *App) logEvents(c context.Context) {
	events, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-c.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
		}
	}
}

// statusLines feeds the /status command.
func (a *App) statusLines(ctx context.Context) []string {
	r := status.Collect(ctx, status.Sources{
		StartedAt:     a.startedAt,
		Armed:         a.sched.Snapshot,
		Conversations: a.convs.Len,
		Supervisors:   a.supervisorCounters,
	}, time.Now())
	lines := r.Lines()
	for _, st := range a.pm.Statuses() {
		state := "stopped"
		switch {
		case st.Running:
			state = "running"
		case !st.Enabled:
			state = "disabled"
		case st.Err != "":
			state = "failed: " + st.Err
		}
		lines = append(lines, "plugin "+st.Name+": "+state)
	}
	return lines
}

func (a *App) supervisorCounters() map[string]rtsup.Counters {
	out := map[string]rtsup.Counters{}
	if a.sup != nil {
		out["app"] = a.sup.Counters()
	}
	if sup := a.adapter.Supervisor(); sup != nil {
		out["telegram.adapter"] = sup.Counters()
	}
	if sup := a.status.Supervisor(); sup != nil {
		out["status"] = sup.Counters()
	}
	return out
}

// Stop shuts components down in reverse dependency order. Each step is
// bounded so one stuck component cannot stall the rest.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	a.sup.Cancel()

	a.step(ctx, "plugins", 4*time.Second, a.pm.StopAll)
	a.step(ctx, "conversations", time.Second, a.convs.Drain)
	a.step(ctx, "scheduler", 3*time.Second, a.sched.Stop)
	a.step(ctx, "status", time.Second, a.status.Stop)
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "events", time.Second, func(context.Context) error {
		if a.events != nil {
			return a.events.Close()
		}
		return nil
	})
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.convRDB != nil {
			_ = a.convRDB.Close()
		}
		return a.store.Close()
	})
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		max = min(max, time.Until(dl))
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
