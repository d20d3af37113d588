package plugin

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Sumitpatel080/Forward/internal/eventbus"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

const (
	EventPluginStarted = "plugin.started"
	EventPluginStopped = "plugin.stopped"
	EventPluginFailed  = "plugin.failed"

	defaultStartTimeout = 10 * time.Second
)

// Settings is the per-plugin part of the configuration.
type Settings struct {
	Enabled bool
	Timeout time.Duration // handler timeout for the plugin's routes (0 = none)
}

// RouteSink receives the merged routes of every running plugin.
type RouteSink interface {
	SetRegistry(cmds []Command, cbs []CallbackRoute, msgs []MessageRoute)
}

type Status struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Running bool   `json:"running"`
	Err     string `json:"err,omitempty"`
}

type pluginEvent struct {
	Plugin string `json:"plugin"`
	Stage  string `json:"stage,omitempty"`
	Err    string `json:"err,omitempty"`
	TookMS int64  `json:"took_ms,omitempty"`
}

type entry struct {
	p        Plugin
	settings Settings
	inited   bool
	running  bool
	err      string
}

type Manager struct {
	mu      sync.Mutex
	log     logx.Logger
	bus     eventbus.Bus
	sink    RouteSink
	deps    Deps
	order   []string
	plugins map[string]*entry
	ctx     context.Context
}

func NewManager(log logx.Logger, bus eventbus.Bus, sink RouteSink) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		log:     log.With(logx.String("comp", "plugins")),
		bus:     bus,
		sink:    sink,
		plugins: map[string]*entry{},
	}
}

// Register adds plugins in start order. Duplicate names are rejected.
func (m *Manager) Register(ps ...Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		name := p.Name()
		if _, dup := m.plugins[name]; dup {
			return fmt.Errorf("plugin %q registered twice", name)
		}
		m.order = append(m.order, name)
		m.plugins[name] = &entry{p: p, settings: Settings{Enabled: true}}
	}
	return nil
}

// StartAll initialises and starts every enabled plugin. A plugin that fails
// is logged and left stopped; the others still start.
func (m *Manager) StartAll(ctx context.Context, deps Deps, settings map[string]Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctx = ctx
	m.deps = deps
	m.applySettingsLocked(settings)
	for _, name := range m.order {
		if e := m.plugins[name]; e.settings.Enabled {
			m.startLocked(name, e)
		}
	}
	m.refreshLocked()
}

// Apply reconciles a new configuration: newly disabled plugins stop, newly
// enabled ones start, timeouts are refreshed.
func (m *Manager) Apply(ctx context.Context, settings map[string]Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applySettingsLocked(settings)
	if m.ctx == nil {
		return
	}
	for _, name := range m.order {
		e := m.plugins[name]
		switch {
		case e.settings.Enabled && !e.running:
			m.startLocked(name, e)
		case !e.settings.Enabled && e.running:
			m.stopLocked(ctx, name, e)
		}
	}
	m.refreshLocked()
}

// StopAll stops running plugins in reverse start order.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for i := len(m.order) - 1; i >= 0; i-- {
		name := m.order[i]
		if e := m.plugins[name]; e.running {
			if err := m.stopLocked(ctx, name, e); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	if m.sink != nil {
		m.sink.SetRegistry(nil, nil, nil)
	}
	return errors.Join(errs...)
}

func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Status, 0, len(m.order))
	for _, name := range m.order {
		e := m.plugins[name]
		out = append(out, Status{Name: name, Enabled: e.settings.Enabled, Running: e.running, Err: e.err})
	}
	return out
}

func (m *Manager) applySettingsLocked(settings map[string]Settings) {
	for name, e := range m.plugins {
		if s, ok := settings[name]; ok {
			e.settings = s
		} else {
			e.settings = Settings{Enabled: true}
		}
	}
}

func (m *Manager) startLocked(name string, e *entry) {
	start := time.Now()
	err := m.safeCall(name+".init", func() error {
		if e.inited {
			return nil
		}
		return e.p.Init(m.ctx, m.deps)
	})
	if err == nil {
		e.inited = true
		err = m.startWithTimeout(name, e.p)
	}
	if err != nil {
		e.err = err.Error()
		m.log.Error("plugin start failed", logx.String("plugin", name), logx.Err(err))
		m.emit(EventPluginFailed, pluginEvent{Plugin: name, Stage: "start", Err: err.Error()})
		return
	}
	e.running, e.err = true, ""
	took := time.Since(start)
	m.log.Info("plugin started", logx.String("plugin", name), logx.Duration("took", took))
	m.emit(EventPluginStarted, pluginEvent{Plugin: name, TookMS: took.Milliseconds()})
}

// startWithTimeout bounds Start; Start must not block on long-running work.
func (m *Manager) startWithTimeout(name string, p Plugin) error {
	ctx, cancel := context.WithTimeout(m.ctx, defaultStartTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.safeCall(name+".start", func() error { return p.Start(m.ctx) }) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("start timeout (%s)", defaultStartTimeout)
	}
}

func (m *Manager) stopLocked(ctx context.Context, name string, e *entry) error {
	err := m.safeCall(name+".stop", func() error { return e.p.Stop(ctx) })
	e.running = false
	if err != nil {
		e.err = err.Error()
		m.log.Warn("plugin stop failed", logx.String("plugin", name), logx.Err(err))
	} else {
		m.log.Info("plugin stopped", logx.String("plugin", name))
	}
	m.emit(EventPluginStopped, pluginEvent{Plugin: name})
	return err
}

func (m *Manager) safeCall(label string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in plugin call", logx.String("call", label), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic in %s: %v", label, r)
		}
	}()
	return fn()
}

// refreshLocked pushes the routes of running plugins to the sink. Routes are
// stamped with the owning plugin and inherit its timeout.
func (m *Manager) refreshLocked() {
	if m.sink == nil {
		return
	}
	var (
		cmds []Command
		cbs  []CallbackRoute
		msgs []MessageRoute
	)
	for _, name := range m.order {
		e := m.plugins[name]
		if !e.running {
			continue
		}
		to := e.settings.Timeout
		_ = m.safeCall(name+".routes", func() error {
			for _, c := range e.p.Commands() {
				c.Plugin = name
				if c.Timeout <= 0 {
					c.Timeout = to
				}
				cmds = append(cmds, c)
			}
			if cp, ok := e.p.(CallbackProvider); ok {
				for _, r := range cp.Callbacks() {
					r.Plugin = name
					if r.Timeout <= 0 {
						r.Timeout = to
					}
					cbs = append(cbs, r)
				}
			}
			if mp, ok := e.p.(MessageProvider); ok {
				for _, r := range mp.Messages() {
					r.Plugin = name
					if r.Timeout <= 0 {
						r.Timeout = to
					}
					msgs = append(msgs, r)
				}
			}
			return nil
		})
	}
	m.sink.SetRegistry(cmds, cbs, msgs)
}

func (m *Manager) emit(typ string, data pluginEvent) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(eventbus.Event{Type: typ, Data: data})
}
