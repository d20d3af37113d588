// Package system provides liveness commands: /ping, /uptime, /status, /sysinfo.
package system

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	core "github.com/Sumitpatel080/Forward/internal/plugin"
	"github.com/Sumitpatel080/Forward/pkg/tgui"
)

type Plugin struct {
	core.Base
}

func New() *Plugin             { return &Plugin{} }
func (p *Plugin) Name() string { return "system" }

func (p *Plugin) Init(_ context.Context, deps core.Deps) error {
	if deps.StartedAt.IsZero() {
		deps.StartedAt = time.Now()
	}
	p.InitBase(deps, p.Name())
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Name:        "ping",
			Description: "check the bot is alive",
			Usage:       "/ping",
			Access:      core.AccessEveryone,
			Handle: func(ctx context.Context, req *core.Request) error {
				_, err := req.Reply(ctx, "pong", nil)
				return err
			},
		},
		{
			Name:        "uptime",
			Description: "how long the bot has been running",
			Usage:       "/uptime",
			Handle: func(ctx context.Context, req *core.Request) error {
				_, err := req.Reply(ctx, "⏱ up since "+humanize.Time(p.Deps.StartedAt), nil)
				return err
			},
		},
		{
			Name:        "status",
			Description: "scheduler, conversations and runtime status",
			Usage:       "/status",
			Handle:      p.cmdStatus,
		},
		{
			Name:        "sysinfo",
			Description: "runtime and build information",
			Usage:       "/sysinfo",
			Handle:      p.cmdSysinfo,
		},
	}
}

func (p *Plugin) cmdStatus(ctx context.Context, req *core.Request) error {
	lines := []string{"🧭 <b>Status</b>"}
	if p.Deps.Status != nil {
		for _, l := range p.Deps.Status(ctx) {
			lines = append(lines, "• "+tgui.Esc(l).String())
		}
	}
	_, err := tgui.Message{Text: tgui.H(strings.Join(lines, "\n"))}.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (p *Plugin) cmdSysinfo(ctx context.Context, req *core.Request) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mod := "unknown"
	if bi, ok := debug.ReadBuildInfo(); ok {
		mod = bi.Main.Path + " " + bi.Main.Version
	}
	kv := func(k, v string) tgui.H { return tgui.B(k) + ": " + tgui.Code(v) }
	text := tgui.Lines(
		"🧠 <b>sysinfo</b>",
		kv("go", runtime.Version()),
		kv("module", mod),
		kv("goroutines", fmt.Sprint(runtime.NumGoroutine())),
		kv("heap", humanize.IBytes(m.HeapAlloc)),
		kv("sys", humanize.IBytes(m.Sys)),
		kv("gc runs", humanize.Comma(int64(m.NumGC))),
	)
	_, err := tgui.Message{Text: text}.Send(ctx, req.Adapter, req.Chat)
	return err
}
