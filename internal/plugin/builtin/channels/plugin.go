// Package channels exposes the channel registry as admin commands.
package channels

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumitpatel080/Forward/internal/post"
	core "github.com/Sumitpatel080/Forward/internal/plugin"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
	"github.com/Sumitpatel080/Forward/pkg/tgui"
)

type Plugin struct {
	core.Base
}

func New() *Plugin             { return &Plugin{} }
func (p *Plugin) Name() string { return "channels" }

func (p *Plugin) Init(_ context.Context, deps core.Deps) error {
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
			Name:        "add_channel",
			Description: "add or rename a destination channel",
			Usage:       "/add_channel <channel_id> <name>",
			Handle:      p.cmdAdd,
		},
		{
			Name:        "list_channels",
			Aliases:     []string{"channels"},
			Description: "list destination channels",
			Usage:       "/list_channels",
			Handle:      p.cmdList,
		},
		{
			Name:        "remove_channel",
			Description: "remove a destination channel",
			Usage:       "/remove_channel <channel_id>",
			Handle:      p.cmdRemove,
		},
	}
}

func (p *Plugin) cmdAdd(ctx context.Context, req *core.Request) error {
	if len(req.Args) < 2 {
		_, err := req.Reply(ctx, "❌ Usage: /add_channel <channel_id> <name>", nil)
		return err
	}
	id, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		_, err := req.Reply(ctx, "❌ Channel ID must be a number, e.g. -1001234567890", nil)
		return err
	}
	ch, err := p.Deps.Channels.Add(ctx, req.FromID, id, strings.Join(req.Args[1:], " "))
	if err != nil {
		return p.fail(ctx, req, err)
	}
	text := "✅ Channel " + tgui.B(ch.Name) + " (" + tgui.Code(strconv.FormatInt(ch.ID, 10)) + ") saved."
	_, err = tgui.Message{Text: text}.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (p *Plugin) cmdList(ctx context.Context, req *core.Request) error {
	chs, err := p.Deps.Channels.List(ctx)
	if err != nil {
		return p.fail(ctx, req, err)
	}
	if len(chs) == 0 {
		_, err := req.Reply(ctx, "📭 No channels saved. Add one with /add_channel", nil)
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📢 CHANNELS (%d)</b>\n", len(chs))
	for i, ch := range chs {
		fmt.Fprintf(&b, "\n%d. %s\n   %s", i+1, tgui.B(ch.Name), tgui.Code(strconv.FormatInt(ch.ID, 10)))
	}
	_, err = tgui.Message{Text: tgui.H(b.String())}.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (p *Plugin) cmdRemove(ctx context.Context, req *core.Request) error {
	if len(req.Args) == 0 {
		_, err := req.Reply(ctx, "❌ Usage: /remove_channel <channel_id>", nil)
		return err
	}
	id, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil {
		_, err := req.Reply(ctx, "❌ Channel ID must be a number.", nil)
		return err
	}
	ok, err := p.Deps.Channels.Remove(ctx, req.FromID, id)
	if err != nil {
		return p.fail(ctx, req, err)
	}
	text := "✅ Channel " + tgui.Code(req.Args[0]) + " removed."
	if !ok {
		text = "ℹ️ Channel " + tgui.Code(req.Args[0]) + " was not saved."
	}
	_, err = tgui.Message{Text: text}.Send(ctx, req.Adapter, req.Chat)
	return err
}

// fail reports validation problems verbatim and hides everything else.
func (p *Plugin) fail(ctx context.Context, req *core.Request, err error) error {
	if post.KindOf(err) == post.KindValidation {
		var perr *post.Error
		msg := err.Error()
		if errors.As(err, &perr) && perr.Err != nil {
			msg = perr.Err.Error()
		}
		_, rerr := req.Reply(ctx, "⚠️ "+msg, nil)
		return rerr
	}
	req.Logger.Error("channel command failed", logx.Err(err))
	_, _ = req.Reply(ctx, "❌ Something went wrong. Please try again.", nil)
	return err
}
