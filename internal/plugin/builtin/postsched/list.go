package postsched

import (
	"context"
	"fmt"
	"strings"

	core "github.com/Sumitpatel080/Forward/internal/plugin"
	"github.com/Sumitpatel080/Forward/internal/post"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
	"github.com/Sumitpatel080/Forward/pkg/tgui"
)

func (p *Plugin) cmdList(ctx context.Context, req *core.Request) error {
	posts, err := p.Deps.Store.ListPosts(ctx)
	if err != nil {
		req.Logger.Error("listing scheduled posts failed", logx.Err(err))
		_, _ = req.Reply(ctx, genericError, nil)
		return err
	}
	if len(posts) == 0 {
		_, err := req.Reply(ctx, "📭 No scheduled posts found.", nil)
		return err
	}
	msg := tgui.Message{Text: p.listText(ctx, posts)}
	_, err = msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (p *Plugin) listText(ctx context.Context, posts []post.ScheduledPost) tgui.H {
	now := p.Deps.Clock.Now()
	var b strings.Builder
	b.WriteString("<b>📅 SCHEDULED POSTS</b>\n\n")
	for _, sp := range posts[:min(len(posts), listLimit)] {
		names := p.Deps.Channels.Names(ctx, sp.Channels)
		fmt.Fprintf(&b, "<b>ID:</b> %s\n<b>Time:</b> %s (%s)\n<b>Messages:</b> %d\n<b>Channels:</b> %s\n\n",
			tgui.Code(sp.ID),
			tgui.Esc(post.FormatIST(sp.ScheduleTime)),
			tgui.Esc(relative(sp.ScheduleTime, now)),
			len(sp.Messages),
			tgui.Esc(strings.Join(names, ", ")),
		)
	}
	if extra := len(posts) - listLimit; extra > 0 {
		fmt.Fprintf(&b, "<i>... and %d more posts</i>", extra)
	}
	return tgui.H(strings.TrimRight(b.String(), "\n"))
}

func (p *Plugin) cmdCancelPost(ctx context.Context, req *core.Request) error {
	if len(req.Args) == 0 {
		_, err := req.Reply(ctx, "❌ Please provide a post ID. Usage: /schedule_cancel <post_id>", nil)
		return err
	}
	id := req.Args[0]
	ok, err := p.Deps.Scheduler.Cancel(ctx, id)
	if err != nil {
		req.Logger.Error("cancelling scheduled post failed", logx.Err(err))
		_, _ = req.Reply(ctx, genericError, nil)
		return err
	}
	text := "✅ Scheduled post " + tgui.Code(id) + " cancelled."
	if !ok {
		text = "❌ No scheduled post " + tgui.Code(id) + ". It may have been sent or cancelled already."
	}
	_, err = tgui.Message{Text: text}.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (p *Plugin) cmdHelp(ctx context.Context, req *core.Request) error {
	_, err := tgui.Message{Text: helpText}.Send(ctx, req.Adapter, req.Chat)
	return err
}

const helpText tgui.H = `<b>📅 POST SCHEDULER HELP</b>

<b>🏗️ Setup</b>
• <code>/add_channel &lt;channel_id&gt; &lt;name&gt;</code> - add a channel
• <code>/list_channels</code> - list saved channels
• <code>/remove_channel &lt;channel_id&gt;</code> - remove a channel

<b>📤 Scheduling</b>
• <code>/schedule</code> - pick date and time from menus
• <code>/schedule YYYY-MM-DD HH:MM</code> - give the time directly (IST)

<b>📋 Management</b>
• <code>/schedule_list</code> - view scheduled posts
• <code>/schedule_cancel &lt;post_id&gt;</code> - cancel a scheduled post
• <code>/cancel</code> - abort the current session

<b>🔄 Workflow</b>
1. Add channels with /add_channel
2. Send /schedule and pick a date and time
3. Forward the messages to the bot
4. Press Done (or send /done)
5. Select channels and press Schedule selected

All times are IST. Albums are delivered together.`
