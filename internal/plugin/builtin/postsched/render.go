package postsched

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tele "gopkg.in/telebot.v4"

	"github.com/Sumitpatel080/Forward/internal/conversation"
	core "github.com/Sumitpatel080/Forward/internal/plugin"
	"github.com/Sumitpatel080/Forward/internal/post"
	"github.com/Sumitpatel080/Forward/pkg/tgui"
)

func data(action, payload string) string { return tgui.Data(name, action, payload) }

var (
	btnCancel = tgui.Btn("❌ Cancel", data("cancel", ""))
	btnBack   = tgui.Btn("« Back", data("back", ""))
	btnDone   = tgui.Btn("✅ Done", data("done", ""))
)

// render turns an engine reply into Telegram output. Callback replies edit
// the clicked message; rejections on callbacks become alert toasts so the
// keyboard stays usable.
func (p *Plugin) render(ctx context.Context, req *core.Request, r conversation.Reply) error {
	switch r.Kind {
	case conversation.ReplyNone:
		return nil
	case conversation.ReplyRejected:
		return p.notify(ctx, req, "⚠️ "+capitalize(post.UserMessage(r.Err)))
	}
	m := p.view(ctx, r)
	if req.Update.Callback != nil {
		return m.Edit(ctx, req.Adapter, req.MessageRef())
	}
	_, err := m.Send(ctx, req.Adapter, req.Chat)
	return err
}

func (p *Plugin) view(ctx context.Context, r conversation.Reply) tgui.Message {
	now := p.Deps.Clock.Now()
	switch r.Kind {
	case conversation.ReplyDatePicker:
		return datePicker()
	case conversation.ReplyTimePicker:
		return timePicker(r.Date)
	case conversation.ReplyAskDateTime:
		return tgui.Message{
			Text: tgui.Lines(
				"⌨️ Send the date and time as <code>YYYY-MM-DD HH:MM</code> (IST).",
				"Example: "+tgui.Code(now.AddDate(0, 0, 1).Format(post.DateLayout)+" 18:30"),
			),
			Keyboard: tgui.NewInline().Row(btnBack, btnCancel),
		}
	case conversation.ReplyAskClock:
		return tgui.Message{
			Text:     "⌨️ Send the time for " + tgui.Code(r.Date.Format(post.DateLayout)) + " as <code>HH:MM</code> (IST).",
			Keyboard: tgui.NewInline().Row(btnBack, btnCancel),
		}
	case conversation.ReplyCollecting:
		kb := tgui.NewInline().Row(btnDone, btnCancel)
		if r.Count == 0 {
			return tgui.Message{
				Text: tgui.Lines(
					"✅ Scheduled for "+tgui.B(post.FormatIST(r.ScheduleTime))+" ("+tgui.Esc(relative(r.ScheduleTime, now))+")",
					"",
					"📤 Now forward the messages you want to post. Albums stay together.",
					"Press <b>Done</b> (or send /done) when finished.",
				),
				Keyboard: kb,
			}
		}
		return tgui.Message{
			Text:     tgui.H(fmt.Sprintf("✅ <b>Message %d collected!</b>\n\n📤 Forward more messages or press <b>Done</b> to continue.", r.Count)),
			Keyboard: kb,
		}
	case conversation.ReplyChannelPicker:
		return channelPicker(r)
	case conversation.ReplyScheduled:
		names := p.Deps.Channels.Names(ctx, r.Selected)
		return tgui.Message{Text: tgui.Lines(
			"✅ <b>Post scheduled!</b>",
			"",
			"<b>ID:</b> "+tgui.Code(r.PostID),
			"<b>Time:</b> "+tgui.Esc(post.FormatIST(r.ScheduleTime)+" ("+relative(r.ScheduleTime, now)+")"),
			"<b>Messages:</b> "+tgui.Esc(strconv.Itoa(r.Count)),
			"<b>Channels:</b> "+tgui.Esc(strings.Join(names, ", ")),
		)}
	case conversation.ReplyCancelled:
		return tgui.Message{Text: "❌ Scheduling cancelled."}
	case conversation.ReplyIdle:
		return tgui.Message{Text: "ℹ️ No active scheduling session."}
	}
	return tgui.Message{Text: genericError}
}

func datePicker() tgui.Message {
	btns := make([]tele.Btn, 0, len(conversation.DateChoices))
	for _, c := range conversation.DateChoices {
		btns = append(btns, tgui.Btn(c.Label, data("date", strconv.Itoa(c.Days))))
	}
	kb := tgui.NewInline().
		Grid(2, btns...).
		Row(tgui.Btn("📝 Custom date & time", data("date", "custom"))).
		Row(btnCancel)
	return tgui.Message{Text: "📅 <b>Select the date</b> for your scheduled post (IST):", Keyboard: kb}
}

func timePicker(date time.Time) tgui.Message {
	day := date.Format(post.CompactDate)
	btns := make([]tele.Btn, 0, len(conversation.TimeSlots))
	for _, slot := range conversation.TimeSlots {
		btns = append(btns, tgui.Btn(slot, data("time", day+":"+slot)))
	}
	kb := tgui.NewInline().
		Grid(3, btns...).
		Row(tgui.Btn("📝 Custom time", data("time", day+":custom"))).
		Row(btnBack, btnCancel)
	return tgui.Message{
		Text:     "🕐 <b>Select a time</b> for " + tgui.Code(date.Format(post.DateLayout)) + " (IST):",
		Keyboard: kb,
	}
}

func channelPicker(r conversation.Reply) tgui.Message {
	kb := tgui.NewInline()
	for _, ch := range r.Channels {
		mark := "▫️ "
		for _, id := range r.Selected {
			if id == ch.ID {
				mark = "✅ "
				break
			}
		}
		kb.Row(tgui.Btn(mark+tgui.TruncRunes(ch.Name, 40), data("chan", strconv.FormatInt(ch.ID, 10))))
	}
	kb.Row(tgui.Btn("🚀 Schedule selected", data("confirm", ""))).Row(btnCancel)
	return tgui.Message{
		Text: tgui.Lines(
			"📢 <b>Select channels</b>",
			"",
			"<b>Time:</b> "+tgui.Esc(post.FormatIST(r.ScheduleTime)),
			"<b>Messages:</b> "+tgui.Esc(strconv.Itoa(r.Count)),
			"<b>Selected:</b> "+tgui.Esc(strconv.Itoa(len(r.Selected))),
		),
		Keyboard: kb,
	}
}

// relative renders at against now, e.g. "3 hours from now".
func relative(at, now time.Time) string {
	return humanize.RelTime(at, now, "ago", "from now")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
