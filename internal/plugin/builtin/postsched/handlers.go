package postsched

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Sumitpatel080/Forward/internal/conversation"
	"github.com/Sumitpatel080/Forward/internal/post"
	core "github.com/Sumitpatel080/Forward/internal/plugin"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

const genericError = "❌ Something went wrong. Please try again."

// handle feeds ev to the conversation engine and renders the outcome.
func (p *Plugin) handle(ctx context.Context, req *core.Request, ev conversation.Event) error {
	reply, err := p.Deps.Engine.Handle(ctx, req.FromID, ev)
	if err != nil {
		if errors.Is(err, conversation.ErrDraining) {
			return p.notify(ctx, req, "⏳ The bot is shutting down. Please try again shortly.")
		}
		req.Logger.Error("conversation step failed", logx.String("kind", post.KindOf(err).String()), logx.Err(err))
		_ = p.notify(ctx, req, genericError)
		return err
	}
	return p.render(ctx, req, reply)
}

// notify shows a short text: an alert for callbacks, a message otherwise.
func (p *Plugin) notify(ctx context.Context, req *core.Request, text string) error {
	if req.Update.Callback != nil {
		return req.Answer(ctx, text, true)
	}
	_, err := req.Reply(ctx, text, nil)
	return err
}

func (p *Plugin) event(ev conversation.Event) core.HandlerFunc {
	return func(ctx context.Context, req *core.Request) error { return p.handle(ctx, req, ev) }
}

func (p *Plugin) cbEvent(ev conversation.Event) func(context.Context, *core.Request, string) error {
	return func(ctx context.Context, req *core.Request, _ string) error { return p.handle(ctx, req, ev) }
}

func (p *Plugin) cmdSchedule(ctx context.Context, req *core.Request) error {
	if len(req.Args) == 0 {
		return p.handle(ctx, req, conversation.Start{})
	}
	at, err := post.ParseDateTime(strings.Join(req.Args, " "))
	if err != nil {
		return p.render(ctx, req, conversation.Reply{Kind: conversation.ReplyRejected, Err: err})
	}
	return p.handle(ctx, req, conversation.Start{At: &at})
}

// cbDate payload: day offset or "custom".
func (p *Plugin) cbDate(ctx context.Context, req *core.Request, payload string) error {
	if payload == "custom" {
		return p.handle(ctx, req, conversation.PickDate{Custom: true})
	}
	days, err := strconv.Atoi(payload)
	if err != nil {
		return nil
	}
	return p.handle(ctx, req, conversation.PickDate{Days: days})
}

// cbTime payload: "YYYYMMDD:HH:MM" or "YYYYMMDD:custom".
func (p *Plugin) cbTime(ctx context.Context, req *core.Request, payload string) error {
	ev, ok := parseTimePayload(payload)
	if !ok {
		return nil
	}
	return p.handle(ctx, req, ev)
}

func parseTimePayload(payload string) (conversation.PickTime, bool) {
	day, rest, ok := strings.Cut(payload, ":")
	if !ok {
		return conversation.PickTime{}, false
	}
	date, err := post.ParseCompactDate(day)
	if err != nil {
		return conversation.PickTime{}, false
	}
	if rest == "custom" {
		return conversation.PickTime{Date: date, Custom: true}, true
	}
	return conversation.PickTime{Date: date, Clock: rest}, true
}

func (p *Plugin) cbChannel(ctx context.Context, req *core.Request, payload string) error {
	id, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		return nil
	}
	return p.handle(ctx, req, conversation.ToggleChannel{ID: id})
}

// onMessage collects forwarded messages and typed dates/times in private chats.
func (p *Plugin) onMessage(ctx context.Context, req *core.Request) error {
	msg := req.Update.Message
	if msg == nil || !msg.IsPrivate {
		return nil
	}
	if msg.Forwarded {
		return p.handle(ctx, req, conversation.Forwarded{Ref: post.MessageReference{
			SourceChatID:    msg.ChatID,
			SourceMessageID: msg.ID,
			MediaGroupID:    msg.MediaGroupID,
		}})
	}
	if body := strings.TrimSpace(msg.Text); body != "" {
		return p.handle(ctx, req, conversation.Text{Body: body})
	}
	return nil
}
