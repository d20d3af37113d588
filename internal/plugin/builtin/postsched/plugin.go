// Package postsched is the scheduling workflow as seen from Telegram:
// commands, inline pickers and forwarded-message collection.
package postsched

import (
	"context"

	"github.com/Sumitpatel080/Forward/internal/conversation"
	core "github.com/Sumitpatel080/Forward/internal/plugin"
)

const name = "postsched"

const listLimit = 10

type Plugin struct {
	core.Base
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return name }

func (p *Plugin) Init(_ context.Context, deps core.Deps) error {
	p.InitBase(deps, name)
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
			Name:        "schedule",
			Description: "schedule forwarded messages",
			Usage:       "/schedule [YYYY-MM-DD HH:MM]",
			Handle:      p.cmdSchedule,
		},
		{
			Name:        "done",
			Description: "finish collecting messages",
			Usage:       "/done",
			Handle:      p.event(conversation.Done{}),
		},
		{
			Name:        "cancel",
			Description: "cancel the current scheduling session",
			Usage:       "/cancel",
			Handle:      p.event(conversation.Cancel{}),
		},
		{
			Name:        "schedule_list",
			Description: "list scheduled posts",
			Usage:       "/schedule_list",
			Handle:      p.cmdList,
		},
		{
			Name:        "schedule_cancel",
			Description: "cancel a scheduled post",
			Usage:       "/schedule_cancel <post_id>",
			Handle:      p.cmdCancelPost,
		},
		{
			Name:        "schedule_help",
			Description: "how scheduling works",
			Usage:       "/schedule_help",
			Handle:      p.cmdHelp,
		},
	}
}

func (p *Plugin) Callbacks() []core.CallbackRoute {
	return []core.CallbackRoute{
		{Action: "date", Handle: p.cbDate},
		{Action: "time", Handle: p.cbTime},
		{Action: "back", Handle: p.cbEvent(conversation.BackToDate{})},
		{Action: "done", Handle: p.cbEvent(conversation.Done{})},
		{Action: "chan", Handle: p.cbChannel},
		{Action: "confirm", Handle: p.cbEvent(conversation.Confirm{})},
		{Action: "cancel", Handle: p.cbEvent(conversation.Cancel{})},
	}
}

func (p *Plugin) Messages() []core.MessageRoute {
	return []core.MessageRoute{{Handle: p.onMessage}}
}
