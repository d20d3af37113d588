// Package router turns Telegram updates into handler calls: slash commands,
// inline-button callbacks ("plugin:action:payload") and plain messages.
package router

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	kit "github.com/Sumitpatel080/Forward/internal/transport"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type Access int

const (
	AccessOwnerOnly Access = iota
	AccessEveryone
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access

	Plugin  string
	Timeout time.Duration
	Handle  HandlerFunc
}

type CallbackHandlerFunc func(ctx context.Context, req *Request, payload string) error

type CallbackRoute struct {
	Plugin  string
	Action  string
	Access  Access
	Timeout time.Duration
	Handle  CallbackHandlerFunc
}

// MessageRoute receives every non-command message sent by an owner.
type MessageRoute struct {
	Plugin  string
	Timeout time.Duration
	Handle  HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	Payload string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger
	Owners  []int64

	answered atomic.Bool
}

// Reply sends text to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return r.Adapter.SendText(ctx, r.Chat, text, opt)
}

// Answer acknowledges a callback. The router answers with an empty text
// after the handler returns unless the handler already did.
func (r *Request) Answer(ctx context.Context, text string, alert bool) error {
	cb := r.Update.Callback
	if cb == nil || !r.answered.CompareAndSwap(false, true) {
		return nil
	}
	return r.Adapter.AnswerCallback(ctx, cb.ID, text, alert)
}

// MessageRef points at the message behind the request (the clicked message for callbacks).
func (r *Request) MessageRef() kit.MessageRef {
	if cb := r.Update.Callback; cb != nil {
		return kit.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
	}
	if m := r.Update.Message; m != nil {
		return kit.MessageRef{ChatID: m.ChatID, ThreadID: m.ThreadID, MessageID: m.ID}
	}
	return kit.MessageRef{}
}

type table struct {
	commands  map[string]Command
	alias     map[string]string
	callbacks map[string]map[string]CallbackRoute
	messages  []MessageRoute
}

type Router struct {
	log     logx.Logger
	adapter kit.Adapter

	tbl    atomic.Pointer[table]
	owners atomic.Pointer[[]int64]

	runMu   sync.Mutex
	running bool
	menuFn  func(context.Context)
}

func New(adapter kit.Adapter, log logx.Logger, owners []int64) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{log: log, adapter: adapter}
	r.tbl.Store(&table{commands: map[string]Command{}, alias: map[string]string{}, callbacks: map[string]map[string]CallbackRoute{}})
	r.SetOwners(owners)
	return r
}

// SetOwners replaces the owner list. Safe during hot reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.owners.Store(&cp)
}

func (r *Router) Owners() []int64 {
	p := r.owners.Load()
	if p == nil {
		return nil
	}
	return append([]int64(nil), (*p)...)
}

func (r *Router) isOwner(id int64) bool {
	p := r.owners.Load()
	if p == nil {
		return false
	}
	for _, o := range *p {
		if o == id {
			return true
		}
	}
	return false
}

// SetRegistry installs the handler table. /help is always added.
func (r *Router) SetRegistry(cmds []Command, cbs []CallbackRoute, msgs []MessageRoute) {
	cmds = append(cmds, Command{
		Name:        "help",
		Aliases:     []string{"start"},
		Description: "show available commands",
		Usage:       "/help [command]",
		Access:      AccessEveryone,
		Handle: func(ctx context.Context, req *Request) error {
			_, err := req.Reply(ctx, r.helpText(req.Args), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
			return err
		},
	})

	t := &table{
		commands:  map[string]Command{},
		alias:     map[string]string{},
		callbacks: map[string]map[string]CallbackRoute{},
	}
	for _, c := range cmds {
		name := sanitizeCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		t.commands[name] = c
		for _, a := range c.Aliases {
			if a = sanitizeCommand(a); a != "" && a != name {
				t.alias[a] = name
			}
		}
	}
	for _, cb := range cbs {
		p, a := strings.TrimSpace(cb.Plugin), strings.TrimSpace(cb.Action)
		if p == "" || a == "" || cb.Handle == nil {
			continue
		}
		if t.callbacks[p] == nil {
			t.callbacks[p] = map[string]CallbackRoute{}
		}
		t.callbacks[p][a] = cb
	}
	for _, m := range msgs {
		if m.Handle != nil {
			t.messages = append(t.messages, m)
		}
	}
	r.tbl.Store(t)

	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := buildMenu(t)
	fn := func(parent context.Context) {
		ctx, cancel := context.WithTimeout(parent, 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(ctx, menu); err != nil {
			r.log.Warn("menu update failed", logx.Err(err))
		}
	}
	r.runMu.Lock()
	r.menuFn = fn
	running := r.running
	r.runMu.Unlock()
	if running {
		go fn(context.Background())
	}
}

func newReqID() string {
	id := uuid.NewString()
	return id[:8]
}
