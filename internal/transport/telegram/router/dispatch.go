package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	rtsup "github.com/Sumitpatel080/Forward/internal/runtime/supervisor"
	kit "github.com/Sumitpatel080/Forward/internal/transport"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

const shardQueueCap = 64

// dispatcher owns the worker shards for one DispatchLoop run. Jobs for the
// same user always land on the same shard, so a user's updates run in
// arrival order while different users proceed in parallel.
type dispatcher struct {
	shards []chan func()
	closed bool
	mu     sync.RWMutex
}

func (d *dispatcher) shard(user int64) chan func() {
	u := user
	if u < 0 {
		u = -u
	}
	return d.shards[u%int64(len(d.shards))]
}

// enqueue fails fast when the user's shard is full.
func (d *dispatcher) enqueue(user int64, fn func()) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.shard(user) <- fn:
		return true
	default:
		return false
	}
}

// enqueueWait blocks until the shard accepts fn or ctx is done. Message
// routes use it so forwarded content is never dropped.
func (d *dispatcher) enqueueWait(ctx context.Context, user int64, fn func()) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.shard(user) <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
}

// DispatchLoop consumes updates until ctx is cancelled or updates is closed.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := min(max(runtime.NumCPU(), 2), 8)
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log.With(logx.String("comp", "telegram.router"))))

	d := &dispatcher{shards: make([]chan func(), workers)}
	for i := range d.shards {
		d.shards[i] = make(chan func(), shardQueueCap)
	}
	for i, jobs := range d.shards {
		idx := i
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for job := range jobs {
				r.runJob(idx, job)
			}
			return nil
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	r.runMu.Lock()
	r.running = true
	menu := r.menuFn
	r.runMu.Unlock()
	if menu != nil {
		sup.Go0("telegram.menu.update", menu)
	}
	r.log.Info("dispatcher started", logx.Int("workers", workers), logx.Int("shard_queue_cap", shardQueueCap))

	defer func() {
		r.runMu.Lock()
		r.running = false
		r.runMu.Unlock()
		d.close()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Wait(wctx)
		sup.Cancel()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, d, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in router job", logx.Int("worker", worker), logx.Any("panic", rec), logx.Stack(string(debug.Stack())))
		}
	}()
	job()
}

func (r *Router) route(ctx context.Context, d *dispatcher, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil {
			return
		}
		if strings.HasPrefix(strings.TrimSpace(up.Message.Text), "/") && !up.Message.Forwarded {
			r.routeCommand(ctx, d, up)
			return
		}
		r.routeMessage(ctx, d, up)
	case kit.UpdateCallback:
		r.routeCallback(ctx, d, up)
	}
}

func (r *Router) newRequest(up kit.Update, chat kit.ChatTarget, from int64, command string) *Request {
	rid := newReqID()
	return &Request{
		Update:  up,
		Chat:    chat,
		FromID:  from,
		Command: command,
		ReqID:   rid,
		Adapter: r.adapter,
		Owners:  r.Owners(),
		Logger: r.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", chat.ChatID),
			logx.Int64("from_id", from),
			logx.String("cmd", command),
		),
	}
}

func (r *Router) routeCommand(ctx context.Context, d *dispatcher, up kit.Update) {
	msg := up.Message
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	parts := tokenizeCommandLine(msg.Text)
	if len(parts) == 0 {
		return
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}

	t := r.tbl.Load()
	if target, ok := t.alias[word]; ok {
		word = target
	}
	cmd, ok := t.commands[word]
	if !ok {
		_, _ = r.adapter.SendText(ctx, chat, "Unknown command. Try /help", nil)
		return
	}
	if cmd.Access == AccessOwnerOnly && !r.isOwner(msg.FromID) {
		_, _ = r.adapter.SendText(ctx, chat, "⛔ You are not authorized to use this command.", nil)
		return
	}

	req := r.newRequest(up, chat, msg.FromID, cmd.Name)
	req.Args = parts[1:]
	final := Chain(cmd.Handle, MWPanicRecover(r.log), MWRequestLog(), MWTimeout(cmd.Timeout))
	if !d.enqueue(msg.FromID, func() { _ = final(ctx, req) }) {
		_, _ = r.adapter.SendText(ctx, chat, "Busy, try again in a moment.", nil)
	}
}

// routeMessage hands non-command messages from owners to every message route.
// Messages from anyone else are ignored.
func (r *Router) routeMessage(ctx context.Context, d *dispatcher, up kit.Update) {
	msg := up.Message
	if !r.isOwner(msg.FromID) {
		return
	}
	t := r.tbl.Load()
	if len(t.messages) == 0 {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
	routes := t.messages
	req := r.newRequest(up, chat, msg.FromID, "message")
	req.Args = tokenizeCommandLine(msg.Text)
	job := func() {
		for _, mr := range routes {
			h := Chain(mr.Handle, MWPanicRecover(r.log), MWRequestLog(), MWTimeout(mr.Timeout))
			_ = h(ctx, req)
		}
	}
	if !d.enqueueWait(ctx, msg.FromID, job) {
		r.log.Warn("message not dispatched (stopping)", logx.Int64("from_id", msg.FromID))
	}
}

func (r *Router) routeCallback(ctx context.Context, d *dispatcher, up kit.Update) {
	cb := up.Callback
	if cb == nil {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(cb.Data), ":", 3)
	if len(parts) < 2 {
		return
	}
	plugin, action, payload := parts[0], parts[1], ""
	if len(parts) == 3 {
		payload = parts[2]
	}

	route, ok := r.tbl.Load().callbacks[plugin][action]
	if !ok {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "", false)
		return
	}
	if route.Access == AccessOwnerOnly && !r.isOwner(cb.FromID) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "forbidden", true)
		return
	}

	chat := kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}
	req := r.newRequest(up, chat, cb.FromID, "cb:"+plugin+":"+action)
	req.Payload = payload
	h := func(c context.Context, rq *Request) error { return route.Handle(c, rq, payload) }
	final := Chain(h, MWPanicRecover(r.log), MWRequestLog(), MWTimeout(route.Timeout))
	if !d.enqueue(cb.FromID, func() {
		_ = final(ctx, req)
		_ = req.Answer(ctx, "", false)
	}) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "busy", false)
	}
}
