// Package delivery forwards a scheduled post's messages to its channels.
package delivery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/Sumitpatel080/Forward/internal/post"
	kit "github.com/Sumitpatel080/Forward/internal/transport"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

const DefaultPace = 500 * time.Millisecond

type Executor struct {
	fwd  kit.Forwarder
	log  logx.Logger
	pace func() time.Duration
}

type Option func(*Executor)

// WithPace sets a fixed delay between loose messages.
func WithPace(d time.Duration) Option {
	return func(e *Executor) { e.pace = func() time.Duration { return d } }
}

// WithPaceFunc reads the delay at the start of every delivery, so config reloads apply.
func WithPaceFunc(f func() time.Duration) Option {
	return func(e *Executor) {
		if f != nil {
			e.pace = f
		}
	}
}

func New(fwd kit.Forwarder, log logx.Logger, opts ...Option) *Executor {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Executor{fwd: fwd, log: log, pace: func() time.Duration { return DefaultPace }}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Failure is one transfer that did not reach its channel.
type Failure struct {
	Channel    int64
	MediaGroup string
	MessageIDs []int
	Err        error
}

type Report struct {
	PostID    string
	Channels  int
	Transfers int
	Sent      int
	Failures  []Failure
	Took      time.Duration
}

func (r Report) OK() bool { return len(r.Failures) == 0 }

// Deliver sends every message of p to every target channel. Per channel, each
// media group goes out as one transfer and then each loose message on its own,
// paced. Failures are recorded and skipped; only ctx cancellation stops early.
func (e *Executor) Deliver(ctx context.Context, p post.ScheduledPost) Report {
	start := time.Now()
	groups, loose := post.Partition(p.Messages)
	rep := Report{PostID: p.ID, Channels: len(p.Channels)}

	pace := e.pace()
	var lim *rate.Limiter
	if pace > 0 {
		lim = rate.NewLimiter(rate.Every(pace), 1)
	}

	log := e.log.With(logx.String("post_id", p.ID))
	for _, ch := range p.Channels {
		if ctx.Err() != nil {
			break
		}
		for _, g := range groups {
			for _, run := range splitBySource(g.Messages) {
				rep.Transfers++
				if err := e.fwd.ForwardMessages(ctx, ch, run.chat, run.ids); err != nil {
					e.fail(&rep, log, Failure{Channel: ch, MediaGroup: g.ID, MessageIDs: run.ids, Err: err})
					continue
				}
				rep.Sent += len(run.ids)
			}
		}
		for _, m := range loose {
			if lim != nil {
				if err := lim.Wait(ctx); err != nil {
					break
				}
			}
			ids := []int{m.SourceMessageID}
			rep.Transfers++
			if err := e.fwd.ForwardMessages(ctx, ch, m.SourceChatID, ids); err != nil {
				e.fail(&rep, log, Failure{Channel: ch, MessageIDs: ids, Err: err})
				continue
			}
			rep.Sent++
		}
	}

	rep.Took = time.Since(start)
	if err := ctx.Err(); err != nil {
		log.Warn("delivery interrupted", logx.Err(err), logx.Int("sent", rep.Sent))
	}
	log.Debug("delivery finished",
		logx.Int("channels", rep.Channels),
		logx.Int("transfers", rep.Transfers),
		logx.Int("sent", rep.Sent),
		logx.Int("failed", len(rep.Failures)),
		logx.Duration("took", rep.Took))
	return rep
}

func (e *Executor) fail(rep *Report, log logx.Logger, f Failure) {
	f.Err = post.Delivery(fmt.Sprintf("forward to %d", f.Channel), f.Err)
	rep.Failures = append(rep.Failures, f)
	log.Warn("forward failed, skipping",
		logx.Int64("channel", f.Channel),
		logx.String("media_group", f.MediaGroup),
		logx.Any("message_ids", f.MessageIDs),
		logx.Err(f.Err))
}

type sourceRun struct {
	chat int64
	ids  []int
}

// splitBySource cuts a group into consecutive runs sharing a source chat,
// since one forward call reads from a single chat.
func splitBySource(msgs []post.MessageReference) []sourceRun {
	var runs []sourceRun
	for _, m := range msgs {
		if n := len(runs); n > 0 && runs[n-1].chat == m.SourceChatID {
			runs[n-1].ids = append(runs[n-1].ids, m.SourceMessageID)
			continue
		}
		runs = append(runs, sourceRun{chat: m.SourceChatID, ids: []int{m.SourceMessageID}})
	}
	return runs
}
