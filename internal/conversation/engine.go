package conversation

import (
	"context"
	"slices"
	"time"

	"github.com/Sumitpatel080/Forward/internal/post"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type Scheduler interface {
	Schedule(ctx context.Context, p post.ScheduledPost) (string, error)
}

type ChannelLister interface {
	ListChannels(ctx context.Context) ([]post.Channel, error)
}

type Engine struct {
	reg      *Registry
	sched    Scheduler
	channels ChannelLister
	clock    post.Clock
	log      logx.Logger
}

func NewEngine(reg *Registry, sched Scheduler, channels ChannelLister, clock post.Clock, log logx.Logger) *Engine {
	if clock == nil {
		clock = post.SystemClock{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{reg: reg, sched: sched, channels: channels, clock: clock, log: log}
}

func (e *Engine) Registry() *Registry { return e.reg }

func rejected(err error) Reply { return Reply{Kind: ReplyRejected, Err: err} }

// Handle routes ev according to uid's current state. Validation problems come
// back as ReplyRejected with the state unchanged; input that does not fit the
// state yields ReplyNone. A non-nil error is an internal failure.
func (e *Engine) Handle(ctx context.Context, uid int64, ev Event) (Reply, error) {
	var (
		reply     Reply
		pending   *post.ScheduledPost
		confirmed SelectingChannels
	)
	err := e.reg.Update(ctx, uid, func(cur State, ok bool) (State, error) {
		now := e.clock.Now()
		switch ev := ev.(type) {
		case Cancel:
			if ok {
				reply = Reply{Kind: ReplyCancelled}
			} else {
				reply = Reply{Kind: ReplyIdle}
			}
			return nil, nil
		case Start:
			if ev.At == nil {
				reply = Reply{Kind: ReplyDatePicker}
				return AwaitingDate{}, nil
			}
			at := post.InIST(*ev.At)
			if err := post.RequireFuture(at, now); err != nil {
				reply = rejected(err)
				return cur, nil
			}
			reply = Reply{Kind: ReplyCollecting, ScheduleTime: at}
			return CollectingMessages{ScheduleTime: at}, nil
		}
		if !ok {
			reply = Reply{Kind: ReplyNone}
			return nil, nil
		}

		var (
			next State
			err  error
		)
		switch st := cur.(type) {
		case AwaitingDate:
			next, reply = e.onAwaitingDate(st, ev, now)
		case AwaitingCustomDateTime:
			next, reply = e.onCustomDateTime(st, ev, now)
		case AwaitingCustomTime:
			next, reply = e.onCustomTime(st, ev, now)
		case CollectingMessages:
			next, reply, err = e.onCollecting(ctx, st, ev)
		case SelectingChannels:
			next, reply, pending, err = e.onSelecting(ctx, st, ev, now)
			confirmed = st
		default:
			next, reply = cur, Reply{Kind: ReplyNone}
		}
		return next, err
	})
	if err != nil {
		return Reply{}, err
	}
	if pending != nil {
		if err := e.schedule(ctx, uid, *pending, confirmed); err != nil {
			return Reply{}, err
		}
	}
	if reply.Kind == ReplyNone {
		e.log.Debug("input ignored for current step", logx.Int64("user_id", uid))
	}
	return reply, nil
}

// schedule hands a confirmed post to the scheduler outside the user's lock,
// since an already due post is delivered synchronously. On failure the
// selection is restored unless the user started over in the meantime.
func (e *Engine) schedule(ctx context.Context, uid int64, p post.ScheduledPost, st SelectingChannels) error {
	_, err := e.sched.Schedule(ctx, p)
	if err == nil {
		return nil
	}
	e.log.Error("scheduling confirmed post failed", logx.Int64("user_id", uid), logx.String("post_id", p.ID), logx.Err(err))
	rerr := e.reg.Update(context.WithoutCancel(ctx), uid, func(cur State, ok bool) (State, error) {
		if ok {
			return cur, nil
		}
		return st, nil
	})
	if rerr != nil {
		e.log.Warn("restoring channel selection failed", logx.Int64("user_id", uid), logx.Err(rerr))
	}
	return err
}

func (e *Engine) resolve(at, now time.Time) (State, Reply) {
	if err := post.RequireFuture(at, now); err != nil {
		return nil, rejected(err)
	}
	return CollectingMessages{ScheduleTime: at}, Reply{Kind: ReplyCollecting, ScheduleTime: at}
}

func (e *Engine) pickTime(cur State, ev PickTime, now time.Time) (State, Reply) {
	date := post.Midnight(ev.Date)
	if ev.Custom {
		return AwaitingCustomTime{Date: date}, Reply{Kind: ReplyAskClock, Date: date}
	}
	hh, mm, err := post.ParseClock(ev.Clock)
	if err != nil {
		return cur, rejected(err)
	}
	next, reply := e.resolve(post.CombineDate(date, hh, mm), now)
	if next == nil {
		return cur, reply
	}
	return next, reply
}

func (e *Engine) onAwaitingDate(st AwaitingDate, ev Event, now time.Time) (State, Reply) {
	switch ev := ev.(type) {
	case PickDate:
		if ev.Custom {
			return AwaitingCustomDateTime{}, Reply{Kind: ReplyAskDateTime}
		}
		if !validDays(ev.Days) {
			return st, Reply{Kind: ReplyNone}
		}
		return st, Reply{Kind: ReplyTimePicker, Date: post.Midnight(now).AddDate(0, 0, ev.Days)}
	case PickTime:
		return e.pickTime(st, ev, now)
	case BackToDate:
		return st, Reply{Kind: ReplyDatePicker}
	}
	return st, Reply{Kind: ReplyNone}
}

func (e *Engine) onCustomDateTime(st AwaitingCustomDateTime, ev Event, now time.Time) (State, Reply) {
	switch ev := ev.(type) {
	case Text:
		at, err := post.ParseDateTime(ev.Body)
		if err != nil {
			return st, rejected(err)
		}
		next, reply := e.resolve(at, now)
		if next == nil {
			return st, reply
		}
		return next, reply
	case BackToDate:
		return AwaitingDate{}, Reply{Kind: ReplyDatePicker}
	}
	return st, Reply{Kind: ReplyNone}
}

func (e *Engine) onCustomTime(st AwaitingCustomTime, ev Event, now time.Time) (State, Reply) {
	switch ev := ev.(type) {
	case Text:
		hh, mm, err := post.ParseClock(ev.Body)
		if err != nil {
			return st, rejected(err)
		}
		next, reply := e.resolve(post.CombineDate(st.Date, hh, mm), now)
		if next == nil {
			return st, reply
		}
		return next, reply
	case PickTime:
		return e.pickTime(st, ev, now)
	case BackToDate:
		return AwaitingDate{}, Reply{Kind: ReplyDatePicker}
	}
	return st, Reply{Kind: ReplyNone}
}

func (e *Engine) onCollecting(ctx context.Context, st CollectingMessages, ev Event) (State, Reply, error) {
	switch ev := ev.(type) {
	case Forwarded:
		ref := ev.Ref
		if ref.Grouped() {
			st.Groups = post.AddToGroups(cloneGroups(st.Groups), ref)
		} else {
			st.Loose = append(slices.Clip(st.Loose), ref)
		}
		return st, Reply{Kind: ReplyCollecting, ScheduleTime: st.ScheduleTime, Count: st.Count()}, nil
	case Done:
		msgs := post.Flatten(st.Loose, st.Groups)
		if len(msgs) == 0 {
			return st, rejected(post.Validation("conversation.done", post.ErrNoMessages)), nil
		}
		chs, err := e.channels.ListChannels(ctx)
		if err != nil {
			return st, Reply{}, post.Persistence("conversation.list_channels", err)
		}
		if len(chs) == 0 {
			return st, rejected(post.Validation("conversation.done", post.ErrNoChannelsRegistered)), nil
		}
		next := SelectingChannels{ScheduleTime: st.ScheduleTime, Messages: msgs, Selected: []int64{}}
		return next, Reply{Kind: ReplyChannelPicker, ScheduleTime: st.ScheduleTime, Count: len(msgs), Channels: chs, Selected: next.Selected}, nil
	}
	return st, Reply{Kind: ReplyNone}, nil
}

// onSelecting returns the post to schedule once the selection is confirmed.
func (e *Engine) onSelecting(ctx context.Context, st SelectingChannels, ev Event, now time.Time) (State, Reply, *post.ScheduledPost, error) {
	switch ev := ev.(type) {
	case ToggleChannel:
		chs, err := e.channels.ListChannels(ctx)
		if err != nil {
			return st, Reply{}, nil, post.Persistence("conversation.list_channels", err)
		}
		if !slices.ContainsFunc(chs, func(c post.Channel) bool { return c.ID == ev.ID }) {
			return st, rejected(post.Validation("conversation.toggle", post.ErrUnknownChannel)), nil, nil
		}
		sel := slices.Clone(st.Selected)
		if i := slices.Index(sel, ev.ID); i >= 0 {
			sel = slices.Delete(sel, i, i+1)
		} else {
			sel = append(sel, ev.ID)
		}
		st.Selected = sel
		return st, Reply{Kind: ReplyChannelPicker, ScheduleTime: st.ScheduleTime, Count: len(st.Messages), Channels: chs, Selected: sel}, nil, nil
	case Confirm:
		if len(st.Selected) == 0 {
			return st, rejected(post.Validation("conversation.confirm", post.ErrNoChannelsSelected)), nil, nil
		}
		id, err := post.NewID()
		if err != nil {
			return st, Reply{}, nil, err
		}
		p := post.ScheduledPost{
			ID:           id,
			ScheduleTime: st.ScheduleTime,
			Channels:     slices.Clone(st.Selected),
			Messages:     slices.Clone(st.Messages),
			Status:       post.StatusScheduled,
			CreatedAt:    now,
		}
		return nil, Reply{Kind: ReplyScheduled, ScheduleTime: st.ScheduleTime, Count: len(p.Messages), Selected: p.Channels, PostID: id}, &p, nil
	}
	return st, Reply{Kind: ReplyNone}, nil, nil
}

func cloneGroups(gs []post.MediaGroup) []post.MediaGroup {
	out := make([]post.MediaGroup, len(gs))
	for i, g := range gs {
		out[i] = post.MediaGroup{ID: g.ID, Messages: slices.Clone(g.Messages)}
	}
	return out
}
