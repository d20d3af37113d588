package scheduler

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/Sumitpatel080/Forward/internal/post"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type RecoverReport struct {
	Overdue      int      `json:"overdue"`
	Armed        int      `json:"armed"`
	Skipped      int      `json:"skipped"`
	AlreadyArmed int      `json:"already_armed"`
	Delivered    []string `json:"delivered,omitempty"`
}

func (r RecoverReport) Total() int { return r.Overdue + r.Armed + r.Skipped + r.AlreadyArmed }

// Init loads every stored post and recovers it. A read failure is logged
// and treated as an empty store; the error is returned for reporting only.
func (s *Scheduler) Init(ctx context.Context) (RecoverReport, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		err = post.Persistence("scheduler.init", err)
		s.log.Error("recovery: listing stored posts failed, starting with none", logx.Err(err))
		return RecoverReport{}, err
	}
	return s.Recover(ctx, posts, s.clock.Now()), nil
}

// Recover delivers overdue posts synchronously in schedule order and deletes
// them, then arms the rest without writing them again. Ids that already have
// a handle are left alone, so calling Recover twice is harmless.
func (s *Scheduler) Recover(ctx context.Context, posts []post.ScheduledPost, now time.Time) RecoverReport {
	var rep RecoverReport

	ps := make([]post.ScheduledPost, 0, len(posts))
	for _, p := range posts {
		p = p.Normalize()
		if err := p.Validate(); err != nil {
			rep.Skipped++
			s.log.Warn("recovery: skipping invalid post", logx.String("post_id", p.ID), logx.Err(err))
			continue
		}
		if p.Status != post.StatusScheduled {
			rep.Skipped++
			continue
		}
		ps = append(ps, p)
	}
	slices.SortStableFunc(ps, func(a, b post.ScheduledPost) int {
		if c := a.ScheduleTime.Compare(b.ScheduleTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	for _, p := range ps {
		if s.reg.Has(p.ID) {
			rep.AlreadyArmed++
			continue
		}
		if !p.ScheduleTime.After(now) {
			rep.Overdue++
			s.log.Info("recovery: delivering overdue post",
				logx.String("post_id", p.ID),
				logx.Duration("late_by", now.Sub(p.ScheduleTime)))
			s.deliver(context.WithoutCancel(ctx), p, true)
			rep.Delivered = append(rep.Delivered, p.ID)
			continue
		}
		if s.arm(p) {
			rep.Armed++
		} else {
			rep.Skipped++
		}
	}

	s.log.Info("recovery finished",
		logx.Int("overdue", rep.Overdue),
		logx.Int("armed", rep.Armed),
		logx.Int("skipped", rep.Skipped),
		logx.Int("already_armed", rep.AlreadyArmed))
	s.publish(EventRecovered, rep)
	return rep
}
