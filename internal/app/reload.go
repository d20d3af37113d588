package app

import (
	"context"
	"strings"

	"github.com/Sumitpatel080/Forward/internal/config"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

// watchConfig starts the file watcher and the goroutine applying reloads.
// Owners, logging, delivery pace, idle timeout and plugin settings apply
// live; other sections are logged as needing a restart.
func (a *App) watchConfig() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts to the newest config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, last, next)
				last = next
			}
		}
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	ch := config.Summarize(prev, next)
	if len(ch.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if len(ch.Restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.Strings("sections", ch.Restart))
	}

	if ch.Has("logging") || ch.Has("telegram") {
		a.logs.SetTelegramTarget(logTarget(next), next.Logging.Telegram.ThreadID)
		a.logs.Apply(mapLogConfig(next, true))
	}
	if ch.Has("telegram") {
		a.router.SetOwners(next.Telegram.OwnerUserIDs)
	}
	if ch.Has("scheduler") {
		a.pace.Store(int64(next.Pace()))
	}
	if ch.Has("conversation") {
		a.convs.SetIdleTimeout(next.IdleTimeout())
	}
	if ch.Has("plugins") {
		a.pm.Apply(ctx, mapPluginSettings(next))
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
	a.log.Info("config reloaded", fields...)
}
