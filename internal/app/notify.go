package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Sumitpatel080/Forward/internal/task/scheduler"
	kit "github.com/Sumitpatel080/Forward/internal/transport"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
	"github.com/Sumitpatel080/Forward/pkg/tgui"
)

func startupText(r scheduler.RecoverReport) tgui.H {
	lines := []tgui.H{"🤖 " + tgui.B("Forward bot started")}
	if r.Total() == 0 {
		lines = append(lines, "No scheduled posts to recover.")
		return tgui.Lines(lines...)
	}
	lines = append(lines,
		tgui.Esc(fmt.Sprintf("Recovered %d scheduled post(s):", r.Total())),
		tgui.Esc(fmt.Sprintf("• %d armed for later", r.Armed)),
		tgui.Esc(fmt.Sprintf("• %d overdue, delivered now", r.Overdue)),
	)
	if r.Skipped > 0 {
		lines = append(lines, tgui.Esc(fmt.Sprintf("• %d skipped (invalid record)", r.Skipped)))
	}
	return tgui.Lines(lines...)
}

// notifyStartup tells the first owner that the bot is up. Failure is logged only.
func (a *App) notifyStartup(ctx context.Context, r scheduler.RecoverReport) {
	owners := a.router.Owners()
	if len(owners) == 0 {
		return
	}
	to := kit.ChatTarget{ChatID: owners[0]}
	a.sup.Go0("startup.notify", func(context.Context) {
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := (tgui.Message{Text: startupText(r)}).Send(sctx, a.adapter, to); err != nil {
			a.log.Warn("startup notification failed", logx.Int64("chat_id", to.ChatID), logx.Err(err))
		}
	})
}
