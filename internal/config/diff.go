package config

import (
	"reflect"
	"slices"
	"sort"

	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

// Change summarizes a reload. Attrs never carry secrets.
type Change struct {
	Sections []string
	Attrs    []logx.Field
	// Restart lists sections whose new values only apply after a restart.
	Restart []string
}

func (c Change) Has(section string) bool { return slices.Contains(c.Sections, section) }

// Summarize compares two configs section by section.
func Summarize(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, restart bool, attrs ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		ch.Attrs = append(ch.Attrs, attrs...)
		if restart {
			ch.Restart = append(ch.Restart, section)
		}
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.PollTimeout != nt.PollTimeout {
		mark("telegram.session", true, logx.String("telegram.poll_timeout", nt.PollTimeout))
	}
	if !slices.Equal(ot.OwnerUserIDs, nt.OwnerUserIDs) || ot.GroupLog != nt.GroupLog {
		mark("telegram", false,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", nt.GroupLog != ""),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging", false,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		mark("storage", true, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Scheduler != newCfg.Scheduler {
		mark("scheduler", false, logx.Duration("scheduler.pace", newCfg.Pace()))
	}
	oc, nc := oldCfg.Conversation, newCfg.Conversation
	if oc.IdleTimeout != nc.IdleTimeout {
		mark("conversation", false, logx.Duration("conversation.idle_timeout", newCfg.IdleTimeout()))
	}
	if oc.Store != nc.Store || oc.SweepSpec != nc.SweepSpec {
		mark("conversation.store", true, logx.String("conversation.store", nc.Store))
	}
	if oldCfg.Status != newCfg.Status {
		mark("status", true, logx.Bool("status.enabled", newCfg.Status.Enabled))
	}
	if oldCfg.Events != newCfg.Events {
		mark("events", true, logx.Bool("events.amqp_set", newCfg.Events.AMQPURL != ""))
	}
	if changed := diffPlugins(oldCfg.Plugins, newCfg.Plugins); len(changed) > 0 {
		mark("plugins", false, logx.Strings("plugins.changed", changed))
	}
	sort.Strings(ch.Sections)
	return ch
}

func diffPlugins(oldM, newM map[string]PluginConfig) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}
	var out []string
	for name := range set {
		o, oOK := oldM[name]
		n, nOK := newM[name]
		if oOK != nOK || o != n {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
