package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/robfig/cron/v3"
)

const (
	DefaultPollTimeout = 10 * time.Second
	DefaultPace        = 500 * time.Millisecond
	DefaultIdleTimeout = 30 * time.Minute
	DefaultSweepSpec   = "@every 1m"
	DefaultStatusAddr  = "0.0.0.0:8087"
)

var errNotDuration = validation.NewError("validation_duration", "must be a non-negative Go duration")

func isDuration(v any) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d < 0 {
		return errNotDuration
	}
	return nil
}

func isCronSpec(v any) error {
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return validation.NewError("validation_cron", err.Error())
	}
	return nil
}

// Validate checks a parsed config before it is committed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	err := validation.Errors{
		"telegram": validation.ValidateStruct(&cfg.Telegram,
			validation.Field(&cfg.Telegram.Token, validation.Required),
			validation.Field(&cfg.Telegram.OwnerUserIDs, validation.Required),
			validation.Field(&cfg.Telegram.PollTimeout, validation.By(isDuration)),
		),
		"storage": validation.ValidateStruct(&cfg.Storage,
			validation.Field(&cfg.Storage.Driver, validation.In("", "memory", "file", "sqlite", "redis")),
			validation.Field(&cfg.Storage.Path, validation.When(cfg.Storage.Driver == "sqlite", validation.Required)),
			validation.Field(&cfg.Storage.BusyTimeout, validation.By(isDuration)),
		),
		"scheduler": validation.ValidateStruct(&cfg.Scheduler,
			validation.Field(&cfg.Scheduler.Pace, validation.By(isDuration)),
		),
		"conversation": validation.ValidateStruct(&cfg.Conversation,
			validation.Field(&cfg.Conversation.Store, validation.In("", "memory", "redis")),
			validation.Field(&cfg.Conversation.IdleTimeout, validation.By(isDuration)),
			validation.Field(&cfg.Conversation.SweepSpec, validation.By(isCronSpec)),
		),
	}.Filter()
	if err != nil {
		return err
	}

	needRedis := cfg.Storage.Driver == "redis" || cfg.Conversation.Store == "redis"
	if needRedis && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr is required when redis is used")
	}
	for name, p := range cfg.Plugins {
		if err := isDuration(p.Timeout); err != nil {
			return fmt.Errorf("plugins.%s.timeout: %w", name, err)
		}
	}
	return nil
}

// PollTimeout returns telegram.poll_timeout or its default.
func (c *Config) PollTimeout() time.Duration {
	return durationOr(c.Telegram.PollTimeout, DefaultPollTimeout)
}

// Pace returns scheduler.pace or its default.
func (c *Config) Pace() time.Duration { return durationOr(c.Scheduler.Pace, DefaultPace) }

func (c *Config) IdleTimeout() time.Duration {
	return durationOr(c.Conversation.IdleTimeout, DefaultIdleTimeout)
}

func (c *Config) SweepSpec() string {
	if s := strings.TrimSpace(c.Conversation.SweepSpec); s != "" {
		return s
	}
	return DefaultSweepSpec
}

func (c *Config) StatusAddr() string {
	if s := strings.TrimSpace(c.Status.Addr); s != "" {
		return s
	}
	return DefaultStatusAddr
}

func durationOr(raw string, def time.Duration) time.Duration {
	d, err := ParseDurationOrDefault("", raw, def)
	if err != nil {
		return def
	}
	return d
}
