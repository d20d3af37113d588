package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/Sumitpatel080/Forward/internal/config"
	"github.com/Sumitpatel080/Forward/internal/conversation"
	"github.com/Sumitpatel080/Forward/internal/plugin"
	"github.com/Sumitpatel080/Forward/internal/storage"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	busy, err := config.ParseDurationField("storage.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(sc.Driver)),
		Path:        strings.TrimSpace(sc.Path),
		BusyTimeout: busy,
		Redis: storage.RedisConfig{
			Addr:      sc.Redis.Addr,
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			Namespace: sc.Redis.Namespace,
			AuditCap:  sc.Redis.AuditCap,
		},
	}, nil
}

// OpenStore opens the storage driver named by cfg. The CLI uses it for
// offline inspection of the same store the bot runs on.
func OpenStore(ctx context.Context, cfg *config.Config, log logx.Logger) (storage.Store, error) {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(ctx, sc, log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return st, nil
}

// mapLogConfig keeps the Telegram sink off until SetTelegramTarget has run.
func mapLogConfig(cfg *config.Config, telegram bool) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    telegram && cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logTarget parses telegram.group_log; zero disables the Telegram sink.
func logTarget(cfg *config.Config) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(cfg.Telegram.GroupLog), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func mapPluginSettings(cfg *config.Config) map[string]plugin.Settings {
	out := make(map[string]plugin.Settings, len(cfg.Plugins))
	for name, p := range cfg.Plugins {
		timeout, _ := config.ParseDurationField("plugins."+name+".timeout", p.Timeout)
		out[name] = plugin.Settings{Enabled: p.Enabled, Timeout: timeout}
	}
	return out
}

// openConversationStore returns the state store and, for redis, the client
// the caller must close on shutdown.
func openConversationStore(ctx context.Context, cfg *config.Config) (conversation.StateStore, *redis.Client, error) {
	if !strings.EqualFold(strings.TrimSpace(cfg.Conversation.Store), "redis") {
		return conversation.NewMemoryStore(), nil, nil
	}
	rc := cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("conversation redis ping %s: %w", rc.Addr, err)
	}
	ns := rc.Namespace
	if ns == "" {
		ns = "forwardbot"
	}
	return conversation.NewRedisStore(rdb, ns), rdb, nil
}
