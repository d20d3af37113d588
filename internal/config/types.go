package config

// Config is the on-disk configuration. YAML and JSON are both accepted; all
// durations are Go duration strings ("500ms", "30m").
type Config struct {
	Telegram     TelegramConfig          `json:"telegram"`
	Logging      LoggingConfig           `json:"logging"`
	Storage      StorageConfig           `json:"storage"`
	Scheduler    SchedulerConfig         `json:"scheduler"`
	Conversation ConversationConfig      `json:"conversation"`
	Status       StatusConfig            `json:"status"`
	Events       EventsConfig            `json:"events"`
	Plugins      map[string]PluginConfig `json:"plugins,omitempty"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupLog is the chat id that receives Telegram log lines.
	GroupLog    string `json:"group_log,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the scheduled-post store.
//
//	storage:
//	  driver: sqlite          # memory | file | sqlite | redis
//	  path: ./data/forwardbot.db
type StorageConfig struct {
	Driver      string      `json:"driver"`
	Path        string      `json:"path,omitempty"`
	BusyTimeout string      `json:"busy_timeout,omitempty"`
	Redis       RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr      string `json:"addr,omitempty"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	AuditCap  int64  `json:"audit_cap,omitempty"`
}

// SchedulerConfig tunes delivery. The schedule timezone is always Asia/Kolkata.
type SchedulerConfig struct {
	// Pace is the delay between loose forwards of one post (default 500ms).
	Pace string `json:"pace,omitempty"`
}

type ConversationConfig struct {
	// Store is "memory" (default) or "redis" (uses storage.redis).
	Store       string `json:"store,omitempty"`
	IdleTimeout string `json:"idle_timeout,omitempty"`
	SweepSpec   string `json:"sweep_spec,omitempty"`
}

type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
}

type EventsConfig struct {
	AMQPURL  string `json:"amqp_url,omitempty"`
	Exchange string `json:"exchange,omitempty"`
}

type PluginConfig struct {
	Enabled bool   `json:"enabled"`
	Timeout string `json:"timeout,omitempty"`
}
