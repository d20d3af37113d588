package storage

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/Sumitpatel080/Forward/internal/post"
)

var ErrClosed = errors.New("storage closed")

// Config selects and configures a driver.
//
// Driver values:
//   - "memory": in-process maps, lost on restart
//   - "file":   JSON snapshot + append-only journal under Path
//   - "sqlite": SQLite database file at Path
//   - "redis":  Redis server at Redis.Addr
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only
	Redis       RedisConfig
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string // key prefix, default "forwardbot"
	AuditCap  int64  // max audit entries kept, default 10000
}

// Store is the persistence contract used by the scheduler, the channel
// registry and the CLI. Upserts are atomic per key only.
type Store interface {
	// PutPost inserts or replaces the record with p.ID.
	PutPost(ctx context.Context, p post.ScheduledPost) error
	GetPost(ctx context.Context, id string) (post.ScheduledPost, bool, error)
	// ListPosts returns every post in scheduled status ordered by schedule time, then id.
	ListPosts(ctx context.Context) ([]post.ScheduledPost, error)
	// DeletePost removes the record; a missing id is not an error.
	DeletePost(ctx context.Context, id string) error

	PutChannel(ctx context.Context, ch post.Channel) error
	// ListChannels returns channels ordered by name, then id.
	ListChannels(ctx context.Context) ([]post.Channel, error)
	DeleteChannel(ctx context.Context, id int64) (bool, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// AuditEntry records a scheduling action. Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time `json:"at"`
	ActorID  int64     `json:"actor_id,omitempty"`
	Action   string    `json:"action"`
	PostID   string    `json:"post_id,omitempty"`
	Channels int       `json:"channels,omitempty"`
	OK       int       `json:"ok,omitempty"`
	Fail     int       `json:"fail,omitempty"`
	Error    string    `json:"error,omitempty"`
	TookMS   int64     `json:"took_ms,omitempty"`
	MetaJSON string    `json:"meta,omitempty"`
}

func sortPosts(ps []post.ScheduledPost) {
	slices.SortFunc(ps, func(a, b post.ScheduledPost) int {
		if c := a.ScheduleTime.Compare(b.ScheduleTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortChannels(cs []post.Channel) {
	slices.SortFunc(cs, func(a, b post.Channel) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
