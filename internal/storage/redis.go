package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Sumitpatel080/Forward/internal/post"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

// RedisStore keeps posts as JSON strings indexed by a sorted set scored by
// schedule time (unix millis), channels in a hash and audit entries in a
// capped list. All keys are prefixed with the namespace.
type RedisStore struct {
	rdb      *redis.Client
	ns       string
	auditCap int64
	log      logx.Logger
}

func openRedis(ctx context.Context, cfg RedisConfig, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis.addr is required for redis driver")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return NewRedis(rdb, cfg.Namespace, cfg.AuditCap, log), nil
}

// NewRedis wraps an existing client. The store owns rdb and closes it on Close.
func NewRedis(rdb *redis.Client, namespace string, auditCap int64, log logx.Logger) *RedisStore {
	if strings.TrimSpace(namespace) == "" {
		namespace = "forwardbot"
	}
	if auditCap <= 0 {
		auditCap = 10000
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &RedisStore{rdb: rdb, ns: namespace, auditCap: auditCap, log: log}
}

func (s *RedisStore) postKey(id string) string { return s.ns + ":scheduled_post:" + id }
func (s *RedisStore) indexKey() string         { return s.ns + ":scheduled_posts" }
func (s *RedisStore) channelsKey() string      { return s.ns + ":channels" }
func (s *RedisStore) auditKey() string         { return s.ns + ":audit" }

func (s *RedisStore) Close() error { return s.rdb.Close() }

func (s *RedisStore) PutPost(ctx context.Context, p post.ScheduledPost) error {
	p = p.Normalize()
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.postKey(p.ID), b, 0)
		if p.Status == post.StatusScheduled {
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(p.ScheduleTime.UnixMilli()), Member: p.ID})
		} else {
			pipe.ZRem(ctx, s.indexKey(), p.ID)
		}
		return nil
	})
	return err
}

func (s *RedisStore) GetPost(ctx context.Context, id string) (post.ScheduledPost, bool, error) {
	b, err := s.rdb.Get(ctx, s.postKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return post.ScheduledPost{}, false, nil
	}
	if err != nil {
		return post.ScheduledPost{}, false, err
	}
	var p post.ScheduledPost
	if err := json.Unmarshal(b, &p); err != nil {
		return post.ScheduledPost{}, false, fmt.Errorf("decode post %s: %w", id, err)
	}
	return p.Normalize(), true, nil
}

// ListPosts reads the index in score order; equal scores sort by member, which is the post id.
func (s *RedisStore) ListPosts(ctx context.Context) ([]post.ScheduledPost, error) {
	ids, err := s.rdb.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.postKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]post.ScheduledPost, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// index entry without a record: deleted between the two reads
			s.log.Debug("dangling post index entry", logx.String("post_id", ids[i]))
			continue
		}
		var p post.ScheduledPost
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			s.log.Warn("skipping undecodable post", logx.String("post_id", ids[i]), logx.Err(err))
			continue
		}
		if p.Status != post.StatusScheduled {
			continue
		}
		out = append(out, p.Normalize())
	}
	return out, nil
}

func (s *RedisStore) DeletePost(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.postKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	return err
}

func (s *RedisStore) PutChannel(ctx context.Context, ch post.Channel) error {
	b, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.channelsKey(), strconv.FormatInt(ch.ID, 10), b).Err()
}

func (s *RedisStore) ListChannels(ctx context.Context) ([]post.Channel, error) {
	m, err := s.rdb.HGetAll(ctx, s.channelsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make([]post.Channel, 0, len(m))
	for field, raw := range m {
		var c post.Channel
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			s.log.Warn("skipping undecodable channel", logx.String("field", field), logx.Err(err))
			continue
		}
		out = append(out, c)
	}
	sortChannels(out)
	return out, nil
}

func (s *RedisStore) DeleteChannel(ctx context.Context, id int64) (bool, error) {
	n, err := s.rdb.HDel(ctx, s.channelsKey(), strconv.FormatInt(id, 10)).Result()
	return n > 0, err
}

func (s *RedisStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, s.auditKey(), b)
		pipe.LTrim(ctx, s.auditKey(), 0, s.auditCap-1)
		return nil
	})
	return err
}
