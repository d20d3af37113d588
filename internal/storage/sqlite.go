package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Sumitpatel080/Forward/internal/post"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

//go:embed migrations.sql
var migrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for sqlite driver")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Single writer; also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}

	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) PutPost(ctx context.Context, p post.ScheduledPost) error {
	p = p.Normalize()
	chs, err := json.Marshal(p.Channels)
	if err != nil {
		return err
	}
	msgs, err := json.Marshal(p.Messages)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scheduled_posts(post_id, schedule_time, channels, messages, status, created_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(post_id) DO UPDATE SET
		   schedule_time=excluded.schedule_time,
		   channels=excluded.channels,
		   messages=excluded.messages,
		   status=excluded.status`,
		p.ID, p.ScheduleTime.UnixMilli(), string(chs), string(msgs), string(p.Status), p.CreatedAt.UnixMilli(),
	)
	return err
}

func (s *sqliteStore) GetPost(ctx context.Context, id string) (post.ScheduledPost, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT post_id, schedule_time, channels, messages, status, created_at
		 FROM scheduled_posts WHERE post_id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return post.ScheduledPost{}, false, nil
	}
	if err != nil {
		return post.ScheduledPost{}, false, err
	}
	return p, true, nil
}

func (s *sqliteStore) ListPosts(ctx context.Context) ([]post.ScheduledPost, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT post_id, schedule_time, channels, messages, status, created_at
		 FROM scheduled_posts WHERE status = ?
		 ORDER BY schedule_time, post_id`, string(post.StatusScheduled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []post.ScheduledPost
	for rows.Next() {
		p, err := scanPost(rows)
		if errors.Is(err, errBadRecord) {
			s.log.Warn("skipping undecodable post", logx.Err(err))
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeletePost(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_posts WHERE post_id = ?`, id)
	return err
}

func (s *sqliteStore) PutChannel(ctx context.Context, ch post.Channel) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels(channel_id, display_name) VALUES(?,?)
		 ON CONFLICT(channel_id) DO UPDATE SET display_name=excluded.display_name`,
		ch.ID, ch.Name)
	return err
}

func (s *sqliteStore) ListChannels(ctx context.Context) ([]post.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT channel_id, display_name FROM channels ORDER BY display_name, channel_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []post.Channel
	for rows.Next() {
		var c post.Channel
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteChannel(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE channel_id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, action, post_id, channels, ok, fail, err, took_ms, meta)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.ActorID, e.Action, nullStr(e.PostID), e.Channels,
		e.OK, e.Fail, nullStr(e.Error), e.TookMS, nullStr(e.MetaJSON),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

var errBadRecord = errors.New("undecodable post record")

func scanPost(r rowScanner) (post.ScheduledPost, error) {
	var (
		p             post.ScheduledPost
		at, created   int64
		chs, msgs, st string
	)
	if err := r.Scan(&p.ID, &at, &chs, &msgs, &st, &created); err != nil {
		return post.ScheduledPost{}, err
	}
	if err := json.Unmarshal([]byte(chs), &p.Channels); err != nil {
		return post.ScheduledPost{}, fmt.Errorf("post %s channels: %w: %w", p.ID, errBadRecord, err)
	}
	if err := json.Unmarshal([]byte(msgs), &p.Messages); err != nil {
		return post.ScheduledPost{}, fmt.Errorf("post %s messages: %w: %w", p.ID, errBadRecord, err)
	}
	p.ScheduleTime = time.UnixMilli(at).In(post.IST)
	p.CreatedAt = time.UnixMilli(created).In(post.IST)
	p.Status = post.Status(st)
	return p, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
