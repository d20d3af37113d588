package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Sumitpatel080/Forward/internal/post"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

// fileStore keeps the whole dataset in memory and makes it durable with:
//   - <prefix>.snapshot.json  (periodic full snapshot)
//   - <prefix>.journal.jsonl  (append-only mutations since the snapshot)
//   - <prefix>.audit.jsonl    (append-only audit trail)
//
// The journal is compacted into the snapshot on open and every compactEvery writes.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File
	auditFile    *os.File

	data   fileSnapshot
	writes int
}

const compactEvery = 200

type fileSnapshot struct {
	Posts    map[string]post.ScheduledPost `json:"posts"`
	Channels map[int64]post.Channel        `json:"channels"`
}

type journalOp string

const (
	opPutPost       journalOp = "put_post"
	opDeletePost    journalOp = "delete_post"
	opPutChannel    journalOp = "put_channel"
	opDeleteChannel journalOp = "delete_channel"
)

type journalRecord struct {
	Op        journalOp           `json:"op"`
	Post      *post.ScheduledPost `json:"post,omitempty"`
	PostID    string              `json:"post_id,omitempty"`
	Channel   *post.Channel       `json:"channel,omitempty"`
	ChannelID int64               `json:"channel_id,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		snapshotPath: prefix + ".snapshot.json",
		data:         fileSnapshot{Posts: map[string]post.ScheduledPost{}, Channels: map[int64]post.Channel{}},
	}
	if err := loadSnapshot(s.snapshotPath, &s.data); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	journalPath := prefix + ".journal.jsonl"
	replayed, err := replayJournal(journalPath, &s.data)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		_ = af.Close()
		return nil, err
	}
	s.auditFile, s.journal = af, jf

	if replayed > 0 {
		if err := s.compactLocked(); err != nil {
			log.Warn("journal compaction failed", logx.Err(err))
		}
	}
	log.Debug("file store opened",
		logx.String("snapshot", s.snapshotPath),
		logx.Int("posts", len(s.data.Posts)),
		logx.Int("channels", len(s.data.Channels)),
		logx.Int("replayed", replayed))
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.journal != nil {
		errs = append(errs, s.compactLocked(), s.journal.Close())
		s.journal = nil
	}
	if s.auditFile != nil {
		errs = append(errs, s.auditFile.Close())
		s.auditFile = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) PutPost(_ context.Context, p post.ScheduledPost) error {
	p = p.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendLocked(journalRecord{Op: opPutPost, Post: &p}); err != nil {
		return err
	}
	s.data.Posts[p.ID] = p
	return nil
}

func (s *fileStore) GetPost(_ context.Context, id string) (post.ScheduledPost, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return post.ScheduledPost{}, false, ErrClosed
	}
	p, ok := s.data.Posts[id]
	if !ok {
		return post.ScheduledPost{}, false, nil
	}
	return p.Normalize(), true, nil
}

func (s *fileStore) ListPosts(_ context.Context) ([]post.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, ErrClosed
	}
	out := make([]post.ScheduledPost, 0, len(s.data.Posts))
	for _, p := range s.data.Posts {
		if p.Status == post.StatusScheduled {
			out = append(out, p.Normalize())
		}
	}
	sortPosts(out)
	return out, nil
}

func (s *fileStore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}
	if _, ok := s.data.Posts[id]; !ok {
		return nil
	}
	if err := s.appendLocked(journalRecord{Op: opDeletePost, PostID: id}); err != nil {
		return err
	}
	delete(s.data.Posts, id)
	return nil
}

func (s *fileStore) PutChannel(_ context.Context, ch post.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendLocked(journalRecord{Op: opPutChannel, Channel: &ch}); err != nil {
		return err
	}
	s.data.Channels[ch.ID] = ch
	return nil
}

func (s *fileStore) ListChannels(_ context.Context) ([]post.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, ErrClosed
	}
	out := make([]post.Channel, 0, len(s.data.Channels))
	for _, c := range s.data.Channels {
		out = append(out, c)
	}
	sortChannels(out)
	return out, nil
}

func (s *fileStore) DeleteChannel(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return false, ErrClosed
	}
	if _, ok := s.data.Channels[id]; !ok {
		return false, nil
	}
	if err := s.appendLocked(journalRecord{Op: opDeleteChannel, ChannelID: id}); err != nil {
		return false, err
	}
	delete(s.data.Channels, id)
	return true, nil
}

func (s *fileStore) AppendAudit(_ context.Context, e AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return ErrClosed
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	return json.NewEncoder(s.auditFile).Encode(e)
}

func (s *fileStore) appendLocked(r journalRecord) error {
	if s.journal == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.journal).Encode(r); err != nil {
		return err
	}
	if err := s.journal.Sync(); err != nil {
		return err
	}
	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Warn("journal compaction failed", logx.Err(err))
		}
	}
	return nil
}

// compactLocked writes a fresh snapshot atomically and truncates the journal.
func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if s.journal == nil {
		return nil
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekEnd)
	return err
}

func loadSnapshot(path string, out *fileSnapshot) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var snap fileSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	for k, v := range snap.Posts {
		out.Posts[k] = v
	}
	for k, v := range snap.Channels {
		out.Channels[k] = v
	}
	return nil
}

// replayJournal applies journal records on top of the snapshot. A torn
// trailing line from a crash is skipped.
func replayJournal(path string, out *fileSnapshot) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var r journalRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		switch r.Op {
		case opPutPost:
			if r.Post != nil && r.Post.ID != "" {
				out.Posts[r.Post.ID] = *r.Post
			}
		case opDeletePost:
			delete(out.Posts, r.PostID)
		case opPutChannel:
			if r.Channel != nil {
				out.Channels[r.Channel.ID] = *r.Channel
			}
		case opDeleteChannel:
			delete(out.Channels, r.ChannelID)
		default:
			continue
		}
		n++
	}
	return n, sc.Err()
}
