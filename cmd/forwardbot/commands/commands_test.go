package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumitpatel080/Forward/internal/post"
	"github.com/Sumitpatel080/Forward/internal/storage"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

// setup writes a config pointing at a file store under a temp dir and seeds it.
func setup(t *testing.T) (cfg string, dir string) {
	t.Helper()
	color.NoColor = true
	dir = t.TempDir()
	data := filepath.Join(dir, "store")
	cfg = filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("storage:\n  driver: file\n  path: %s\n", data)
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))

	ctx := context.Background()
	st, err := storage.Open(ctx, storage.Config{Driver: "file", Path: data}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.PutChannel(ctx, post.Channel{ID: -1001, Name: "News"}))
	require.NoError(t, st.PutPost(ctx, post.ScheduledPost{
		ID:           "post_cli",
		ScheduleTime: time.Now().Add(3 * time.Hour),
		Channels:     []int64{-1001},
		Messages:     []post.MessageReference{{SourceChatID: 10, SourceMessageID: 1}},
		Status:       post.StatusScheduled,
		CreatedAt:    time.Now(),
	}))
	return cfg, dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestPostsListAndCancel(t *testing.T) {
	cfg, dir := setup(t)
	env := filepath.Join(dir, "missing.env")

	out, err := run(t, "-c", cfg, "--env", env, "posts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "post_cli")
	assert.Contains(t, out, "from now")
	assert.Contains(t, out, "1 post(s)")

	out, err = run(t, "-c", cfg, "--env", env, "posts", "cancel", "post_cli")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cancelled post_cli")

	_, err = run(t, "-c", cfg, "--env", env, "posts", "cancel", "post_cli")
	require.Error(t, err)

	out, err = run(t, "-c", cfg, "--env", env, "posts", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no scheduled posts")
}

func TestChannelsList(t *testing.T) {
	cfg, dir := setup(t)
	out, err := run(t, "-c", cfg, "--env", filepath.Join(dir, "missing.env"), "channels", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "-1001")
	assert.Contains(t, out, "News")
}

func TestCancelNeedsExactlyOneID(t *testing.T) {
	_, err := run(t, "posts", "cancel")
	require.Error(t, err)
}

func TestMissingConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "-c", filepath.Join(dir, "nope.yaml"), "--env", filepath.Join(dir, "x.env"), "channels", "list")
	require.Error(t, err)
}
