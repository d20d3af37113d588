package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chreg "github.com/Sumitpatel080/Forward/internal/channels"
	core "github.com/Sumitpatel080/Forward/internal/plugin"
	"github.com/Sumitpatel080/Forward/internal/storage"
	kit "github.com/Sumitpatel080/Forward/internal/transport"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type captureAdapter struct {
	kit.Adapter
	texts []string
}

func (c *captureAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	c.texts = append(c.texts, text)
	return kit.MessageRef{}, nil
}

func (c *captureAdapter) last() string { return c.texts[len(c.texts)-1] }

func TestChannelCommands(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := storage.NewMemory()
	p := New()
	require.NoError(t, p.Init(ctx, core.Deps{Logger: logx.Nop(), Store: store, Channels: chreg.New(store, logx.Nop())}))

	ad := &captureAdapter{}
	req := func(args ...string) *core.Request {
		return &core.Request{FromID: 1, Args: args, Adapter: ad, Logger: logx.Nop()}
	}

	require.NoError(t, p.cmdList(ctx, req()))
	assert.Contains(t, ad.last(), "No channels saved")

	require.NoError(t, p.cmdAdd(ctx, req("-1001", "Daily", "News")))
	assert.Contains(t, ad.last(), "<b>Daily News</b>")

	require.NoError(t, p.cmdAdd(ctx, req("abc", "x")))
	assert.Contains(t, ad.last(), "must be a number")

	require.NoError(t, p.cmdAdd(ctx, req("0", "zero")))
	assert.Contains(t, ad.last(), "⚠️")

	require.NoError(t, p.cmdList(ctx, req()))
	assert.Contains(t, ad.last(), "CHANNELS (1)")
	assert.Contains(t, ad.last(), "-1001")

	require.NoError(t, p.cmdRemove(ctx, req("-1001")))
	assert.Contains(t, ad.last(), "removed")
	require.NoError(t, p.cmdRemove(ctx, req("-1001")))
	assert.Contains(t, ad.last(), "was not saved")

	entries := store.Audit()
	require.Len(t, entries, 2)
	assert.Equal(t, "channel_add", entries[0].Action)
}
