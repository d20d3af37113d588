package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rtsup "github.com/Sumitpatel080/Forward/internal/runtime/supervisor"
	"github.com/Sumitpatel080/Forward/internal/task/scheduler"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

func testSources(now time.Time) Sources {
	return Sources{
		StartedAt: now.Add(-90 * time.Minute),
		Armed: func() []scheduler.Armed {
			return []scheduler.Armed{
				{PostID: "post_a", At: now.Add(time.Hour)},
				{PostID: "post_b", At: now.Add(2 * time.Hour)},
			}
		},
		Conversations: func(context.Context) int { return 3 },
		Supervisors: func() map[string]rtsup.Counters {
			return map[string]rtsup.Counters{"telegram.adapter": {Active: 2, Restarts: 1}}
		},
	}
}

func TestCollect(t *testing.T) {
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	r := Collect(context.Background(), testSources(now), now)

	assert.Equal(t, "running", r.Status)
	assert.Equal(t, serviceName, r.Service)
	assert.Equal(t, int64(5400), r.UptimeSeconds)
	assert.Equal(t, 2, r.ArmedPosts)
	require.NotNil(t, r.NextFire)
	assert.True(t, r.NextFire.Equal(now.Add(time.Hour)))
	assert.Equal(t, 3, r.Conversations)

	lines := r.Lines()
	assert.Contains(t, lines, "armed posts: 2")
	assert.Contains(t, lines, "next delivery: 1 hour from now")
	assert.Contains(t, lines, "telegram.adapter: active=2 restarts=1 panics=0")
}

func TestCollectEmptySources(t *testing.T) {
	r := Collect(context.Background(), Sources{}, time.Now())
	assert.Zero(t, r.ArmedPosts)
	assert.Nil(t, r.NextFire)
	assert.Empty(t, r.Uptime)
}

func TestEndpoints(t *testing.T) {
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, testSources(time.Now()), logx.Nop())

	resp, err := s.App().Test(httptest.NewRequest("GET", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Forward bot is running", string(body))

	resp, err = s.App().Test(httptest.NewRequest("GET", "/status", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var got Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "running", got.Status)
	assert.Equal(t, 2, got.ArmedPosts)
	assert.Equal(t, 3, got.Conversations)
	assert.Contains(t, got.Supervisors, "telegram.adapter")
}

func TestDisabledServerDoesNotStart(t *testing.T) {
	s := New(Config{}, Sources{}, logx.Nop())
	s.Start(context.Background())
	assert.Nil(t, s.Supervisor())
	require.NoError(t, s.Stop(context.Background()))
}
