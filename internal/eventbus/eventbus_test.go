package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

func TestPublishFansOutAndDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New()
	a, unsubA := b.Subscribe(1)
	defer unsubA()
	c, unsubC := b.Subscribe(4)
	defer unsubC()

	b.Publish(Event{Type: "post.sent"})
	b.Publish(Event{Type: "post.cancelled"})

	assert.Len(t, a, 1)
	assert.Len(t, c, 2)
	e := <-a
	assert.Equal(t, "post.sent", e.Type)
	assert.False(t, e.Time.IsZero())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: "x"})
}

type capturePublisher struct {
	mu   sync.Mutex
	keys []string
	ids  []string
	body [][]byte
}

func (c *capturePublisher) Publish(_ context.Context, key, id string, body []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	c.ids = append(c.ids, id)
	c.body = append(c.body, body)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

func TestRelayPublishesEvents(t *testing.T) {
	t.Parallel()

	b := New()
	pub := &capturePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Relay(ctx, b, pub, logx.Nop())
		close(done)
	}()

	// wait for the relay to subscribe
	require.Eventually(t, func() bool {
		b.Publish(Event{Type: "post.scheduled", Data: map[string]any{"post_id": "post_1"}})
		return pub.count() > 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, "post.scheduled", pub.keys[0])
	_, err := uuid.Parse(pub.ids[0])
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(pub.body[0], &got))
	assert.Equal(t, "post.scheduled", got.Type)
	assert.Equal(t, "post_1", got.Data.(map[string]any)["post_id"])
}
