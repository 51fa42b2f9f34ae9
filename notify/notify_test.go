package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/rushteam/recflow/core"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingDispatcher) Name() string { return "recording" }

func (r *recordingDispatcher) Send(_ context.Context, target string, _ core.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, target)
	return r.err
}

func TestBuildMessage(t *testing.T) {
	_, ok := BuildMessage(nil)
	assert.False(t, ok)

	msg, ok := BuildMessage([]core.ScoredItem{{ItemID: "A", Title: "Go tips", Score: 70}})
	require.True(t, ok)
	assert.Equal(t, "Go tips", msg.Body)
	assert.Equal(t, []string{"A"}, msg.ItemIDs)

	msg, ok = BuildMessage([]core.ScoredItem{{ItemID: "A"}, {ItemID: "B"}, {ItemID: "C"}})
	require.True(t, ok)
	assert.Equal(t, "We found 3 items you might like", msg.Body)
	assert.Equal(t, "A", msg.Data["item_id"])
}

func TestBuildMessage_UntitledItemUsesID(t *testing.T) {
	msg, ok := BuildMessage([]core.ScoredItem{{ItemID: "A"}})
	require.True(t, ok)
	assert.Equal(t, "A", msg.Body)
}

func TestLogDispatcher(t *testing.T) {
	d := NewLogDispatcher()
	assert.Equal(t, "log", d.Name())
	assert.NoError(t, d.Send(context.Background(), "dev-1", core.Message{Title: "t"}))
}

func TestBreakerDispatcher_PassThroughAndWrap(t *testing.T) {
	next := &recordingDispatcher{}
	d := NewBreakerDispatcher(next, DefaultBreakerConfig())
	require.NoError(t, d.Send(context.Background(), "dev-1", core.Message{}))
	assert.Equal(t, []string{"dev-1"}, next.sent)

	next.err = errors.New("gateway down")
	err := d.Send(context.Background(), "dev-1", core.Message{})
	assert.True(t, core.IsDispatchFailed(err))
}

func TestBreakerDispatcher_OpensAfterFailures(t *testing.T) {
	next := &recordingDispatcher{err: errors.New("gateway down")}
	d := NewBreakerDispatcher(next, BreakerConfig{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Hour})

	for i := 0; i < 2; i++ {
		_ = d.Send(context.Background(), "dev-1", core.Message{})
	}
	assert.Equal(t, gobreaker.StateOpen, d.State())

	err := d.Send(context.Background(), "dev-1", core.Message{})
	assert.True(t, core.IsDispatchFailed(err))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	// 打开后不再调用下游
	assert.Len(t, next.sent, 2)
}

func TestThrottled_CancelledWait(t *testing.T) {
	next := &recordingDispatcher{}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	d := NewThrottled(next, limiter)

	require.NoError(t, d.Send(context.Background(), "dev-1", core.Message{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Send(ctx, "dev-2", core.Message{})
	assert.True(t, core.IsDispatchFailed(err))
	assert.Equal(t, []string{"dev-1"}, next.sent)
}

func TestRedisDispatcher_Channel(t *testing.T) {
	d := NewRedisDispatcher(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), "")
	assert.Equal(t, "push:dev-1", d.Channel("dev-1"))
	assert.Equal(t, "redis", d.Name())
}

func TestRedisDispatcher_UnreachableIsDispatchError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	err := NewRedisDispatcher(client, "push:").Send(context.Background(), "dev-1", core.Message{Title: "t"})
	assert.True(t, core.IsDispatchFailed(err))
}
