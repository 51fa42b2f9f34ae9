package notify

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/rushteam/recflow/core"
)

// DefaultChannelPrefix 是推送频道前缀，完整频道为 prefix + target。
const DefaultChannelPrefix = "push:"

// RedisDispatcher 通过 Redis PUBLISH 把消息投递给推送网关。
// 没有订阅者时消息直接丢弃，这与至多一次语义一致。
type RedisDispatcher struct {
	client *redis.Client
	prefix string
}

func NewRedisDispatcher(client *redis.Client, prefix string) *RedisDispatcher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisDispatcher{client: client, prefix: prefix}
}

func (d *RedisDispatcher) Name() string { return "redis" }

// Channel 返回 target 对应的频道名。
func (d *RedisDispatcher) Channel(target string) string {
	return d.prefix + target
}

func (d *RedisDispatcher) Send(ctx context.Context, target string, msg core.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := d.client.Publish(ctx, d.Channel(target), payload).Err(); err != nil {
		return core.NewDispatchError(target, err)
	}
	return nil
}

var _ core.Dispatcher = (*RedisDispatcher)(nil)
