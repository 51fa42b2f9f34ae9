package core

import (
	"context"
	"time"
)

// Store 是键值存储的领域接口，由 store 包实现（MemoryStore / RedisStore）。
// 黑名单与批处理日志正文存放在普通 key 上。
type Store interface {
	Name() string

	// Get 读取 key；不存在时返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入 key，ttl <= 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// BatchGet 批量读取，结果中不包含不存在的 key
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	Close() error
}

// KeyValueStore 在 Store 之上增加推荐结果与批处理日志索引所需的结构：
//   - Hash：recommendations 下每个用户一个字段，单字段覆盖写是原子的
//   - 有序集合：批处理日志 ID 按时间戳索引，倒序读取最近的 N 条
type KeyValueStore interface {
	Store

	// ZAdd 添加（或更新）有序集合成员
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRevRange 按分数从高到低返回 [start, stop] 区间的成员，stop < 0 表示到末尾
	ZRevRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// HGet 读取 Hash 字段；不存在时返回 ErrStoreNotFound
	HGet(ctx context.Context, key, field string) ([]byte, error)

	// HSet 覆盖写入 Hash 字段
	HSet(ctx context.Context, key, field string, value []byte) error

	// HGetAll 读取整个 Hash；key 不存在时返回空 map
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
}

// ErrStoreNotFound 表示 key 或字段不存在。
var ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

// IsStoreNotFound 判断是否为存储层的"不存在"，与业务层的 NOT_FOUND 区分。
func IsStoreNotFound(err error) bool {
	de := GetDomainError(err)
	return de != nil && de.Module == ModuleStore && de.Code == ErrorCodeNotFound
}
