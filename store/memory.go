package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/recflow/core"
)

// MemoryStore 是进程内的 KeyValueStore，用于测试与单进程命令行。
// 所有写操作持有同一把锁，单个 key / Hash 字段的覆盖写对读方是原子的；
// 写入与读出的值都会复制，调用方修改切片不会影响已存数据。
type MemoryStore struct {
	mu      sync.RWMutex
	values  map[string][]byte
	expires map[string]time.Time
	hashes  map[string]map[string][]byte
	zsets   map[string]map[string]float64

	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewMemoryStore 创建内存存储，后台每 10 秒清理一次过期 key，Close 后停止。
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		values:  make(map[string][]byte),
		expires: make(map[string]time.Time),
		hashes:  make(map[string]map[string][]byte),
		zsets:   make(map[string]map[string]float64),
		ticker:  time.NewTicker(10 * time.Second),
		done:    make(chan struct{}),
	}
	go m.sweep()
	return m
}

func (m *MemoryStore) Name() string { return "memory" }

// liveLocked 判断 key 存在且未过期，调用方需持有锁。
func (m *MemoryStore) liveLocked(key string, now time.Time) ([]byte, bool) {
	v, ok := m.values[key]
	if !ok {
		return nil, false
	}
	if exp, ok := m.expires[key]; ok && !now.Before(exp) {
		return nil, false
	}
	return v, true
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.liveLocked(key, time.Now())
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return clone(v), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = clone(value)
	if ttl > 0 {
		m.expires[key] = time.Now().Add(ttl)
	} else {
		delete(m.expires, key)
	}
	return nil
}

// Delete 删除 key 以及同名的 Hash 与有序集合。
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	delete(m.expires, key)
	delete(m.hashes, key)
	delete(m.zsets, key)
	return nil
}

func (m *MemoryStore) BatchGet(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.liveLocked(k, now); ok {
			out[k] = clone(v)
		}
	}
	return out, nil
}

// Close 停止后台清理，可重复调用；数据仍可读写。
func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.ticker.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) sweep() {
	for {
		select {
		case <-m.done:
			return
		case now := <-m.ticker.C:
			m.mu.Lock()
			for k, exp := range m.expires {
				if !now.Before(exp) {
					delete(m.values, k)
					delete(m.expires, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *MemoryStore) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z := m.zsets[key]
	if z == nil {
		z = make(map[string]float64)
		m.zsets[key] = z
	}
	z[member] = score
	return nil
}

// ZRevRange 与 Redis ZREVRANGE 一致：分数降序，同分按成员字典序降序。
func (m *MemoryStore) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	z := m.zsets[key]
	members := make([]string, 0, len(z))
	for member := range z {
		members = append(members, member)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := z[members[i]], z[members[j]]
		if si != sj {
			return si > sj
		}
		return members[i] > members[j]
	})
	m.mu.RUnlock()

	n := int64(len(members))
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start > stop {
		return []string{}, nil
	}
	return members[start : stop+1], nil
}

func (m *MemoryStore) HGet(_ context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.hashes[key][field]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return clone(v), nil
}

func (m *MemoryStore) HSet(_ context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = make(map[string][]byte)
		m.hashes[key] = h
	}
	h[field] = clone(value)
	return nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.hashes[key]
	out := make(map[string][]byte, len(h))
	for f, v := range h {
		out[f] = clone(v)
	}
	return out, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

var _ core.KeyValueStore = (*MemoryStore)(nil)
