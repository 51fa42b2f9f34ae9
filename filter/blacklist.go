package filter

import (
	"context"
	"fmt"

	"github.com/rushteam/recflow/core"
)

// BlacklistStore 读取运营维护的黑名单。
type BlacklistStore interface {
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// BlacklistFilter 移除运营下架的内容：静态 ItemIDs 加上 Store 中 Key 对应的列表。
// 在 FilterNode 中使用时每次生成只读一次 Store。
type BlacklistFilter struct {
	ItemIDs []string
	Store   BlacklistStore
	Key     string
}

func NewBlacklistFilter(itemIDs []string, store BlacklistStore, key string) *BlacklistFilter {
	return &BlacklistFilter{ItemIDs: itemIDs, Store: store, Key: key}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

// Bind 合并静态黑名单与 Store 中的黑名单。
func (f *BlacklistFilter) Bind(ctx context.Context, _ *core.RecommendContext) (Filter, error) {
	ids := make(map[string]struct{}, len(f.ItemIDs))
	for _, id := range f.ItemIDs {
		ids[id] = struct{}{}
	}
	if f.Store != nil && f.Key != "" {
		stored, err := f.Store.GetBlacklist(ctx, f.Key)
		if err != nil {
			return nil, fmt.Errorf("load blacklist %s: %w", f.Key, err)
		}
		for _, id := range stored {
			ids[id] = struct{}{}
		}
	}
	return &idSet{name: f.Name(), ids: ids}, nil
}

// ShouldFilter 逐个 Item 判断，每次调用都会读取 Store。
func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	bound, err := f.Bind(ctx, rctx)
	if err != nil {
		return false, err
	}
	return bound.ShouldFilter(ctx, rctx, item)
}
