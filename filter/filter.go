// Package filter 提供后处理阶段的过滤：去掉用户已看内容、运营黑名单以及 CEL 表达式命中的内容。
package filter

import (
	"context"

	"github.com/rushteam/recflow/core"
)

// Filter 判断一个 Item 是否应该被移除，返回 true 表示移除。
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Binder 由需要按次加载外部数据的过滤器实现。
// FilterNode 每次 Process 前调用一次 Bind，本次的所有 Item 都使用返回的过滤器，
// 同一个 Binder 可以被多个用户并发使用。
type Binder interface {
	Bind(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// Func 把一个函数适配为 Filter。
type Func struct {
	FilterName string
	Fn         func(rctx *core.RecommendContext, item *core.Item) bool
}

func (f Func) Name() string { return f.FilterName }

func (f Func) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.Fn(rctx, item), nil
}

// idSet 过滤掉集合中的 ID，Bind 的结果通常是它。
type idSet struct {
	name string
	ids  map[string]struct{}
}

func (s *idSet) Name() string { return s.name }

func (s *idSet) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	_, ok := s.ids[item.ID]
	return ok, nil
}
