package filter

import (
	"context"

	"github.com/rushteam/recflow/core"
)

// ViewedFilter 移除用户浏览过的内容（以偏好画像中的已看集合为准）。
// 内容打分与热门打分都不排除已看内容，去重只在这里做。
type ViewedFilter struct{}

// NewViewedFilter 创建一个已看过滤器。
func NewViewedFilter() *ViewedFilter {
	return &ViewedFilter{}
}

func (f *ViewedFilter) Name() string {
	return "filter.viewed"
}

func (f *ViewedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx == nil {
		return false, nil
	}
	return rctx.Viewed(item.ID), nil
}
