package filter

import (
	"context"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/logging"
)

// FilterNode 组合多个过滤器，任一过滤器命中即移除，保留的 Item 维持原有顺序。
//
// 过滤器出错时跳过该过滤器（不移除），只记录警告：后处理不应该因为黑名单
// 读不到而让整次生成失败。
type FilterNode struct {
	// NodeName 为空时为 "filter"
	NodeName string
	Filters  []Filter
}

func (n *FilterNode) Name() string {
	if n.NodeName != "" {
		return n.NodeName
	}
	return "filter"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}
	log := logging.Ctx(ctx)
	filters := n.bind(ctx, rctx)

	removed := make(map[string]int, len(filters))
	out := make([]*core.Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		drop := false
		for _, f := range filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				log.Warn().Err(err).Str("filter", f.Name()).Str("item_id", item.ID).Msg("filter check failed")
				continue
			}
			if ok {
				removed[f.Name()]++
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, item)
		}
	}

	if len(removed) > 0 {
		ev := log.Debug().Str("node", n.Name()).Int("kept", len(out))
		for name, c := range removed {
			ev = ev.Int(name, c)
		}
		ev.Msg("items filtered")
	}
	return out, nil
}

// bind 为本次 Process 解析 Binder，Bind 失败的过滤器本次不生效。
func (n *FilterNode) bind(ctx context.Context, rctx *core.RecommendContext) []Filter {
	filters := make([]Filter, 0, len(n.Filters))
	for _, f := range n.Filters {
		if f == nil {
			continue
		}
		b, ok := f.(Binder)
		if !ok {
			filters = append(filters, f)
			continue
		}
		bound, err := b.Bind(ctx, rctx)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("filter", f.Name()).Msg("filter unavailable, skipped")
			continue
		}
		if bound != nil {
			filters = append(filters, bound)
		}
	}
	return filters
}
