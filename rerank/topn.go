package rerank

import (
	"context"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/logging"
)

// TopNNode 截断到前 N 个，是后处理链的最后一步。
//
// N > 0 时固定截断到 N；否则使用请求的 rctx.Limit，
// 请求也没有设置时使用 core.DefaultLimit。
//
//	p := &pipeline.Pipeline{
//	    Name: "postprocess",
//	    Nodes: []pipeline.Node{
//	        &filter.FilterNode{NodeName: "filter.viewed", Filters: []filter.Filter{filter.NewViewedFilter()}},
//	        &rerank.TopNNode{},
//	    },
//	}
type TopNNode struct {
	N int
}

func (n *TopNNode) Name() string { return "rerank.topn" }

func (n *TopNNode) Kind() pipeline.Kind { return pipeline.KindReRank }

// limit 返回本次请求生效的截断长度。
func (n *TopNNode) limit(rctx *core.RecommendContext) int {
	switch {
	case n.N > 0:
		return n.N
	case rctx != nil && rctx.Limit > 0:
		return rctx.Limit
	}
	return core.DefaultLimit
}

func (n *TopNNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.limit(rctx)
	if len(items) <= limit {
		return items, nil
	}
	logging.Ctx(ctx).Debug().
		Int("limit", limit).
		Int("dropped", len(items)-limit).
		Msg("truncated candidates")
	return items[:limit], nil
}
