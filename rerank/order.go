package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
)

// ScoreOrder 按分数降序稳定排序，同分保持进入本节点时的顺序。
type ScoreOrder struct{}

func (ScoreOrder) Name() string { return "rerank.order" }

func (ScoreOrder) Kind() pipeline.Kind { return pipeline.KindReRank }

func (ScoreOrder) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
