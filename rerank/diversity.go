package rerank

import (
	"context"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
)

// Diversity 打散同类内容：按原顺序，同一分组最多保留 MaxPerCategory 个。
// 分组取 Item.Meta[Field]，Field 为空时按类别；取不到分组的内容总是保留。
// 只删除不重排，输入按分数降序时输出仍然有序。
// 默认的后处理链不包含此节点，可通过配置 rerank.diversity 启用。
type Diversity struct {
	// MaxPerCategory 每个分组最多保留的数量，默认 1
	MaxPerCategory int
	// Field 分组使用的 Meta 字段，默认 category
	Field string
}

func (n *Diversity) Name() string { return "rerank.diversity" }

func (n *Diversity) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversity) group(it *core.Item) string {
	if n.Field == "" || n.Field == "category" {
		return it.Category()
	}
	s, _ := it.Meta[n.Field].(string)
	return s
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	maxPer := max(n.MaxPerCategory, 1)

	counts := make(map[string]int)
	kept := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		g := n.group(it)
		if g != "" && counts[g] >= maxPer {
			continue
		}
		if g != "" {
			counts[g]++
		}
		kept = append(kept, it)
	}
	return kept, nil
}
