package recall

import (
	"context"
	"sort"

	"github.com/rushteam/recflow/core"
)

// Source 表示一个可复用的打分源（内容/协同/热门/混合/兜底）。
// 你可以把它理解为"可并发 fan-out 的策略单元"：只读 RecommendContext，不持有可变共享状态。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// newCatalogItem 根据内容条目构建 Item，带上标题与类别。
func newCatalogItem(ci core.CatalogItem, score float64) *core.Item {
	it := core.NewItem(ci.ID)
	it.Title = ci.Title
	it.Score = score
	if ci.Category != "" {
		it.Meta["category"] = ci.Category
	}
	return it
}

// sortByScoreThenID 按分数降序、同分按 ID 升序排序（用于来源于 map 的结果，保证确定性）。
func sortByScoreThenID(items []*core.Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
}

// sortByScoreStable 按分数降序，同分保持原顺序。
func sortByScoreStable(items []*core.Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}
