package recall

import (
	"context"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/utils"
)

// CollaborativeRecall 是基于用户的协同打分源（User-based CF）。
//
// 核心思想："和你看过相同内容的用户，还看过什么"
//
// 算法流程：
//  1. 构建目标用户的已看集合
//  2. 对每个其他用户，相似度 = 与目标用户共同看过的内容数（原始重叠数，不做 Cosine / Jaccard 归一化）
//  3. 该用户看过、目标用户没看过的内容，累加该相似度
//
// 理由固定为 "similar users also viewed"。结果按分数降序，同分按 ID 升序；0 分不输出。
// 只输出仍在内容快照中的内容。
type CollaborativeRecall struct{}

func NewCollaborativeRecall() *CollaborativeRecall {
	return &CollaborativeRecall{}
}

func (r *CollaborativeRecall) Name() string        { return "recall.collaborative" }
func (r *CollaborativeRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *CollaborativeRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *CollaborativeRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rctx == nil || rctx.UserID == "" || len(rctx.Events) == 0 {
		return nil, nil
	}

	viewedBy := core.ViewedBy(rctx.Events)

	// 目标用户的已看集合：优先使用画像，没有画像时从事件构建
	target := viewedBy[rctx.UserID]
	if rctx.Profile != nil && len(rctx.Profile.ViewedItemIDs) > 0 {
		target = rctx.Profile.ViewedItemIDs
	}
	if len(target) == 0 {
		return nil, nil
	}

	itemScores := make(map[string]float64)
	for userID, items := range viewedBy {
		if userID == rctx.UserID {
			continue // 跳过自己
		}

		overlap := 0
		for itemID := range items {
			if _, ok := target[itemID]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}

		for itemID := range items {
			if _, ok := target[itemID]; ok {
				continue
			}
			itemScores[itemID] += float64(overlap)
		}
	}

	out := make([]*core.Item, 0, len(itemScores))
	for itemID, score := range itemScores {
		if score <= 0 {
			continue
		}
		ci, ok := rctx.Catalog.Get(itemID)
		if !ok {
			continue
		}
		it := newCatalogItem(ci, score)
		it.AddReason(core.ReasonSimilarUsers)
		it.PutLabel("recall_source", utils.Label{Value: "collaborative", Source: "recall"})
		out = append(out, it)
	}

	sortByScoreThenID(out)
	return out, nil
}
