package recall

import (
	"context"
	"strings"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/utils"
)

// ContentRecall 是基于内容的打分源（Content-Based）。
//
// 核心思想："用户喜欢某些类别、搜过某些词，推荐同类或相关的内容"
//
// 打分规则（逐条遍历内容快照）：
//  1. 类别属于偏好类别：+CategoryBonus，理由 "category match: <cat>"
//  2. 按画像中的顺序扫描搜索词，第一个在标题或正文中（不区分大小写）出现的词
//     +KeywordBonus，理由 "keyword match: <kw>"，然后停止扫描
//
// 0 分的内容不输出。结果按分数降序，同分保持内容快照的顺序。
type ContentRecall struct {
	// CategoryBonus 类别命中加分，默认 core.CategoryBonus
	CategoryBonus float64

	// KeywordBonus 搜索词命中加分，默认 core.KeywordBonus
	KeywordBonus float64
}

func NewContentRecall() *ContentRecall {
	return &ContentRecall{
		CategoryBonus: core.CategoryBonus,
		KeywordBonus:  core.KeywordBonus,
	}
}

func (r *ContentRecall) Name() string        { return "recall.content" }
func (r *ContentRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Recall
func (r *ContentRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *ContentRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rctx == nil || rctx.Catalog == nil || rctx.Profile.IsEmpty() {
		return nil, nil
	}

	categoryBonus := r.CategoryBonus
	if categoryBonus <= 0 {
		categoryBonus = core.CategoryBonus
	}
	keywordBonus := r.KeywordBonus
	if keywordBonus <= 0 {
		keywordBonus = core.KeywordBonus
	}

	profile := rctx.Profile
	out := make([]*core.Item, 0)
	for _, ci := range rctx.Catalog.Items() {
		var (
			score   float64
			reasons []string
		)

		if profile.IsFavorite(ci.Category) {
			score += categoryBonus
			reasons = append(reasons, core.ReasonCategoryMatch+ci.Category)
		}

		if len(profile.SearchKeywords) > 0 {
			title := strings.ToLower(ci.Title)
			body := strings.ToLower(ci.Body)
			for _, kw := range profile.SearchKeywords {
				needle := strings.ToLower(kw)
				if needle == "" {
					continue
				}
				if strings.Contains(title, needle) || strings.Contains(body, needle) {
					score += keywordBonus
					reasons = append(reasons, core.ReasonKeywordMatch+kw)
					break
				}
			}
		}

		if score <= 0 {
			continue
		}

		it := newCatalogItem(ci, score)
		for _, reason := range reasons {
			it.AddReason(reason)
		}
		it.PutLabel("recall_source", utils.Label{Value: "content", Source: "recall"})
		out = append(out, it)
	}

	sortByScoreStable(out)
	return out, nil
}
