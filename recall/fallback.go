package recall

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/utils"
)

// FallbackRecall 是兜底打分源：仅在所选算法没有任何输出时使用。
//
// 从内容快照中剔除用户看过的内容，均匀打乱后取前 Limit 个，
// 每个内容赋一个 [0, MaxScore) 的装饰性随机分数，理由 "random suggestion"，
// 最后按分数降序排列。只要存在没看过的内容，输出就非空。
type FallbackRecall struct {
	// MaxScore 随机分数上限（不含），默认 core.FallbackMaxScore
	MaxScore float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackRecall 创建兜底打分源；rng 为空时使用基于当前时间的随机源。
// 单测可传入固定种子的 rng 以得到确定结果。
func NewFallbackRecall(rng *rand.Rand) *FallbackRecall {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &FallbackRecall{
		MaxScore: core.FallbackMaxScore,
		rng:      rng,
	}
}

func (r *FallbackRecall) Name() string        { return "recall.fallback" }
func (r *FallbackRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 只在上游输出为空时生效，否则原样透传。
func (r *FallbackRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) > 0 {
		return items, nil
	}
	return r.Recall(ctx, rctx)
}

func (r *FallbackRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rctx == nil || rctx.Catalog.Len() == 0 {
		return nil, nil
	}

	limit := rctx.Limit
	if limit <= 0 {
		limit = core.DefaultLimit
	}
	maxScore := r.MaxScore
	if maxScore <= 0 {
		maxScore = core.FallbackMaxScore
	}

	candidates := make([]core.CatalogItem, 0, rctx.Catalog.Len())
	for _, ci := range rctx.Catalog.Items() {
		if rctx.Viewed(ci.ID) {
			continue
		}
		candidates = append(candidates, ci)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// rand.Rand 不是并发安全的，批处理的多个 worker 共享同一个兜底源
	r.mu.Lock()
	r.rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*core.Item, 0, len(candidates))
	for _, ci := range candidates {
		it := newCatalogItem(ci, r.rng.Float64()*maxScore)
		it.AddReason(core.ReasonRandom)
		it.PutLabel("recall_source", utils.Label{Value: "fallback", Source: "recall"})
		out = append(out, it)
	}
	r.mu.Unlock()

	sortByScoreStable(out)
	return out, nil
}
