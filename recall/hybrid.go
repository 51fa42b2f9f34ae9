package recall

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/utils"
)

// WeightedSource 是参与混合的打分源及其权重。
type WeightedSource struct {
	Source Source
	Weight float64
}

// HybridRecall 是一个 Recall Node：并发执行多个打分源，并按权重合并结果。
//
//	combined = Σ weight_i · score_i（某个来源没有该内容时按 0 计）
//
// 各打分源之间没有数据依赖，Wait 是唯一的同步点；任意一个来源出错，
// 整个混合打分失败（由调用方把该用户记为失败），不会静默吞掉。
// 理由为各来源理由按来源顺序的去重并集；结果按合并分数降序，同分保持首次出现的顺序。
type HybridRecall struct {
	Sources []WeightedSource

	// Timeout 每个打分源的超时时间（0 表示不限制）
	Timeout time.Duration
}

// Weights 是 content / collaborative / trending 三路的混合权重。
type Weights struct {
	Content       float64 `yaml:"content" json:"content"`
	Collaborative float64 `yaml:"collaborative" json:"collaborative"`
	Trending      float64 `yaml:"trending" json:"trending"`
}

// DefaultWeights 返回默认权重 0.40 / 0.35 / 0.25。
func DefaultWeights() Weights {
	return Weights{
		Content:       core.HybridContentWeight,
		Collaborative: core.HybridCollaborativeWeight,
		Trending:      core.HybridTrendingWeight,
	}
}

// NewHybridRecall 使用三路打分源与权重创建混合打分。
func NewHybridRecall(content, collaborative, trending Source, w Weights) *HybridRecall {
	return &HybridRecall{
		Sources: []WeightedSource{
			{Source: content, Weight: w.Content},
			{Source: collaborative, Weight: w.Collaborative},
			{Source: trending, Weight: w.Trending},
		},
	}
}

func (n *HybridRecall) Name() string        { return "recall.hybrid" }
func (n *HybridRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *HybridRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return n.Recall(ctx, rctx)
}

func (n *HybridRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	// 每个来源写入自己的槽位，无需加锁
	results := make([][]*core.Item, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)

	for i, ws := range n.Sources {
		if ws.Source == nil {
			continue
		}
		i, s := i, ws.Source
		eg.Go(func() (err error) {
			// panic 发生在 errgroup 的 goroutine 里，调用方的 recover 接不住
			defer func() {
				if r := recover(); r != nil {
					err = core.NewInternalError(core.ModuleRecall, "%s: panic: %v", s.Name(), r)
				}
			}()
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}

			items, err := s.Recall(recallCtx, rctx)
			if err != nil {
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			results[i] = items
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return n.merge(results), nil
}

// merge 按 ID 合并各来源结果并计算加权分数。
func (n *HybridRecall) merge(results [][]*core.Item) []*core.Item {
	merged := make(map[string]*core.Item)
	order := make([]*core.Item, 0)

	for i, items := range results {
		if len(items) == 0 {
			continue
		}
		weight := n.Sources[i].Weight
		name := n.Sources[i].Source.Name()
		for _, it := range items {
			if it == nil {
				continue
			}
			cur, ok := merged[it.ID]
			if !ok {
				cur = core.NewItem(it.ID)
				cur.Title = it.Title
				for k, v := range it.Meta {
					cur.Meta[k] = v
				}
				merged[it.ID] = cur
				order = append(order, cur)
			}
			cur.Score += weight * it.Score
			for _, reason := range it.Reasons {
				cur.AddReason(reason)
			}
			cur.PutLabel("recall_source", utils.Label{Value: name, Source: "recall"})
		}
	}

	sortByScoreStable(order)
	return order
}
