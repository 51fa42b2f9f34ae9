package recall

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/utils"
)

// TrendingRecall 是热门打分源：统计滚动窗口内每个内容的浏览次数。
// 窗口为 [now-Window, now]，now 取 RecommendContext.Now（为零值时取当前时间）。
// 理由为 "trending, N views in last 7 days"。结果按次数降序，同分按 ID 升序。
type TrendingRecall struct {
	// Window 统计窗口，默认 core.TrendingWindow
	Window time.Duration
}

func NewTrendingRecall() *TrendingRecall {
	return &TrendingRecall{Window: core.TrendingWindow}
}

func (r *TrendingRecall) Name() string        { return "recall.trending" }
func (r *TrendingRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *TrendingRecall) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *TrendingRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if rctx == nil || len(rctx.Events) == 0 {
		return nil, nil
	}

	window := r.Window
	if window <= 0 {
		window = core.TrendingWindow
	}
	now := rctx.Now
	if now.IsZero() {
		now = time.Now()
	}
	since := now.Add(-window)

	counts := make(map[string]int)
	for _, ev := range rctx.Events {
		v, ok := ev.(core.ViewItem)
		if !ok || v.ItemID == "" {
			continue
		}
		if v.At.Before(since) || v.At.After(now) {
			continue
		}
		counts[v.ItemID]++
	}

	span := windowText(window)
	out := make([]*core.Item, 0, len(counts))
	for itemID, n := range counts {
		ci, ok := rctx.Catalog.Get(itemID)
		if !ok {
			continue
		}
		it := newCatalogItem(ci, float64(n))
		it.AddReason(fmt.Sprintf("trending, %d views in last %s", n, span))
		it.PutLabel("recall_source", utils.Label{Value: "trending", Source: "recall"})
		out = append(out, it)
	}

	sortByScoreThenID(out)
	return out, nil
}

// windowText 把窗口写成理由里的时间段：整天为 "7 days"，整小时为 "12 hours"，其余用 Duration 格式。
func windowText(window time.Duration) string {
	const day = 24 * time.Hour
	switch {
	case window%day == 0:
		return fmt.Sprintf("%d days", int64(window/day))
	case window%time.Hour == 0:
		return fmt.Sprintf("%d hours", int64(window/time.Hour))
	}
	return window.String()
}
