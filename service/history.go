package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rushteam/recflow/core"
)

// HistoryRequest 是历史查询请求。
type HistoryRequest struct {
	// UserID 为空时查询所有用户
	UserID string `json:"user_id"`
	// Limit 最多返回的推荐结果条数，0 表示默认值 100
	Limit int `json:"limit"`
}

// HistoryEntry 是一条推荐结果（每个用户只保留最新一条）。
type HistoryEntry struct {
	UserID          string            `json:"user_id"`
	Recommendations []core.ScoredItem `json:"recommendations"`
	Algorithm       core.Algorithm    `json:"algorithm"`
	GeneratedAt     time.Time         `json:"generated_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
	IsExpired       bool              `json:"is_expired"`
}

// HistoryResponse 是历史查询结果：推荐结果按生成时间倒序，批处理日志为最近 50 条、最新在前。
type HistoryResponse struct {
	Recommendations []HistoryEntry         `json:"recommendations"`
	BatchReports    []*core.BatchRunReport `json:"batch_reports"`
}

// History 查询已保存的推荐结果与批处理日志。
type History struct {
	store   RecommendationStore
	catalog core.CatalogSource
	clock   func() time.Time
}

// NewHistory 创建历史查询；catalog 用于补全内容标题，可为 nil。
func NewHistory(store RecommendationStore, catalog core.CatalogSource, clock func() time.Time) *History {
	if clock == nil {
		clock = time.Now
	}
	return &History{store: store, catalog: catalog, clock: clock}
}

func (h *History) Query(ctx context.Context, req HistoryRequest) (*HistoryResponse, error) {
	limit := req.Limit
	if limit < 0 {
		return nil, core.NewValidationError("limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = core.DefaultHistoryLimit
	}

	var sets []*core.RecommendationSet
	if userID := strings.TrimSpace(req.UserID); userID != "" {
		set, err := h.store.Get(ctx, userID)
		switch {
		case err == nil:
			sets = []*core.RecommendationSet{set}
		case core.IsNotFound(err):
		default:
			return nil, fmt.Errorf("load recommendations: %w", err)
		}
	} else {
		all, err := h.store.List(ctx, limit)
		if err != nil {
			return nil, fmt.Errorf("load recommendations: %w", err)
		}
		sets = all
	}

	var catalog *core.Catalog
	if h.catalog != nil && len(sets) > 0 {
		c, err := h.catalog.Catalog(ctx)
		if err != nil {
			return nil, core.NewUpstreamError(core.ModuleService, "catalog", err)
		}
		catalog = c
	}

	now := h.clock()
	entries := make([]HistoryEntry, 0, len(sets))
	for _, set := range sets {
		items := make([]core.ScoredItem, len(set.Items))
		copy(items, set.Items)
		for i := range items {
			if ci, ok := catalog.Get(items[i].ItemID); ok {
				items[i].Title = ci.Title
			}
		}
		entries = append(entries, HistoryEntry{
			UserID:          set.UserID,
			Recommendations: items,
			Algorithm:       set.Algorithm,
			GeneratedAt:     set.GeneratedAt,
			ExpiresAt:       set.ExpiresAt,
			IsExpired:       set.IsExpired(now),
		})
	}

	reports, err := h.store.RecentBatchReports(ctx, core.RecentBatchReports)
	if err != nil {
		return nil, fmt.Errorf("load batch reports: %w", err)
	}
	return &HistoryResponse{Recommendations: entries, BatchReports: reports}, nil
}
