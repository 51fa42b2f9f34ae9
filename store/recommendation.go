package store

import (
	"context"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rushteam/recflow/core"
)

const (
	// RecommendationsKey 是保存全部用户推荐结果的 Hash，field 为 userId
	RecommendationsKey = "recommendations"

	// BatchLogsKey 是批处理日志的时间索引（有序集合，score 为毫秒时间戳）；
	// 日志正文保存在 BatchLogsKey + ":" + id
	BatchLogsKey = "recommendation_batch_logs"
)

// RecommendationRepo 是推荐结果与批处理日志的仓库。
//
// 每个用户只有一条推荐结果，Save 用单个 HSET 整体覆盖，读方要么看到旧结果，要么看到新结果。
// 批处理日志只追加。
type RecommendationRepo struct {
	kv core.KeyValueStore
}

func NewRecommendationRepo(kv core.KeyValueStore) *RecommendationRepo {
	return &RecommendationRepo{kv: kv}
}

// Save 覆盖写入用户的推荐结果。
func (r *RecommendationRepo) Save(ctx context.Context, set *core.RecommendationSet) error {
	if set == nil || set.UserID == "" {
		return core.NewValidationError("recommendation set requires a user id")
	}
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}
	if err := r.kv.HSet(ctx, RecommendationsKey, set.UserID, data); err != nil {
		return core.NewUpstreamError(core.ModuleStore, "recommendation store", err)
	}
	return nil
}

// Get 读取用户的推荐结果；没有结果时返回 NOT_FOUND。
func (r *RecommendationRepo) Get(ctx context.Context, userID string) (*core.RecommendationSet, error) {
	data, err := r.kv.HGet(ctx, RecommendationsKey, userID)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NewNotFoundError(core.ModuleStore, "no recommendations for user %s", userID)
		}
		return nil, core.NewUpstreamError(core.ModuleStore, "recommendation store", err)
	}
	var set core.RecommendationSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// List 返回全部用户的推荐结果，按生成时间倒序；limit <= 0 表示不限制。
func (r *RecommendationRepo) List(ctx context.Context, limit int) ([]*core.RecommendationSet, error) {
	all, err := r.kv.HGetAll(ctx, RecommendationsKey)
	if err != nil {
		return nil, core.NewUpstreamError(core.ModuleStore, "recommendation store", err)
	}
	out := make([]*core.RecommendationSet, 0, len(all))
	for field, data := range all {
		var set core.RecommendationSet
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, err
		}
		if set.UserID == "" {
			set.UserID = field
		}
		out = append(out, &set)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendBatchReport 追加一条批处理日志，ID 为空时自动生成。
func (r *RecommendationRepo) AppendBatchReport(ctx context.Context, report *core.BatchRunReport) error {
	if report == nil {
		return core.NewValidationError("batch report is nil")
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now()
	}
	if report.Errors == nil {
		report.Errors = make([]core.UserError, 0)
	}
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, batchLogKey(report.ID), data, 0); err != nil {
		return core.NewUpstreamError(core.ModuleStore, "batch log store", err)
	}
	score := float64(report.Timestamp.UnixMilli())
	if err := r.kv.ZAdd(ctx, BatchLogsKey, score, report.ID); err != nil {
		return core.NewUpstreamError(core.ModuleStore, "batch log store", err)
	}
	return nil
}

// RecentBatchReports 返回最近 n 条批处理日志，最新的在前。
func (r *RecommendationRepo) RecentBatchReports(ctx context.Context, n int) ([]*core.BatchRunReport, error) {
	if n <= 0 {
		n = core.RecentBatchReports
	}
	ids, err := r.kv.ZRevRange(ctx, BatchLogsKey, 0, int64(n-1))
	if err != nil {
		return nil, core.NewUpstreamError(core.ModuleStore, "batch log store", err)
	}
	if len(ids) == 0 {
		return make([]*core.BatchRunReport, 0), nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = batchLogKey(id)
	}
	values, err := r.kv.BatchGet(ctx, keys)
	if err != nil {
		return nil, core.NewUpstreamError(core.ModuleStore, "batch log store", err)
	}
	out := make([]*core.BatchRunReport, 0, len(ids))
	for _, key := range keys {
		data, ok := values[key]
		if !ok {
			// 索引存在但正文已过期或被删除
			continue
		}
		var report core.BatchRunReport
		if err := json.Unmarshal(data, &report); err != nil {
			return nil, err
		}
		out = append(out, &report)
	}
	return out, nil
}

func batchLogKey(id string) string {
	return BatchLogsKey + ":" + id
}
