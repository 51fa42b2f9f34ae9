// Package service 是推荐引擎的应用层：单用户生成、批处理编排、历史查询。
//
// 单用户生成的数据流：
//
//	偏好抽取 → 所选算法打分（hybrid 时三路并发）→ 兜底（结果为空时）
//	        → 后处理（去已看 + 截断）→ 覆盖写入推荐结果 → 可选推送
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/feature"
	"github.com/rushteam/recflow/filter"
	"github.com/rushteam/recflow/notify"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/logging"
	"github.com/rushteam/recflow/pkg/metrics"
	"github.com/rushteam/recflow/recall"
	"github.com/rushteam/recflow/rerank"
)

// RecommendationStore 是推荐结果与批处理日志的持久化接口，store.RecommendationRepo 实现它。
type RecommendationStore interface {
	Save(ctx context.Context, set *core.RecommendationSet) error
	Get(ctx context.Context, userID string) (*core.RecommendationSet, error)
	List(ctx context.Context, limit int) ([]*core.RecommendationSet, error)
	AppendBatchReport(ctx context.Context, report *core.BatchRunReport) error
	RecentBatchReports(ctx context.Context, n int) ([]*core.BatchRunReport, error)
}

// Deps 是生成所需的外部协作方。
type Deps struct {
	Users   core.UserDirectory
	Events  core.EventSource
	Catalog core.CatalogSource
	Store   RecommendationStore

	// Lookup 用于偏好抽取时解析内容类别；为空时使用内容快照
	Lookup core.ContentLookup

	// Dispatcher 推送协作方；为空时不推送
	Dispatcher core.Dispatcher
}

// GenerateRequest 是单用户生成请求。
type GenerateRequest struct {
	UserID string `json:"user_id"`
	// Limit 结果数量，0 表示默认值 5，上限 50
	Limit            int    `json:"limit"`
	SendNotification bool   `json:"send_notification"`
	Algorithm        string `json:"algorithm"`
}

// GenerateResponse 是单用户生成结果。
type GenerateResponse struct {
	UserID               string            `json:"user_id"`
	Recommendations      []core.ScoredItem `json:"recommendations"`
	Algorithm            core.Algorithm    `json:"algorithm"`
	TotalRecommendations int               `json:"total_recommendations"`
	NotificationSent     bool              `json:"notification_sent"`
	UsedFallback         bool              `json:"used_fallback"`
}

// Generator 执行单用户推荐生成。并发安全，可被批处理共享。
type Generator struct {
	deps             Deps
	extractor        *feature.PreferenceExtractor
	algorithms       *AlgorithmRegistry
	fallback         recall.Source
	postProcess      *pipeline.Pipeline
	finalize         *pipeline.Pipeline
	defaultAlgorithm core.Algorithm
	clock            func() time.Time
}

// Option 配置 Generator。
type Option func(*Generator)

// WithAlgorithms 指定算法注册表。
func WithAlgorithms(r *AlgorithmRegistry) Option {
	return func(g *Generator) {
		if r != nil {
			g.algorithms = r
		}
	}
}

// WithFallback 指定兜底打分源。
func WithFallback(s recall.Source) Option {
	return func(g *Generator) {
		if s != nil {
			g.fallback = s
		}
	}
}

// WithPostProcess 指定后处理链。无论链里配置了什么，结果最后都会再经过
// FinalizePipeline，保证不含已看内容、分数不增、数量不超过 limit。
func WithPostProcess(p *pipeline.Pipeline) Option {
	return func(g *Generator) {
		if p != nil {
			g.postProcess = p
		}
	}
}

// WithDefaultAlgorithm 指定请求未选择算法时使用的算法。
func WithDefaultAlgorithm(a core.Algorithm) Option {
	return func(g *Generator) {
		if a != "" {
			g.defaultAlgorithm = a
		}
	}
}

// WithClock 注入时钟，热门窗口与过期时间都以它为准。
func WithClock(clock func() time.Time) Option {
	return func(g *Generator) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// WithExtractor 指定偏好抽取器。
func WithExtractor(e *feature.PreferenceExtractor) Option {
	return func(g *Generator) {
		if e != nil {
			g.extractor = e
		}
	}
}

// DefaultPostProcess 返回默认后处理链：去已看，再截断到请求的 limit。
func DefaultPostProcess() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name: "postprocess",
		Nodes: []pipeline.Node{
			&filter.FilterNode{NodeName: "filter.viewed", Filters: []filter.Filter{filter.NewViewedFilter()}},
			&rerank.TopNNode{},
		},
	}
}

// FinalizePipeline 是固定在后处理链之后的收尾：去已看，按分数稳定排序，截断到请求的 limit。
func FinalizePipeline() *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Name: "finalize",
		Nodes: []pipeline.Node{
			&filter.FilterNode{NodeName: "filter.viewed", Filters: []filter.Filter{filter.NewViewedFilter()}},
			rerank.ScoreOrder{},
			&rerank.TopNNode{},
		},
	}
}

func NewGenerator(deps Deps, opts ...Option) (*Generator, error) {
	if deps.Users == nil || deps.Events == nil || deps.Catalog == nil || deps.Store == nil {
		return nil, fmt.Errorf("generator requires users, events, catalog and store")
	}
	g := &Generator{
		deps:             deps,
		extractor:        feature.NewPreferenceExtractor(),
		algorithms:       DefaultAlgorithmRegistry(),
		fallback:         recall.NewFallbackRecall(nil),
		postProcess:      DefaultPostProcess(),
		finalize:         FinalizePipeline(),
		defaultAlgorithm: core.AlgorithmHybrid,
		clock:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// snapshot 是一次生成（或一次批处理）开始时拍下的只读数据。
type snapshot struct {
	catalog *core.Catalog
	events  []core.Event
	now     time.Time
}

func (g *Generator) loadSnapshot(ctx context.Context) (*snapshot, error) {
	catalog, err := g.deps.Catalog.Catalog(ctx)
	if err != nil {
		return nil, core.NewUpstreamError(core.ModuleService, "catalog", err)
	}
	events, err := g.deps.Events.Events(ctx)
	if err != nil {
		return nil, core.NewUpstreamError(core.ModuleService, "event store", err)
	}
	return &snapshot{catalog: catalog, events: events, now: g.clock()}, nil
}

// resolveLimit 校验 limit：0 取默认值，负数或超过上限为 INVALID_INPUT。
func resolveLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return core.DefaultLimit, nil
	case limit < 0 || limit > core.MaxLimit:
		return 0, core.NewValidationError("limit must be between 1 and %d, got %d", core.MaxLimit, limit)
	default:
		return limit, nil
	}
}

func (g *Generator) resolveAlgorithm(s string) (core.Algorithm, error) {
	if strings.TrimSpace(s) == "" {
		return g.defaultAlgorithm, nil
	}
	return core.ParseAlgorithm(s)
}

// Generate 为单个用户生成并保存推荐结果。
// 未知用户返回 NOT_FOUND；参数错误返回 INVALID_INPUT；推送失败不影响结果。
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, core.NewValidationError("user id is required")
	}
	limit, err := resolveLimit(req.Limit)
	if err != nil {
		return nil, err
	}
	algorithm, err := g.resolveAlgorithm(req.Algorithm)
	if err != nil {
		return nil, err
	}

	user, err := g.deps.Users.GetUser(ctx, userID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, core.NewNotFoundError(core.ModuleService, "user %s not found", userID)
		}
		return nil, core.NewUpstreamError(core.ModuleService, "user directory", err)
	}
	if user == nil {
		return nil, core.NewNotFoundError(core.ModuleService, "user %s not found", userID)
	}

	snap, err := g.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return g.generate(ctx, user, snap, limit, algorithm, req.SendNotification, g.deps.Dispatcher)
}

// generate 是单用户生成的主体，批处理对每个用户复用同一份快照调用它。
func (g *Generator) generate(
	ctx context.Context,
	user *core.User,
	snap *snapshot,
	limit int,
	algorithm core.Algorithm,
	sendNotification bool,
	dispatcher core.Dispatcher,
) (*GenerateResponse, error) {
	started := time.Now()
	resp, err := g.score(ctx, user, snap, limit, algorithm)
	if err != nil {
		metrics.ObserveGeneration(string(algorithm), "failure", started)
		return nil, err
	}

	set := core.NewRecommendationSet(user.ID, algorithm, resp.Recommendations, snap.now)
	if err := g.deps.Store.Save(ctx, set); err != nil {
		metrics.ObserveGeneration(string(algorithm), "failure", started)
		return nil, fmt.Errorf("save recommendations: %w", err)
	}

	if sendNotification && user.HasPushTarget() && len(resp.Recommendations) > 0 && dispatcher != nil {
		resp.NotificationSent = g.dispatch(ctx, dispatcher, user, resp.Recommendations)
	}

	status := "success"
	if resp.UsedFallback {
		status = "fallback"
	}
	metrics.ObserveGeneration(string(algorithm), status, started)
	logging.Ctx(ctx).Debug().
		Str("user_id", user.ID).
		Str("algorithm", string(algorithm)).
		Int("total", resp.TotalRecommendations).
		Bool("fallback", resp.UsedFallback).
		Msg("recommendations generated")
	return resp, nil
}

func (g *Generator) score(
	ctx context.Context,
	user *core.User,
	snap *snapshot,
	limit int,
	algorithm core.Algorithm,
) (*GenerateResponse, error) {
	lookup := g.deps.Lookup
	if lookup == nil {
		lookup = snap.catalog
	}
	profile, err := g.extractor.Extract(ctx, user.ID, core.EventsOf(snap.events, user.ID), lookup)
	if err != nil {
		return nil, fmt.Errorf("extract preferences: %w", err)
	}

	rctx := &core.RecommendContext{
		UserID:    user.ID,
		User:      user,
		Profile:   profile,
		Catalog:   snap.catalog,
		Events:    snap.events,
		Now:       snap.now,
		Limit:     limit,
		Algorithm: algorithm,
	}

	source, err := g.algorithms.Source(algorithm)
	if err != nil {
		return nil, err
	}
	items, err := source.Recall(ctx, rctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source.Name(), err)
	}

	usedFallback := false
	if len(items) == 0 {
		usedFallback = true
		items, err = g.fallback.Recall(ctx, rctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", g.fallback.Name(), err)
		}
	}

	items, err = g.postProcess.Run(ctx, rctx, items)
	if err != nil {
		return nil, fmt.Errorf("post process: %w", err)
	}
	items, err = g.finalize.Run(ctx, rctx, items)
	if err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}
	enrichTitles(items, snap.catalog)

	scored := core.ToScoredItems(items)
	return &GenerateResponse{
		UserID:               user.ID,
		Recommendations:      scored,
		Algorithm:            algorithm,
		TotalRecommendations: len(scored),
		UsedFallback:         usedFallback,
	}, nil
}

// dispatch 发送一条推送；失败只记录日志与指标，返回是否发送成功。
func (g *Generator) dispatch(ctx context.Context, d core.Dispatcher, user *core.User, items []core.ScoredItem) bool {
	msg, ok := notify.BuildMessage(items)
	if !ok {
		return false
	}
	if err := d.Send(ctx, user.PushTarget, msg); err != nil {
		if !core.IsDispatchFailed(err) {
			err = core.NewDispatchError(user.PushTarget, err)
		}
		metrics.NotificationsTotal.WithLabelValues(d.Name(), "failed").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID).Str("dispatcher", d.Name()).Msg("notification dispatch failed")
		return false
	}
	metrics.NotificationsTotal.WithLabelValues(d.Name(), "sent").Inc()
	return true
}

// enrichTitles 为缺少标题的内容补上内容快照中的标题。
func enrichTitles(items []*core.Item, catalog *core.Catalog) {
	for _, it := range items {
		if it == nil || it.Title != "" {
			continue
		}
		if ci, ok := catalog.Get(it.ID); ok {
			it.Title = ci.Title
		}
	}
}
