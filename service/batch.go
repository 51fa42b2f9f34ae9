package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/notify"
	"github.com/rushteam/recflow/pkg/dsl"
	"github.com/rushteam/recflow/pkg/logging"
	"github.com/rushteam/recflow/pkg/metrics"
)

// BatchState 是批处理状态机的状态。
//
//	INIT → LOAD_USERS → ITERATE → DONE
//	  ↘        ↘
//	   FAILED（仅在 INIT / LOAD_USERS 阶段出错时进入）
type BatchState string

const (
	BatchStateInit      BatchState = "INIT"
	BatchStateLoadUsers BatchState = "LOAD_USERS"
	BatchStateIterate   BatchState = "ITERATE"
	BatchStateDone      BatchState = "DONE"
	BatchStateFailed    BatchState = "FAILED"
)

// BatchOptions 是批处理参数。
type BatchOptions struct {
	// MaxUsers 请求未指定时的用户上限，默认 core.DefaultMaxUsers
	MaxUsers int
	// Concurrency 同时处理的用户数，默认 1
	Concurrency int
	// Throttle 相邻两个用户开始处理的最小间隔，0 表示不限速
	Throttle time.Duration
	// Eligibility 用户准入 CEL 表达式，在"注册了推送地址"之上追加条件
	Eligibility string
}

// DefaultBatchOptions 返回默认批处理参数。
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		MaxUsers:    core.DefaultMaxUsers,
		Concurrency: 1,
		Throttle:    100 * time.Millisecond,
		Eligibility: `user.push_target != ""`,
	}
}

// BatchRequest 是批处理请求。
type BatchRequest struct {
	SendNotifications bool `json:"send_notifications"`
	// MaxUsers 0 表示使用 BatchOptions.MaxUsers
	MaxUsers  int    `json:"max_users"`
	Algorithm string `json:"algorithm"`
}

// BatchResult 是批处理的汇总结果。
type BatchResult struct {
	RunID        string           `json:"run_id"`
	State        BatchState       `json:"state"`
	TotalUsers   int              `json:"total_users"`
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	ErrorCount   int              `json:"error_count"`
	SampleErrors []core.UserError `json:"sample_errors"`
}

// BatchOrchestrator 对一批用户执行单用户生成。
//
// 每个用户相互隔离：一个用户失败（包括 panic）只记录错误，不影响其他用户。
// 只有枚举用户或拍快照失败会让整个批次失败，此时不写运行日志。
// 用户按令牌桶限速开始处理，推送速率不超过 1/Throttle。
type BatchOrchestrator struct {
	gen         *Generator
	opts        BatchOptions
	eligibility *dsl.Expr
}

func NewBatchOrchestrator(gen *Generator, opts BatchOptions) (*BatchOrchestrator, error) {
	if gen == nil {
		return nil, fmt.Errorf("batch orchestrator requires a generator")
	}
	def := DefaultBatchOptions()
	if opts.MaxUsers <= 0 {
		opts.MaxUsers = def.MaxUsers
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	if opts.Throttle < 0 {
		opts.Throttle = 0
	}
	if opts.Eligibility == "" {
		opts.Eligibility = def.Eligibility
	}
	expr, err := dsl.Compile(opts.Eligibility)
	if err != nil {
		return nil, fmt.Errorf("eligibility: %w", err)
	}
	return &BatchOrchestrator{gen: gen, opts: opts, eligibility: expr}, nil
}

// userOutcome 是单个用户的处理结果，按用户下标写入，不共享可变状态。
type userOutcome struct {
	userID string
	err    error
}

// Run 执行一次批处理，成功时写入且只写入一条 BatchRunReport。
func (b *BatchOrchestrator) Run(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	runID := uuid.NewString()
	ctx = logging.ContextWithRunID(ctx, runID)
	log := logging.Ctx(ctx)
	result := &BatchResult{RunID: runID, State: BatchStateInit, SampleErrors: make([]core.UserError, 0)}

	fail := func(err error) (*BatchResult, error) {
		log.Error().Err(err).Str("state", string(result.State)).Msg("batch failed")
		result.State = BatchStateFailed
		metrics.BatchRunsTotal.WithLabelValues("failed").Inc()
		return result, err
	}

	// INIT
	if req.MaxUsers < 0 {
		return fail(core.NewValidationError("max users must not be negative, got %d", req.MaxUsers))
	}
	maxUsers := req.MaxUsers
	if maxUsers == 0 {
		maxUsers = b.opts.MaxUsers
	}
	algorithm, err := b.gen.resolveAlgorithm(req.Algorithm)
	if err != nil {
		return fail(err)
	}
	if _, err := b.gen.algorithms.Source(algorithm); err != nil {
		return fail(err)
	}

	// LOAD_USERS
	result.State = BatchStateLoadUsers
	users, err := b.gen.deps.Users.ListUsers(ctx)
	if err != nil {
		return fail(core.NewUpstreamError(core.ModuleService, "user directory", err))
	}
	snap, err := b.gen.loadSnapshot(ctx)
	if err != nil {
		return fail(err)
	}
	eligible := b.selectUsers(ctx, users, maxUsers)

	// ITERATE
	result.State = BatchStateIterate
	log.Info().Int("users", len(eligible)).Str("algorithm", string(algorithm)).Msg("batch started")
	outcomes := b.iterate(ctx, eligible, snap, algorithm, req.SendNotifications)

	// DONE
	report := &core.BatchRunReport{
		ID:                runID,
		Timestamp:         snap.now,
		TotalUsers:        len(outcomes),
		Algorithm:         algorithm,
		NotificationsSent: req.SendNotifications,
		Errors:            make([]core.UserError, 0),
	}
	for _, o := range outcomes {
		if o.err == nil {
			report.SuccessCount++
			continue
		}
		report.FailureCount++
		if len(report.Errors) < core.MaxDetailedErrors {
			report.Errors = append(report.Errors, core.UserError{UserID: o.userID, Error: o.err.Error()})
		} else {
			report.MoreErrors++
		}
	}
	metrics.BatchUsers.WithLabelValues("success").Add(float64(report.SuccessCount))
	metrics.BatchUsers.WithLabelValues("failure").Add(float64(report.FailureCount))

	result.State = BatchStateDone
	result.TotalUsers = report.TotalUsers
	result.SuccessCount = report.SuccessCount
	result.FailureCount = report.FailureCount
	result.ErrorCount = report.ErrorCount()
	n := min(len(report.Errors), core.SampleErrors)
	result.SampleErrors = append(result.SampleErrors, report.Errors[:n]...)

	if err := b.gen.deps.Store.AppendBatchReport(ctx, report); err != nil {
		metrics.BatchRunsTotal.WithLabelValues("unreported").Inc()
		log.Error().Err(err).Msg("persist batch report failed")
		return result, fmt.Errorf("persist batch report: %w", err)
	}
	metrics.BatchRunsTotal.WithLabelValues("done").Inc()
	log.Info().
		Int("total", result.TotalUsers).
		Int("success", result.SuccessCount).
		Int("failure", result.FailureCount).
		Msg("batch finished")
	return result, nil
}

// selectUsers 选出有推送地址且满足准入表达式的用户，最多 maxUsers 个，保持目录顺序。
func (b *BatchOrchestrator) selectUsers(ctx context.Context, users []core.User, maxUsers int) []core.User {
	out := make([]core.User, 0, min(len(users), maxUsers))
	for _, u := range users {
		if len(out) >= maxUsers {
			break
		}
		// 准入表达式只能进一步收紧，没有推送地址的用户总是不参与
		if !u.HasPushTarget() {
			continue
		}
		ok, err := b.eligibility.MatchUser(u)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("user_id", u.ID).Msg("eligibility check failed, skipping user")
			continue
		}
		if ok {
			out = append(out, u)
		}
	}
	return out
}

func (b *BatchOrchestrator) iterate(
	ctx context.Context,
	users []core.User,
	snap *snapshot,
	algorithm core.Algorithm,
	sendNotifications bool,
) []userOutcome {
	outcomes := make([]userOutcome, len(users))
	limiter := b.newLimiter()

	dispatcher := b.gen.deps.Dispatcher
	if dispatcher != nil && b.opts.Throttle > 0 {
		// 用户完成的时间不均匀，推送再单独限速一次
		dispatcher = notify.NewThrottled(dispatcher, b.newLimiter())
	}

	var g errgroup.Group
	g.SetLimit(b.opts.Concurrency)
	for i := range users {
		u := users[i]
		outcomes[i].userID = u.ID
		if err := limiter.Wait(ctx); err != nil {
			outcomes[i].err = err
			continue
		}
		g.Go(func() error {
			outcomes[i].err = b.runOne(ctx, &u, snap, algorithm, sendNotifications, dispatcher)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (b *BatchOrchestrator) newLimiter() *rate.Limiter {
	if b.opts.Throttle <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(b.opts.Throttle), 1)
}

func (b *BatchOrchestrator) runOne(
	ctx context.Context,
	user *core.User,
	snap *snapshot,
	algorithm core.Algorithm,
	sendNotifications bool,
	dispatcher core.Dispatcher,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewInternalError(core.ModuleService, "panic: %v", r)
		}
	}()
	if _, err = b.gen.generate(ctx, user, snap, core.DefaultLimit, algorithm, sendNotifications, dispatcher); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("user generation failed")
	}
	return err
}
