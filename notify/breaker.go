package notify

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/logging"
	"github.com/rushteam/recflow/pkg/metrics"
)

// BreakerConfig 是熔断参数。
type BreakerConfig struct {
	// MaxRequests 半开状态允许的并发请求数
	MaxRequests uint32 `yaml:"max_requests" json:"max_requests"`
	// Interval 闭合状态下计数清零周期
	Interval time.Duration `yaml:"interval" json:"interval"`
	// Timeout 打开状态持续多久后进入半开
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// MinRequests 统计失败率所需的最少请求数
	MinRequests uint32 `yaml:"min_requests" json:"min_requests"`
	// FailureRatio 失败率达到该值时打开
	FailureRatio float64 `yaml:"failure_ratio" json:"failure_ratio"`
}

// DefaultBreakerConfig 返回默认熔断参数。
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerDispatcher 用熔断器包装推送协作方。
// 推送网关持续失败时直接拒绝后续推送，避免批处理中每个用户都等待超时。
type BreakerDispatcher struct {
	next core.Dispatcher
	cb   *gobreaker.CircuitBreaker[struct{}]
	name string
}

func NewBreakerDispatcher(next core.Dispatcher, cfg BreakerConfig) *BreakerDispatcher {
	def := DefaultBreakerConfig()
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = def.MinRequests
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = def.FailureRatio
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	name := "notify-" + next.Name()
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	return &BreakerDispatcher{next: next, cb: cb, name: name}
}

func (d *BreakerDispatcher) Name() string { return d.next.Name() }

// State 返回熔断器当前状态。
func (d *BreakerDispatcher) State() gobreaker.State { return d.cb.State() }

func (d *BreakerDispatcher) Send(ctx context.Context, target string, msg core.Message) error {
	_, err := d.cb.Execute(func() (struct{}, error) {
		return struct{}{}, d.next.Send(ctx, target, msg)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return core.NewDispatchError(target, err)
	}
	if core.IsDispatchFailed(err) {
		return err
	}
	return core.NewDispatchError(target, err)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

var _ core.Dispatcher = (*BreakerDispatcher)(nil)
