package notify

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/rushteam/recflow/core"
)

// Throttled 用令牌桶限制推送速率。等待被 ctx 取消时返回 DispatchError。
type Throttled struct {
	next    core.Dispatcher
	limiter *rate.Limiter
}

func NewThrottled(next core.Dispatcher, limiter *rate.Limiter) *Throttled {
	return &Throttled{next: next, limiter: limiter}
}

func (d *Throttled) Name() string { return d.next.Name() }

func (d *Throttled) Send(ctx context.Context, target string, msg core.Message) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return core.NewDispatchError(target, err)
		}
	}
	return d.next.Send(ctx, target, msg)
}

var _ core.Dispatcher = (*Throttled)(nil)
