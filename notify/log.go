package notify

import (
	"context"
	"strings"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/logging"
)

// LogDispatcher 只把推送写入日志，用于开发环境与命令行。
type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher { return &LogDispatcher{} }

func (d *LogDispatcher) Name() string { return "log" }

func (d *LogDispatcher) Send(ctx context.Context, target string, msg core.Message) error {
	logging.Ctx(ctx).Info().
		Str("target", target).
		Str("title", msg.Title).
		Str("body", msg.Body).
		Str("items", strings.Join(msg.ItemIDs, ",")).
		Msg("push notification")
	return nil
}

var _ core.Dispatcher = (*LogDispatcher)(nil)
