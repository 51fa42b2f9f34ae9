// Command recflow 为用户生成个性化推荐、执行批处理并查询推荐历史。
//
//	recflow generate --snapshot data.json --user u1 --limit 5 --notify
//	recflow batch --snapshot data.json --max-users 100 --notify
//	recflow history --snapshot data.json --user u1
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
