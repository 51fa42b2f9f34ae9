package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/logging"
)

// Pipeline 按顺序执行 Node，前一个 Node 的输出是后一个的输入。
// 单用户生成的后处理（去已看 → 截断）就是一条 Pipeline。
type Pipeline struct {
	// Name 仅用于日志
	Name  string
	Nodes []Node
}

// Run 依次执行各 Node；任一 Node 出错即停止，错误带上 Node 名称。
// nil Pipeline 原样返回 items。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if p == nil {
		return items, nil
	}
	log := logging.Ctx(ctx)
	cur := items
	for _, node := range p.Nodes {
		if node == nil {
			continue
		}
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		log.Trace().
			Str("pipeline", p.Name).
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Msg("node processed")
		cur = next
	}
	return cur, nil
}

// NodeNames 返回各 Node 的名称，便于日志与测试断言。
func (p *Pipeline) NodeNames() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		if n != nil {
			names = append(names, n.Name())
		}
	}
	return names
}
