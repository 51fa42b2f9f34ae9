package filter

import (
	"context"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/pkg/dsl"
)

// ExprFilter 按 CEL 表达式过滤：表达式为 true 的内容被移除。
//
//	item.category == "ads" || item.score < 1.0
type ExprFilter struct {
	expr *dsl.Expr
}

// NewExprFilter 编译表达式并创建过滤器。
func NewExprFilter(expr string) (*ExprFilter, error) {
	e, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{expr: e}, nil
}

func (f *ExprFilter) Name() string {
	return "filter.expr"
}

func (f *ExprFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.expr.String() == "" {
		return false, nil
	}
	return f.expr.MatchItem(item, rctx)
}
