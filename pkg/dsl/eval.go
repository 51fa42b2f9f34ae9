// Package dsl 使用 CEL (Common Expression Language) 实现条件表达式。
//
// 两类表达式：
//   - 用户表达式：批处理的用户准入条件，例如 `user.push_target != ""`
//   - 内容表达式：后处理中的内容过滤条件，例如 `item.category == "tech" && item.score > 10`
//
// 表达式编译一次，可被多个 goroutine 并发求值。
package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/recflow/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("user", cel.DynType),
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Expr 是编译后的布尔表达式。
type Expr struct {
	source string
	prg    cel.Program
}

// Compile 编译表达式；空表达式恒为 true。
func Compile(expr string) (*Expr, error) {
	if expr == "" {
		return &Expr{}, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Expr{source: expr, prg: prg}, nil
}

// MustCompile 与 Compile 相同，失败时 panic；用于常量表达式。
func MustCompile(expr string) *Expr {
	e, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return e
}

// String 返回表达式源码。
func (e *Expr) String() string { return e.source }

// Eval 以 vars 为输入求值。
func (e *Expr) Eval(vars map[string]any) (bool, error) {
	if e == nil || e.prg == nil {
		return true, nil
	}
	out, _, err := e.prg.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", e.source, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: expression must return boolean, got %T", e.source, out.Value())
	}
	return result, nil
}

// MatchUser 对用户求值，变量为 user。
func (e *Expr) MatchUser(u core.User) (bool, error) {
	return e.Eval(UserVars(u))
}

// MatchItem 对内容求值，变量为 item / label / rctx。
func (e *Expr) MatchItem(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	return e.Eval(ItemVars(item, rctx))
}

// UserVars 构建用户表达式的输入。
func UserVars(u core.User) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":          u.ID,
			"name":        u.Name,
			"push_target": u.PushTarget,
		},
		"item":  map[string]any{},
		"label": map[string]any{},
		"rctx":  map[string]any{},
	}
}

// ItemVars 构建内容表达式的输入。
//
// label.recall_source 直接返回 Label 的 value；访问不存在的 key 会报错，
// 需要时先用 `"key" in label` 判断。item.sources 是产生该内容的打分源列表。
func ItemVars(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any)
	reasons := make([]any, 0)
	sources := make([]any, 0)
	it := map[string]any{}
	if item != nil {
		for k, v := range item.Labels {
			labels[k] = v.Value
		}
		for _, r := range item.Reasons {
			reasons = append(reasons, r)
		}
		for _, src := range item.Labels["recall_source"].Parts() {
			sources = append(sources, src)
		}
		meta := item.Meta
		if meta == nil {
			meta = map[string]any{}
		}
		it = map[string]any{
			"id":       item.ID,
			"title":    item.Title,
			"score":    item.Score,
			"category": item.Category(),
			"reasons":  reasons,
			"sources":  sources,
			"meta":     meta,
		}
	}
	rc := map[string]any{}
	if rctx != nil {
		rc = map[string]any{
			"user_id":   rctx.UserID,
			"algorithm": string(rctx.Algorithm),
			"limit":     int64(rctx.Limit),
		}
	}
	return map[string]any{
		"user":  map[string]any{},
		"item":  it,
		"label": labels,
		"rctx":  rc,
	}
}
