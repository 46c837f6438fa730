package filter

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pkg/dsl"
)

// RuleFilter 是基于 CEL 表达式的规则过滤器。
// Expr 命中（求值为 true）的商品会被过滤掉。
//
// 示例：
//   - label.category == "adult"        过滤指定类目
//   - item.score < 0.1                 过滤低分候选
//   - rctx.scene == "mail" && item.score < 1.0
type RuleFilter struct {
	// Expr 是 CEL 过滤表达式，空表达式不过滤任何商品
	Expr string
}

func (f *RuleFilter) Name() string {
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if f.Expr == "" {
		return false, nil
	}
	ev := dsl.NewEval(item, rctx)
	hit, err := ev.Evaluate(f.Expr)
	if err != nil {
		// 表达式错误时保留商品，不把规则故障放大为空结果
		return false, err
	}
	return hit, nil
}
