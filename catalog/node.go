package catalog

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pipeline"
	"github.com/rushteam/mallrec/pkg/utils"
)

// HydrateNode 是目录水合 Node：为链路产出的每个商品挂载展示属性。
//
// 写入位置：
//   - Meta["product"]：core.ProductSummary
//   - Labels["category"]：类目（供 Diversity / RuleFilter 消费）
type HydrateNode struct {
	Hydrator *Hydrator
}

func (n *HydrateNode) Name() string {
	return "postprocess.catalog"
}

func (n *HydrateNode) Kind() pipeline.Kind {
	return pipeline.KindPostProcess
}

func (n *HydrateNode) Process(
	ctx context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Hydrator == nil || len(items) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		ids = append(ids, it.ID)
	}

	products, err := n.Hydrator.Hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, it := range items {
		if it == nil {
			continue
		}
		p, ok := products[it.ID]
		if !ok {
			continue
		}
		if it.Meta == nil {
			it.Meta = make(map[string]any)
		}
		it.Meta["product"] = p
		if p.Category != "" {
			it.PutLabel("category", utils.Label{Value: p.Category, Source: "catalog"})
		}
	}
	return items, nil
}
