package rerank

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pipeline"
)

// Diversity 是一个简单的多样性 ReRank：限制每个类目最多出现 MaxPerKey 个商品。
// 类目来源优先级：
// - label["category"].Value
// - meta["category"] (string)
//
// 没有类目信息的商品不受限制。
type Diversity struct {
	LabelKey  string // 默认 "category"
	MaxPerKey int    // 默认 1
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	key := n.LabelKey
	if key == "" {
		key = "category"
	}
	maxPerKey := n.MaxPerKey
	if maxPerKey <= 0 {
		maxPerKey = 1
	}

	seen := make(map[string]int, 32)
	out := make([]*core.Item, 0, len(items))

	for _, it := range items {
		if it == nil {
			continue
		}

		cate := ""
		if it.Labels != nil {
			if lbl, ok := it.Labels[key]; ok {
				cate = lbl.Value
			}
		}
		if cate == "" && it.Meta != nil {
			if v, ok := it.Meta[key]; ok {
				if s, ok := v.(string); ok {
					cate = s
				}
			}
		}

		if cate == "" {
			out = append(out, it)
			continue
		}
		if seen[cate] >= maxPerKey {
			continue
		}
		seen[cate]++
		out = append(out, it)
	}

	return out, nil
}
