package recall

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pkg/utils"
)

// BoughtTogetherRecall 是订单共购召回源（"买了又买"）。
//
// 给定商品，扫描包含它的历史订单，按购买件数加权统计共同出现的
// 其他商品，按总件数降序排序。直接消费订单日志，不依赖相似度索引，
// 因此对刚上架、还没进入索引的商品也能工作。
//
// 商品 ID 从 rctx.Params["seed_product"] 读取（string）。
type BoughtTogetherRecall struct {
	Data core.DataStore
}

func (r *BoughtTogetherRecall) Name() string { return "recall.bought_together" }

// CoPurchased 统计与 productID 共同购买的商品件数。
func (r *BoughtTogetherRecall) CoPurchased(ctx context.Context, productID string) (map[string]float64, error) {
	orders, err := r.Data.ReadOrdersWithProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]float64)
	for _, o := range orders {
		// 索引可能指向已不含该商品的订单，跳过
		contains := false
		for _, it := range o.Items {
			if it.ProductID == productID {
				contains = true
				break
			}
		}
		if !contains {
			continue
		}
		for _, it := range o.Items {
			if it.ProductID == productID {
				continue
			}
			qty := it.Qty
			if qty <= 0 {
				qty = 1
			}
			counts[it.ProductID] += float64(qty)
		}
	}
	return counts, nil
}

func (r *BoughtTogetherRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Data == nil || rctx == nil || rctx.Params == nil {
		return nil, nil
	}
	seed, ok := rctx.Params["seed_product"].(string)
	if !ok || seed == "" {
		return nil, nil
	}

	counts, err := r.CoPurchased(ctx, seed)
	if err != nil {
		return nil, err
	}

	items := sortScores(counts)
	for _, it := range items {
		it.PutLabel("recall_source", utils.Label{Value: "bought_together", Source: "recall"})
		it.PutLabel("seed_product", utils.Label{Value: seed, Source: "recall"})
	}
	return items, nil
}
