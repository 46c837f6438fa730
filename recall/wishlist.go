package recall

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pkg/utils"
)

// WishlistRecall 是心愿单种子召回源。
//
// 与 personal 的区别：种子来自心愿单而非最近互动，每个种子贡献
// 完整的邻居相似度（不乘互动权重）。回答"喜欢你心愿单的人还看了什么"。
//
// 排除规则：心愿单商品本身与已购商品都不进入结果，
// 即使两个心愿单商品互为邻居。
type WishlistRecall struct {
	Data core.DataStore
}

func (r *WishlistRecall) Name() string { return "recall.wishlist" }

// seeds 返回心愿单种子。
// rctx.Params["wishlist_seeds"] 可覆盖存储中的心愿单（请求方直接携带）。
func (r *WishlistRecall) seeds(ctx context.Context, rctx *core.RecommendContext) ([]string, error) {
	if rctx.Params != nil {
		if v, ok := rctx.Params["wishlist_seeds"]; ok {
			if ids, ok := v.([]string); ok {
				return ids, nil
			}
		}
	}
	if rctx.UserID == "" {
		return nil, nil
	}
	return r.Data.ReadWishlist(ctx, rctx.UserID)
}

func (r *WishlistRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Data == nil || rctx == nil {
		return nil, nil
	}

	seeds, err := r.seeds(ctx, rctx)
	if err != nil {
		return nil, err
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	purchased, err := purchasedSet(ctx, r.Data, rctx)
	if err != nil {
		return nil, err
	}

	exclude := make(map[string]struct{}, len(purchased)+len(seeds))
	for pid := range purchased {
		exclude[pid] = struct{}{}
	}
	for _, pid := range seeds {
		exclude[pid] = struct{}{}
	}

	rows, err := r.Data.ReadSimilarityRows(ctx, seeds)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64)
	for _, pid := range seeds {
		row, ok := rows[pid]
		if !ok {
			continue
		}
		for _, nbr := range row.Neighbors {
			if _, excluded := exclude[nbr.ProductID]; excluded {
				continue
			}
			scores[nbr.ProductID] += nbr.Sim
		}
	}

	items := sortScores(scores)
	for _, it := range items {
		it.PutLabel("recall_source", utils.Label{Value: "wishlist", Source: "recall"})
	}
	return items, nil
}
