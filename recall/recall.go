// Package recall 实现候选商品召回。
//
// 五个召回源：
//   - personal：个性化打分（最近互动 × 相似度索引）
//   - wishlist：心愿单种子打分
//   - recent_view：最近浏览的邻居走查（不打分）
//   - similar_users：同好频次统计
//   - bought_together：订单共购统计（不依赖相似度索引）
//
// 每个召回源都实现 Source 接口，可单独调用，也可经 Fanout 并发编排。
package recall

import (
	"context"
	"sort"

	"github.com/rushteam/mallrec/core"
)

// Source 是召回源接口。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// purchasedSet 返回用户的已购商品集合。
// 优先使用 rctx.Params["purchased_set"] 中预取的集合（bundle 场景避免三次读订单），
// 否则从订单日志推导。
func purchasedSet(ctx context.Context, data core.DataStore, rctx *core.RecommendContext) (map[string]struct{}, error) {
	if rctx != nil && rctx.Params != nil {
		if v, ok := rctx.Params["purchased_set"]; ok {
			if set, ok := v.(map[string]struct{}); ok {
				return set, nil
			}
		}
	}
	if rctx == nil || rctx.UserID == "" {
		return map[string]struct{}{}, nil
	}

	orders, err := data.ReadUserOrders(ctx, rctx.UserID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, o := range orders {
		for _, it := range o.Items {
			set[it.ProductID] = struct{}{}
		}
	}
	return set, nil
}

// sortScores 将 score map 转为确定性排序的列表：
// 分数降序，同分按商品 ID 升序。
func sortScores(scores map[string]float64) []*core.Item {
	items := make([]*core.Item, 0, len(scores))
	for pid, score := range scores {
		it := core.NewItem(pid)
		it.Score = score
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	return items
}
