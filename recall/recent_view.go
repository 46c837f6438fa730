package recall

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pkg/utils"
)

// RecentViewRecall 是最近浏览召回源（"看了又看"）。
//
// 算法：取最近 N 次 view 行为（默认 10，最新优先），对每个浏览商品，
// 按存储顺序（即相似度降序）走查它的邻居列表：
//   - 已购邻居跳过，继续往后走
//   - 已收集过的邻居（重复）时该来源提前终止
//   - 收集到第一个合格邻居后转向下一个来源商品
//
// 结果达到 Limit 即停止。本召回源不打分（Score 恒为 0），
// 列表顺序即来源商品的浏览新鲜度顺序。
type RecentViewRecall struct {
	Data core.DataStore

	// ViewEvents 是消费的最近 view 行为数，<= 0 时取 10
	ViewEvents int

	// Limit 是收集的候选上限，<= 0 时取 20
	Limit int
}

func (r *RecentViewRecall) Name() string { return "recall.recent_view" }

func (r *RecentViewRecall) viewEvents() int {
	if r.ViewEvents > 0 {
		return r.ViewEvents
	}
	return 10
}

func (r *RecentViewRecall) limit() int {
	if r.Limit > 0 {
		return r.Limit
	}
	return 20
}

func (r *RecentViewRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Data == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}

	events, err := r.Data.ReadUserActionInteractions(ctx, rctx.UserID, []core.ActionType{core.ActionView}, r.viewEvents())
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	purchased, err := purchasedSet(ctx, r.Data, rctx)
	if err != nil {
		return nil, err
	}

	// 来源商品去重，保持浏览新鲜度顺序
	sources := make([]string, 0, len(events))
	sourceSet := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if _, ok := sourceSet[ev.ProductID]; ok {
			continue
		}
		sourceSet[ev.ProductID] = struct{}{}
		sources = append(sources, ev.ProductID)
	}

	rows, err := r.Data.ReadSimilarityRows(ctx, sources)
	if err != nil {
		return nil, err
	}

	limit := r.limit()
	collected := make(map[string]struct{})
	out := make([]*core.Item, 0, limit)

	for _, src := range sources {
		if len(out) >= limit {
			break
		}
		row, ok := rows[src]
		if !ok {
			continue
		}
		for _, nbr := range row.Neighbors {
			if _, done := collected[nbr.ProductID]; done {
				// 碰到重复，该来源提前终止
				break
			}
			if _, bought := purchased[nbr.ProductID]; bought {
				continue
			}
			collected[nbr.ProductID] = struct{}{}
			it := core.NewItem(nbr.ProductID)
			it.PutLabel("recall_source", utils.Label{Value: "recent_view", Source: "recall"})
			it.PutLabel("seed_product", utils.Label{Value: src, Source: "recall"})
			out = append(out, it)
			break // 每个来源只取第一个合格邻居
		}
	}

	return out, nil
}
