package recall

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pkg/utils"
)

// PersonalRecall 是个性化召回源（i2i，Item-based CF 的在线打分侧）。
//
// 算法流程：
//  1. 取用户最近 M 条互动事件（默认 50，最新优先）
//  2. exclude = 已购集合 ∪ 这 M 条事件涉及的商品
//  3. 批量读取事件商品的相似度行
//  4. 对每条事件 (item, value) 与 item 的每个邻居 (nbr, sim)：
//     nbr ∉ exclude 时 score[nbr] += sim * value
//  5. 分数降序排序，同分按商品 ID 升序（确定性）
//
// 事件 Value 为 0 时按行为权重推导。
// 用户无互动或无候选时返回空列表，不是错误。
type PersonalRecall struct {
	Data core.DataStore

	// Weights 用于推导 Value 为 0 的事件权重，空时取默认权重
	Weights core.ActionWeights

	// RecentEvents 是消费的最近事件数，<= 0 时取 50
	RecentEvents int
}

func (r *PersonalRecall) Name() string { return "recall.personal" }

func (r *PersonalRecall) weights() core.ActionWeights {
	if r.Weights != nil {
		return r.Weights
	}
	return core.DefaultActionWeights()
}

func (r *PersonalRecall) recentEvents() int {
	if r.RecentEvents > 0 {
		return r.RecentEvents
	}
	return 50
}

func (r *PersonalRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Data == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}

	events, err := r.Data.ReadUserInteractions(ctx, rctx.UserID, 0, r.recentEvents())
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

	// exclude = 已购 ∪ 最近互动（只看 M 条窗口，不看全量历史）
	exclude := make(map[string]struct{}, len(purchased)+len(events))
	for pid := range purchased {
		exclude[pid] = struct{}{}
	}
	seeds := make([]string, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		exclude[ev.ProductID] = struct{}{}
		if _, ok := seen[ev.ProductID]; !ok {
			seen[ev.ProductID] = struct{}{}
			seeds = append(seeds, ev.ProductID)
		}
	}

	rows, err := r.Data.ReadSimilarityRows(ctx, seeds)
	if err != nil {
		return nil, err
	}

	weights := r.weights()
	scores := make(map[string]float64)
	for _, ev := range events {
		row, ok := rows[ev.ProductID]
		if !ok {
			continue
		}
		value := ev.Value
		if value == 0 {
			value = weights.WeightOf(ev.Action)
		}
		for _, nbr := range row.Neighbors {
			if _, excluded := exclude[nbr.ProductID]; excluded {
				continue
			}
			scores[nbr.ProductID] += nbr.Sim * value
		}
	}

	items := sortScores(scores)
	for _, it := range items {
		it.PutLabel("recall_source", utils.Label{Value: "personal", Source: "recall"})
	}
	return items, nil
}
