package recall

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pkg/utils"
)

// SimilarUsersRecall 是同好召回源（u2u2i 的轻量版）。
//
// 算法：
//  1. 取用户最近 N 条 like/purchase 事件（默认 30），得到 base 商品集
//  2. 通过 item→actor 索引找同样 like/purchase 过 base 商品的其他用户
//     （peer，采样上限默认 50，控制成本）
//  3. 统计 peer 们 like/purchase 商品的原始频次（不乘相似度）
//  4. 剔除请求者自己的 base 商品与已购商品，按频次降序排序
//
// Score 即频次，与 personal 的加权相似度分不可跨策略比较。
type SimilarUsersRecall struct {
	Data core.DataStore

	// BaseEvents 是 base 商品集消费的事件数，<= 0 时取 30
	BaseEvents int

	// PeerSample 是 peer 采样上限，<= 0 时取 50
	PeerSample int

	// PeerEvents 是每个 peer 读取的事件数上限，<= 0 时取 50
	PeerEvents int
}

func (r *SimilarUsersRecall) Name() string { return "recall.similar_users" }

func (r *SimilarUsersRecall) baseEvents() int {
	if r.BaseEvents > 0 {
		return r.BaseEvents
	}
	return 30
}

func (r *SimilarUsersRecall) peerSample() int {
	if r.PeerSample > 0 {
		return r.PeerSample
	}
	return 50
}

func (r *SimilarUsersRecall) peerEvents() int {
	if r.PeerEvents > 0 {
		return r.PeerEvents
	}
	return 50
}

func (r *SimilarUsersRecall) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Data == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}

	affinity := []core.ActionType{core.ActionLike, core.ActionPurchase}
	events, err := r.Data.ReadUserActionInteractions(ctx, rctx.UserID, affinity, r.baseEvents())
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	base := make(map[string]struct{}, len(events))
	baseIDs := make([]string, 0, len(events))
	for _, ev := range events {
		if _, ok := base[ev.ProductID]; ok {
			continue
		}
		base[ev.ProductID] = struct{}{}
		baseIDs = append(baseIDs, ev.ProductID)
	}

	// 采样 peer：like/purchase 过任一 base 商品的其他用户
	sample := r.peerSample()
	peers := make([]string, 0, sample)
	peerSet := make(map[string]struct{}, sample)
	for _, pid := range baseIDs {
		if len(peers) >= sample {
			break
		}
		// +1 预留请求者自己可能占据的一个名额
		actors, err := r.Data.ReadItemActors(ctx, pid, sample+1)
		if err != nil {
			return nil, err
		}
		for _, uid := range actors {
			if uid == rctx.UserID {
				continue
			}
			if _, ok := peerSet[uid]; ok {
				continue
			}
			peerSet[uid] = struct{}{}
			peers = append(peers, uid)
			if len(peers) >= sample {
				break
			}
		}
	}
	if len(peers) == 0 {
		return nil, nil
	}

	purchased, err := purchasedSet(ctx, r.Data, rctx)
	if err != nil {
		return nil, err
	}

	// 原始频次统计
	counts := make(map[string]float64)
	for _, peer := range peers {
		peerEvents, err := r.Data.ReadUserActionInteractions(ctx, peer, affinity, r.peerEvents())
		if err != nil {
			continue
		}
		for _, ev := range peerEvents {
			if _, own := base[ev.ProductID]; own {
				continue
			}
			if _, bought := purchased[ev.ProductID]; bought {
				continue
			}
			counts[ev.ProductID]++
		}
	}

	items := sortScores(counts)
	for _, it := range items {
		it.PutLabel("recall_source", utils.Label{Value: "similar_users", Source: "recall"})
	}
	return items, nil
}
