package filter

import (
	"context"
	"sync"

	"github.com/rushteam/mallrec/core"
)

// PurchasedFilter 过滤用户已购买过的商品。
//
// 已购集合优先取 rctx.Params["purchased_set"]（bundle 场景预取），
// 否则从订单日志读取。按用户缓存一份集合，同一 Node 实例可被
// 多个请求并发复用。
type PurchasedFilter struct {
	Data core.DataStore

	mu         sync.Mutex
	cachedUser string
	cached     map[string]struct{}
}

func (f *PurchasedFilter) Name() string {
	return "filter.purchased"
}

func (f *PurchasedFilter) purchased(ctx context.Context, rctx *core.RecommendContext) (map[string]struct{}, error) {
	if rctx != nil && rctx.Params != nil {
		if v, ok := rctx.Params["purchased_set"]; ok {
			if set, ok := v.(map[string]struct{}); ok {
				return set, nil
			}
		}
	}
	if f.Data == nil || rctx == nil || rctx.UserID == "" {
		return map[string]struct{}{}, nil
	}

	f.mu.Lock()
	if f.cachedUser == rctx.UserID && f.cached != nil {
		set := f.cached
		f.mu.Unlock()
		return set, nil
	}
	f.mu.Unlock()

	orders, err := f.Data.ReadUserOrders(ctx, rctx.UserID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{})
	for _, o := range orders {
		for _, it := range o.Items {
			set[it.ProductID] = struct{}{}
		}
	}

	f.mu.Lock()
	f.cachedUser = rctx.UserID
	f.cached = set
	f.mu.Unlock()
	return set, nil
}

func (f *PurchasedFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	set, err := f.purchased(ctx, rctx)
	if err != nil {
		return false, err
	}
	_, bought := set[item.ID]
	return bought, nil
}
