package core

import "github.com/rushteam/mallrec/pkg/utils"

// RecommendContext 承载用户/场景/请求级信息，贯穿整个推荐链路透传。
type RecommendContext struct {
	UserID string
	Scene  string // home / detail / cart / mail ...

	// Labels 是用户级标签，可驱动链路行为，例如：新用户、高净值等。
	Labels map[string]utils.Label

	// Params 请求级上下文参数。各策略约定的 key：
	// - "wishlist_seeds" ([]string)：心愿单种子，覆盖存储中的心愿单
	// - "purchased_set" (map[string]struct{})：预取的已购集合，避免重复读订单
	Params map[string]any
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
