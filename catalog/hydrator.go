// Package catalog 实现商品目录水合：把排序后的商品 ID 批量补全为展示属性。
package catalog

import (
	"context"

	"github.com/rushteam/mallrec/core"
)

// Hydrator 批量补全商品展示属性。
// 目录中缺失的 ID 解析为仅含 ID 的桩（stub），不是错误，
// 调用方可以渲染"未知商品"而不是丢掉推荐位。
type Hydrator struct {
	Data core.DataStore
}

// Hydrate 批量读取商品摘要；返回的 map 覆盖全部入参 ID。
func (h *Hydrator) Hydrate(ctx context.Context, ids []string) (map[string]core.ProductSummary, error) {
	result := make(map[string]core.ProductSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	found, err := h.Data.ReadCatalog(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if p, ok := found[id]; ok {
			result[id] = p
			continue
		}
		result[id] = core.ProductSummary{ID: id}
	}
	return result, nil
}
