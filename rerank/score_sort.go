package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pipeline"
)

// ScoreSortNode 按分数降序排序；同分按商品 ID 升序，
// 保证相同输入的排序结果完全可复现。
type ScoreSortNode struct{}

func (n *ScoreSortNode) Name() string {
	return "rerank.score_sort"
}

func (n *ScoreSortNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *ScoreSortNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
