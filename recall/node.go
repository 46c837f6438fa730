package recall

import (
	"context"

	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/pipeline"
)

// SourceNode 把单个召回源包装为 Pipeline Node，
// 召回结果追加在输入 items 之后。
type SourceNode struct {
	Source Source
}

func (n *SourceNode) Name() string {
	if n.Source != nil {
		return n.Source.Name()
	}
	return "recall.source"
}

func (n *SourceNode) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *SourceNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Source == nil {
		return items, nil
	}
	recalled, err := n.Source.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	return append(items, recalled...), nil
}
