// Package builders 注册全部内置 Node 的配置构建器。
// 在入口处 import _ "github.com/rushteam/mallrec/config/builders" 触发注册，
// store-backed Node 需先调用 config.SetDataStore 注入数据存储。
package builders

import (
	"fmt"
	"time"

	"github.com/rushteam/mallrec/catalog"
	"github.com/rushteam/mallrec/config"
	"github.com/rushteam/mallrec/filter"
	"github.com/rushteam/mallrec/pipeline"
	"github.com/rushteam/mallrec/pkg/conv"
	"github.com/rushteam/mallrec/recall"
	"github.com/rushteam/mallrec/rerank"
)

func init() {
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("recall.personal", BuildPersonalNode)
	config.Register("recall.wishlist", BuildWishlistNode)
	config.Register("recall.recent_view", BuildRecentViewNode)
	config.Register("recall.similar_users", BuildSimilarUsersNode)
	config.Register("recall.bought_together", BuildBoughtTogetherNode)
	config.Register("filter", BuildFilterNode)
	config.Register("rerank.score_sort", BuildScoreSortNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.diversity", BuildDiversityNode)
	config.Register("postprocess.catalog", BuildCatalogNode)
}

// buildSource 根据类型构建单个召回源。
func buildSource(sourceType string, cfg map[string]interface{}) (recall.Source, error) {
	data := config.Data()
	if data == nil {
		return nil, fmt.Errorf("data store not injected (call config.SetDataStore first)")
	}
	switch sourceType {
	case "personal":
		return &recall.PersonalRecall{
			Data:         data,
			RecentEvents: conv.ConfigGetInt(cfg, "recent_events", 0),
		}, nil
	case "wishlist":
		return &recall.WishlistRecall{Data: data}, nil
	case "recent_view":
		return &recall.RecentViewRecall{
			Data:       data,
			ViewEvents: conv.ConfigGetInt(cfg, "view_events", 0),
			Limit:      conv.ConfigGetInt(cfg, "limit", 0),
		}, nil
	case "similar_users":
		return &recall.SimilarUsersRecall{
			Data:       data,
			BaseEvents: conv.ConfigGetInt(cfg, "base_events", 0),
			PeerSample: conv.ConfigGetInt(cfg, "peer_sample", 0),
		}, nil
	case "bought_together":
		return &recall.BoughtTogetherRecall{Data: data}, nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", sourceType)
	}
}

func sourceNode(sourceType string, cfg map[string]interface{}) (pipeline.Node, error) {
	src, err := buildSource(sourceType, cfg)
	if err != nil {
		return nil, err
	}
	return &recall.SourceNode{Source: src}, nil
}

func BuildFanoutNode(cfg map[string]interface{}) (pipeline.Node, error) {
	sourcesConfig, ok := cfg["sources"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("sources not found or invalid")
	}
	sources := make([]recall.Source, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		sourceMap, ok := sc.(map[string]interface{})
		if !ok {
			continue
		}
		src, err := buildSource(conv.ConfigGet(sourceMap, "type", ""), sourceMap)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	fanout := &recall.Fanout{
		Sources: sources,
		Dedup:   conv.ConfigGet(cfg, "dedup", true),
	}
	if sec := conv.ConfigGetInt64(cfg, "timeout", 0); sec > 0 {
		fanout.Timeout = time.Duration(sec) * time.Second
	}
	return fanout, nil
}

func BuildPersonalNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return sourceNode("personal", cfg)
}

func BuildWishlistNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return sourceNode("wishlist", cfg)
}

func BuildRecentViewNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return sourceNode("recent_view", cfg)
}

func BuildSimilarUsersNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return sourceNode("similar_users", cfg)
}

func BuildBoughtTogetherNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return sourceNode("bought_together", cfg)
}

func BuildFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]interface{})
		if !ok {
			continue
		}
		filterType := conv.ConfigGet(filterMap, "type", "")
		switch filterType {
		case "rule":
			expr := conv.ConfigGet(filterMap, "expr", "")
			filters = append(filters, &filter.RuleFilter{Expr: expr})
		case "purchased":
			filters = append(filters, &filter.PurchasedFilter{Data: config.Data()})
		default:
			return nil, fmt.Errorf("unknown filter type: %s", filterType)
		}
	}
	return &filter.FilterNode{Filters: filters}, nil
}

func BuildScoreSortNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.ScoreSortNode{}, nil
}

func BuildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func BuildDiversityNode(cfg map[string]interface{}) (pipeline.Node, error) {
	labelKey := conv.ConfigGet(cfg, "label_key", "category")
	if labelKey == "" {
		labelKey = "category"
	}
	return &rerank.Diversity{
		LabelKey:  labelKey,
		MaxPerKey: conv.ConfigGetInt(cfg, "max_per_key", 0),
	}, nil
}

func BuildCatalogNode(cfg map[string]interface{}) (pipeline.Node, error) {
	data := config.Data()
	if data == nil {
		return nil, fmt.Errorf("data store not injected (call config.SetDataStore first)")
	}
	return &catalog.HydrateNode{Hydrator: &catalog.Hydrator{Data: data}}, nil
}
