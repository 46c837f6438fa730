package core

import "time"

// RecommendConfig 是推荐核心的配置接口，用于提供默认值。
type RecommendConfig interface {
	// DefaultTopKNeighbors 返回相似度索引每行保留的邻居数
	DefaultTopKNeighbors() int

	// DefaultWindowMonths 返回离线聚合的时间窗（月）
	DefaultWindowMonths() int

	// DefaultRecentEvents 返回个性化打分消费的最近事件数
	DefaultRecentEvents() int

	// DefaultLimit 返回推荐列表的默认长度
	DefaultLimit() int

	// MaxLimit 返回推荐列表长度的硬上限
	MaxLimit() int

	// DefaultCacheSize 返回用户推荐缓存的条目上限
	DefaultCacheSize() int

	// DefaultPeerSample 返回 similar-users 策略的同好采样上限
	DefaultPeerSample() int

	// DefaultLeaseTTL 返回重建租约的过期时间
	DefaultLeaseTTL() time.Duration
}

// DefaultRecommendConfig 是默认配置实现。
type DefaultRecommendConfig struct{}

func (c *DefaultRecommendConfig) DefaultTopKNeighbors() int {
	return 20
}

func (c *DefaultRecommendConfig) DefaultWindowMonths() int {
	return 12
}

func (c *DefaultRecommendConfig) DefaultRecentEvents() int {
	return 50
}

func (c *DefaultRecommendConfig) DefaultLimit() int {
	return 20
}

func (c *DefaultRecommendConfig) MaxLimit() int {
	return 100
}

func (c *DefaultRecommendConfig) DefaultCacheSize() int {
	return 50
}

func (c *DefaultRecommendConfig) DefaultPeerSample() int {
	return 50
}

func (c *DefaultRecommendConfig) DefaultLeaseTTL() time.Duration {
	return 30 * time.Minute
}
