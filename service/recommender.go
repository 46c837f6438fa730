// Package service 是推荐核心的服务门面，供 HTTP/RPC 接入层直接调用。
//
// 职责：
//   - 入参校验（空 ID、越界 limit 直接拒绝）
//   - 策略编排（单策略端点 + bundle 并发装配）
//   - 推荐缓存的写入与清空（尽力而为，失败只记日志）
//   - 重建触发与并发拒绝
package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/mallrec/builder"
	"github.com/rushteam/mallrec/catalog"
	"github.com/rushteam/mallrec/core"
	"github.com/rushteam/mallrec/recall"
)

// Recommender 是推荐服务门面。
type Recommender struct {
	data   core.DataStore
	cfg    core.RecommendConfig
	logger *zap.Logger

	builder     *builder.SimilarityBuilder
	coordinator *builder.RebuildCoordinator
	hydrator    *catalog.Hydrator

	personal     *recall.PersonalRecall
	wishlist     *recall.WishlistRecall
	similarUsers *recall.SimilarUsersRecall
	bought       *recall.BoughtTogetherRecall
}

// Option 配置 Recommender。
type Option func(*Recommender)

// WithLogger 设置日志器，默认 zap.NewNop()。
func WithLogger(l *zap.Logger) Option {
	return func(r *Recommender) { r.logger = l }
}

// WithConfig 设置配置，默认 core.DefaultRecommendConfig。
func WithConfig(cfg core.RecommendConfig) Option {
	return func(r *Recommender) { r.cfg = cfg }
}

// WithLeaseStore 设置重建租约的存储后端（多实例部署时必须），
// 不设置时退化为进程内互斥。
func WithLeaseStore(s core.KeyValueStore) Option {
	return func(r *Recommender) { r.coordinator.Store = s }
}

// NewRecommender 创建推荐服务门面。
func NewRecommender(data core.DataStore, opts ...Option) *Recommender {
	r := &Recommender{
		data:        data,
		cfg:         &core.DefaultRecommendConfig{},
		logger:      zap.NewNop(),
		coordinator: &builder.RebuildCoordinator{},
		hydrator:    &catalog.Hydrator{Data: data},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.builder = &builder.SimilarityBuilder{
		Data:         data,
		Weights:      core.DefaultActionWeights(),
		WindowMonths: r.cfg.DefaultWindowMonths(),
		TopK:         r.cfg.DefaultTopKNeighbors(),
	}
	r.coordinator.TTL = r.cfg.DefaultLeaseTTL()

	r.personal = &recall.PersonalRecall{Data: data, RecentEvents: r.cfg.DefaultRecentEvents()}
	r.wishlist = &recall.WishlistRecall{Data: data}
	r.similarUsers = &recall.SimilarUsersRecall{Data: data, PeerSample: r.cfg.DefaultPeerSample()}
	r.bought = &recall.BoughtTogetherRecall{Data: data}

	return r
}

// normalizeLimit 校验并归一 limit：0 取默认值，负数或超过硬上限拒绝。
func (r *Recommender) normalizeLimit(limit int) (int, error) {
	if limit == 0 {
		return r.cfg.DefaultLimit(), nil
	}
	if limit < 0 || limit > r.cfg.MaxLimit() {
		return 0, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			"recommend: limit out of range [0, "+strconv.Itoa(r.cfg.MaxLimit())+"]")
	}
	return limit, nil
}

func requireID(field, id string) error {
	if id == "" {
		return core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "recommend: missing "+field)
	}
	return nil
}

// RebuildSimilarityIndex 触发一次相似度索引重建。
// 已有重建在执行时立即返回 ALREADY_RUNNING，不排队。
func (r *Recommender) RebuildSimilarityIndex(ctx context.Context) (*builder.BuildResult, error) {
	var result *builder.BuildResult
	err := r.coordinator.TryRun(ctx, func(ctx context.Context) error {
		generation := r.data.NewGeneration(time.Now().Unix())
		start := time.Now()
		res, err := r.builder.Build(ctx, generation)
		if err != nil {
			r.logger.Error("similarity rebuild failed",
				zap.String("generation", generation),
				zap.Error(err))
			return err
		}
		result = res
		r.logger.Info("similarity rebuild done",
			zap.String("generation", res.Generation),
			zap.Int("events", res.Events),
			zap.Int("products", res.Products),
			zap.Int("users", res.Users),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetSimilarProducts 返回商品的邻居列表（相似度降序）。
// 索引中没有该商品时返回空列表。
func (r *Recommender) GetSimilarProducts(ctx context.Context, productID string) ([]core.NeighborEntry, error) {
	if err := requireID("product_id", productID); err != nil {
		return nil, err
	}
	rows, err := r.data.ReadSimilarityRows(ctx, []string{productID})
	if err != nil {
		return nil, err
	}
	row, ok := rows[productID]
	if !ok {
		return []core.NeighborEntry{}, nil
	}
	return row.Neighbors, nil
}

// GetSimilarProductsHydrated 返回带商品卡片的邻居列表。
func (r *Recommender) GetSimilarProductsHydrated(ctx context.Context, productID string, limit int) ([]core.ScoredProduct, error) {
	limit, err := r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	neighbors, err := r.GetSimilarProducts(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	ids := make([]string, 0, len(neighbors))
	for _, nbr := range neighbors {
		ids = append(ids, nbr.ProductID)
	}
	products, err := r.hydrator.Hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]core.ScoredProduct, 0, len(neighbors))
	for _, nbr := range neighbors {
		p := products[nbr.ProductID]
		out = append(out, core.ScoredProduct{ProductID: nbr.ProductID, Score: nbr.Sim, Product: &p})
	}
	return out, nil
}

// hydrate 截断并补全商品卡片。
func (r *Recommender) hydrate(ctx context.Context, items []*core.Item, limit int) ([]core.ScoredProduct, error) {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	products, err := r.hydrator.Hydrate(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]core.ScoredProduct, 0, len(items))
	for _, it := range items {
		p := products[it.ID]
		out = append(out, core.ScoredProduct{ProductID: it.ID, Score: it.Score, Product: &p})
	}
	return out, nil
}

// writeCache 尽力而为地整体覆盖用户推荐缓存（至多 DefaultCacheSize 条）。
// 缓存是非权威副产物，写失败只记日志，不影响调用方。
func (r *Recommender) writeCache(ctx context.Context, userID string, items []*core.Item) {
	size := r.cfg.DefaultCacheSize()
	if len(items) > size {
		items = items[:size]
	}
	now := time.Now().Unix()
	entries := make([]core.CachedEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, core.CachedEntry{ProductID: it.ID, Score: it.Score, TS: now})
	}
	if err := r.data.WriteUserRecCache(ctx, userID, entries); err != nil {
		r.logger.Warn("rec cache write failed",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

// GetPersonalRecommendations 返回个性化推荐列表。
// 用户无互动历史或无候选时清空缓存并返回空列表。
func (r *Recommender) GetPersonalRecommendations(ctx context.Context, userID string, limit int) ([]core.ScoredProduct, error) {
	if err := requireID("user_id", userID); err != nil {
		return nil, err
	}
	limit, err := r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	rctx := &core.RecommendContext{UserID: userID, Scene: "personal"}
	items, err := r.personal.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		r.writeCache(ctx, userID, nil)
		return []core.ScoredProduct{}, nil
	}

	r.writeCache(ctx, userID, items)
	return r.hydrate(ctx, items, limit)
}

// GetCachedRecommendations 读取用户的推荐缓存快照（可能为空）。
func (r *Recommender) GetCachedRecommendations(ctx context.Context, userID string) ([]core.CachedEntry, error) {
	if err := requireID("user_id", userID); err != nil {
		return nil, err
	}
	return r.data.ReadUserRecCache(ctx, userID)
}

// GetWishlistRecommendations 返回心愿单种子推荐。
// seeds 非空时覆盖存储中的心愿单。
func (r *Recommender) GetWishlistRecommendations(ctx context.Context, userID string, seeds []string, limit int) ([]core.ScoredProduct, error) {
	if userID == "" && len(seeds) == 0 {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "recommend: missing user_id or seeds")
	}
	limit, err := r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	rctx := &core.RecommendContext{UserID: userID, Scene: "wishlist"}
	if len(seeds) > 0 {
		rctx.Params = map[string]any{"wishlist_seeds": seeds}
	}
	items, err := r.wishlist.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, items, limit)
}

// GetRecentViewRecommendations 返回最近浏览推荐（不打分）。
func (r *Recommender) GetRecentViewRecommendations(ctx context.Context, userID string, limit int) ([]core.ScoredProduct, error) {
	if err := requireID("user_id", userID); err != nil {
		return nil, err
	}
	limit, err := r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	rctx := &core.RecommendContext{UserID: userID, Scene: "recent_view"}
	items, err := (&recall.RecentViewRecall{Data: r.data, Limit: limit}).Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, items, limit)
}

// GetSimilarUsersRecommendations 返回同好频次推荐。
func (r *Recommender) GetSimilarUsersRecommendations(ctx context.Context, userID string, limit int) ([]core.ScoredProduct, error) {
	if err := requireID("user_id", userID); err != nil {
		return nil, err
	}
	limit, err := r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	rctx := &core.RecommendContext{UserID: userID, Scene: "similar_users"}
	items, err := r.similarUsers.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, items, limit)
}

// GetBoughtTogether 返回订单共购推荐（按共购件数降序）。
func (r *Recommender) GetBoughtTogether(ctx context.Context, productID string, limit int) ([]core.ScoredProduct, error) {
	if err := requireID("product_id", productID); err != nil {
		return nil, err
	}
	limit, err := r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	rctx := &core.RecommendContext{
		Scene:  "bought_together",
		Params: map[string]any{"seed_product": productID},
	}
	items, err := r.bought.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, items, limit)
}

// GetRecommendationBundle 并发装配三个独立列表：personal / recent_views / similar_users。
// 三个列表不合并、不去重；单个策略失败只记日志，对应列表为空。
// 已购集合只读一次，经 rctx.Params 共享给三个策略。
// personal 打分成功时同样覆盖（或清空）用户推荐缓存，与单端点路径一致。
func (r *Recommender) GetRecommendationBundle(ctx context.Context, userID string, limit int) (*core.RecommendationBundle, error) {
	if err := requireID("user_id", userID); err != nil {
		return nil, err
	}
	limit, err := r.normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	orders, err := r.data.ReadUserOrders(ctx, userID)
	if err != nil {
		return nil, err
	}
	purchased := make(map[string]struct{})
	for _, o := range orders {
		for _, it := range o.Items {
			purchased[it.ProductID] = struct{}{}
		}
	}

	newRctx := func(scene string) *core.RecommendContext {
		return &core.RecommendContext{
			UserID: userID,
			Scene:  scene,
			Params: map[string]any{"purchased_set": purchased},
		}
	}

	bundle := &core.RecommendationBundle{
		Personal:     []core.ScoredProduct{},
		RecentViews:  []core.ScoredProduct{},
		SimilarUsers: []core.ScoredProduct{},
	}

	eg, egCtx := errgroup.WithContext(ctx)

	run := func(name string, dst *[]core.ScoredProduct, src recall.Source, rctx *core.RecommendContext) {
		eg.Go(func() error {
			items, err := src.Recall(egCtx, rctx)
			if err != nil {
				// 单策略失败不拖垮整个 bundle
				r.logger.Warn("bundle strategy failed",
					zap.String("strategy", name),
					zap.String("user_id", userID),
					zap.Error(err))
				return nil
			}
			scored, err := r.hydrate(egCtx, items, limit)
			if err != nil {
				r.logger.Warn("bundle hydrate failed",
					zap.String("strategy", name),
					zap.String("user_id", userID),
					zap.Error(err))
				return nil
			}
			*dst = scored
			return nil
		})
	}

	// personal 策略无论经由哪个入口，打分成功都要覆盖（或清空）缓存
	eg.Go(func() error {
		items, err := r.personal.Recall(egCtx, newRctx("personal"))
		if err != nil {
			r.logger.Warn("bundle strategy failed",
				zap.String("strategy", "personal"),
				zap.String("user_id", userID),
				zap.Error(err))
			return nil
		}
		if len(items) == 0 {
			r.writeCache(egCtx, userID, nil)
			return nil
		}
		r.writeCache(egCtx, userID, items)
		scored, err := r.hydrate(egCtx, items, limit)
		if err != nil {
			r.logger.Warn("bundle hydrate failed",
				zap.String("strategy", "personal"),
				zap.String("user_id", userID),
				zap.Error(err))
			return nil
		}
		bundle.Personal = scored
		return nil
	})

	run("recent_view", &bundle.RecentViews, &recall.RecentViewRecall{Data: r.data, Limit: limit}, newRctx("recent_view"))
	run("similar_users", &bundle.SimilarUsers, r.similarUsers, newRctx("similar_users"))

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return bundle, nil
}
