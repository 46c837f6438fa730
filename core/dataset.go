package core

import "context"

// ActionType 是用户行为类型。系统只有一份规范化的互动日志，
// 各策略通过行为子集视图（view / like+purchase 等）消费它。
type ActionType string

const (
	ActionView      ActionType = "view"
	ActionLike      ActionType = "like"
	ActionAddToCart ActionType = "add_to_cart"
	ActionPurchase  ActionType = "purchase"
)

// Valid 检查行为类型是否在已知词表内。
func (a ActionType) Valid() bool {
	switch a {
	case ActionView, ActionLike, ActionAddToCart, ActionPurchase:
		return true
	}
	return false
}

// InteractionEvent 是一条不可变的互动事件（追加写，不更新不删除）。
// Value 为事件权重；为 0 时按 ActionWeights 推导默认值。
type InteractionEvent struct {
	UserID    string     `json:"user_id"`
	ProductID string     `json:"product_id"`
	Action    ActionType `json:"action"`
	Value     float64    `json:"value"`
	Timestamp int64      `json:"ts"` // Unix 秒
}

// ActionWeights 是行为类型到聚合权重的静态映射。
type ActionWeights map[ActionType]float64

// DefaultActionWeights 返回默认权重：view=1, like=3, add_to_cart=4, purchase=6。
func DefaultActionWeights() ActionWeights {
	return ActionWeights{
		ActionView:      1,
		ActionLike:      3,
		ActionAddToCart: 4,
		ActionPurchase:  6,
	}
}

// WeightOf 返回行为类型的权重，未知类型回退为 1。
func (w ActionWeights) WeightOf(a ActionType) float64 {
	if v, ok := w[a]; ok {
		return v
	}
	return 1
}

// OrderItem 是订单中的一个条目。
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
}

// Order 是订单/购买日志中的一条记录。
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Items     []OrderItem `json:"items"`
	Total     float64     `json:"total"`
	Status    string      `json:"status"` // paid / pending / cancelled
	CreatedAt int64       `json:"created_at"`
}

// ProductSummary 是商品目录中的展示属性子集。
// 目录对本核心只读；缺失商品以仅含 ID 的桩（stub）表示。
type ProductSummary struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Brand    string  `json:"brand"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Rating   float64 `json:"rating"`
}

// NeighborEntry 是相似度索引中的一个邻居。
// 不变式：同一商品的邻居列表按 Sim 降序、长度 ≤ K、无自引用、仅保留正相似度。
type NeighborEntry struct {
	ProductID string  `json:"product_id"`
	Sim       float64 `json:"sim"` // ∈ (0, 1]，存储时固定 6 位小数精度
}

// ItemSimilarityRow 是相似度索引中的一行：一个商品及其有序邻居列表。
type ItemSimilarityRow struct {
	ProductID string          `json:"product_id"`
	Neighbors []NeighborEntry `json:"neighbors"`
	UpdatedAt int64           `json:"updated_at"`
}

// CachedEntry 是用户推荐缓存中的一个条目。
// 缓存是非权威的副产物：仅由个性化打分整体覆盖写入，其他组件只读。
type CachedEntry struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
	TS        int64   `json:"ts"`
}

// ScoredProduct 是返回给调用方的一个推荐位。
// Score 的语义随策略不同（加权相似度 / 频次 / 共购件数），不可跨策略比较；
// recent_view 策略不打分，Score 为 0。
type ScoredProduct struct {
	ProductID string          `json:"product_id"`
	Score     float64         `json:"score"`
	Product   *ProductSummary `json:"product,omitempty"`
}

// RecommendationBundle 是一次请求返回的三个独立命名列表。
// 列表之间不合并、不去重。
type RecommendationBundle struct {
	Personal     []ScoredProduct `json:"personal"`
	RecentViews  []ScoredProduct `json:"recent_views"`
	SimilarUsers []ScoredProduct `json:"similar_users"`
}

// DataStore 是领域数据的统一存储接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（dataset）实现
//   - 一个接口覆盖互动日志/订单/目录/相似度索引/缓存，避免接口爆炸
//   - 所有读操作都是有界查询（时间窗、ID 集或 limit），不存在无界阻塞
//
// 实现：
//   - dataset.StoreDataAdapter 实现此接口（基于 core.KeyValueStore）
type DataStore interface {
	// Name 返回存储后端名称（用于监控）
	Name() string

	// ========== 互动日志（追加写） ==========

	// AppendInteraction 追加一条互动事件，同时维护行为子集视图与 item→actor 索引
	AppendInteraction(ctx context.Context, ev InteractionEvent) error

	// ReadUserInteractions 读取用户最近的互动事件，按时间倒序；
	// since > 0 时只返回 Timestamp >= since 的事件；limit <= 0 表示不限制
	ReadUserInteractions(ctx context.Context, userID string, since int64, limit int) ([]InteractionEvent, error)

	// ReadUserActionInteractions 读取用户指定行为子集的最近事件，按时间倒序
	ReadUserActionInteractions(ctx context.Context, userID string, actions []ActionType, limit int) ([]InteractionEvent, error)

	// ReadWindowInteractions 读取全量日志中 Timestamp >= since 的事件（离线构建用）
	ReadWindowInteractions(ctx context.Context, since int64) ([]InteractionEvent, error)

	// ReadItemActors 读取 like/purchase 过该商品的用户 ID，按时间倒序，最多 limit 个
	ReadItemActors(ctx context.Context, productID string, limit int) ([]string, error)

	// ========== 订单/购买日志 ==========

	// AppendOrder 追加一条订单，同时为每个订单条目追加 purchase 互动事件
	AppendOrder(ctx context.Context, o Order) error

	// ReadUserOrders 读取用户的全部订单，按时间倒序
	ReadUserOrders(ctx context.Context, userID string) ([]Order, error)

	// ReadOrdersWithProduct 读取包含指定商品的历史订单
	ReadOrdersWithProduct(ctx context.Context, productID string) ([]Order, error)

	// ========== 商品目录（对核心只读，写入口供外部装载） ==========

	// PutProduct 写入一条商品摘要
	PutProduct(ctx context.Context, p ProductSummary) error

	// ReadCatalog 批量读取商品摘要；缺失的 ID 不出现在结果中
	ReadCatalog(ctx context.Context, ids []string) (map[string]ProductSummary, error)

	// ========== 心愿单 ==========

	PutWishlist(ctx context.Context, userID string, productIDs []string) error
	ReadWishlist(ctx context.Context, userID string) ([]string, error)

	// ========== 相似度索引（代际写入 + 原子切换） ==========

	// NewGeneration 基于时间戳分配一个新的构建代 ID；
	// 同一时间戳多次调用返回不同的 ID
	NewGeneration(ts int64) string

	// UpsertSimilarityRow 向指定代（generation）写入一行；幂等
	UpsertSimilarityRow(ctx context.Context, generation string, row ItemSimilarityRow) error

	// CommitGeneration 原子切换当前代指针；只有完整构建结束后才调用
	CommitGeneration(ctx context.Context, generation string) error

	// CurrentGeneration 返回当前已提交的代；从未构建过时返回 ErrStoreNotFound
	CurrentGeneration(ctx context.Context) (string, error)

	// ReadSimilarityRows 从当前代批量读取相似度行；缺失的 ID 不出现在结果中
	ReadSimilarityRows(ctx context.Context, productIDs []string) (map[string]ItemSimilarityRow, error)

	// ========== 用户推荐缓存（整体覆盖写） ==========

	// WriteUserRecCache 整体覆盖用户的缓存条目；entries 为空时清空
	WriteUserRecCache(ctx context.Context, userID string, entries []CachedEntry) error

	// ReadUserRecCache 读取用户的缓存条目；无缓存时返回空列表
	ReadUserRecCache(ctx context.Context, userID string) ([]CachedEntry, error)
}
