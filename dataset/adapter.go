// Package dataset 基于 core.KeyValueStore 实现 core.DataStore 接口。
//
// 设计要点：
//   - 一份规范化的互动日志（Append 同时维护行为子集视图与 item→actor 索引），
//     不再维护第二份行为历史日志
//   - 相似度索引按代（generation）写入，构建完成后原子切换 current 指针，
//     读方永远只看到一个完整的代
//   - 缺失 key 一律视为空结果，而不是错误
package dataset

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rushteam/mallrec/core"
)

// StoreDataAdapter 是基于 core.KeyValueStore 的领域数据适配器。
//
// key 布局（{p} 为 KeyPrefix）：
//   - 互动日志：    {p}:events:user:{uid}（zset, score=ts）
//   - 全量日志：    {p}:events:all（zset, score=ts，离线构建用）
//   - 行为子集视图：{p}:events:user:{uid}:{action}（zset, score=ts）
//   - actor 索引：  {p}:actors:item:{pid}（zset, member=uid, score=ts，仅 like/purchase）
//   - 订单：        {p}:order:{oid} + {p}:orders:user:{uid} + {p}:orders:item:{pid}
//   - 商品：        {p}:product:{pid}
//   - 心愿单：      {p}:wishlist:{uid}
//   - 相似度行：    {p}:sim:{gen}:{pid}，当前代指针 {p}:sim:current
//   - 推荐缓存：    {p}:reccache:{uid}
type StoreDataAdapter struct {
	store core.KeyValueStore

	// KeyPrefix 是存储 key 的前缀
	KeyPrefix string

	// RowTTL 是相似度行的过期时间（秒）。0 表示不过期（保留旧代以便回滚），
	// > 0 时旧代的行会随 TTL 自然回收。
	RowTTL int

	mu  sync.Mutex // 保护订单索引列表的读改写
	seq atomic.Int64
}

// NewStoreDataAdapter 创建一个领域数据适配器。
func NewStoreDataAdapter(s core.KeyValueStore, keyPrefix string) *StoreDataAdapter {
	if keyPrefix == "" {
		keyPrefix = "mall"
	}
	return &StoreDataAdapter{
		store:     s,
		KeyPrefix: keyPrefix,
	}
}

// Name 实现 core.DataStore 接口
func (a *StoreDataAdapter) Name() string {
	return "store_data_adapter"
}

// eventRecord 是互动事件的存储形态。N 是进程内单调序号，
// 保证同一秒内的重复事件在 zset 中不会互相覆盖。
type eventRecord struct {
	core.InteractionEvent
	N int64 `json:"n"`
}

func (a *StoreDataAdapter) userEventsKey(uid string) string {
	return a.KeyPrefix + ":events:user:" + uid
}

func (a *StoreDataAdapter) userActionKey(uid string, action core.ActionType) string {
	return a.KeyPrefix + ":events:user:" + uid + ":" + string(action)
}

func (a *StoreDataAdapter) AppendInteraction(ctx context.Context, ev core.InteractionEvent) error {
	if ev.UserID == "" || ev.ProductID == "" {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: interaction requires user_id and product_id")
	}
	if !ev.Action.Valid() {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: unknown action type "+string(ev.Action))
	}

	rec := eventRecord{InteractionEvent: ev, N: a.seq.Add(1)}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	member := string(data)
	score := float64(ev.Timestamp)

	if err := a.store.ZAdd(ctx, a.userEventsKey(ev.UserID), score, member); err != nil {
		return err
	}
	if err := a.store.ZAdd(ctx, a.KeyPrefix+":events:all", score, member); err != nil {
		return err
	}
	if err := a.store.ZAdd(ctx, a.userActionKey(ev.UserID, ev.Action), score, member); err != nil {
		return err
	}

	// like/purchase 行为进入 item→actor 索引，供 similar-users 策略找同好
	if ev.Action == core.ActionLike || ev.Action == core.ActionPurchase {
		if err := a.store.ZAdd(ctx, a.KeyPrefix+":actors:item:"+ev.ProductID, score, ev.UserID); err != nil {
			return err
		}
	}
	return nil
}

// decodeEvents 解析 zset 成员并按时间倒序排列（同一时刻按序号倒序）。
func decodeEvents(members []string) []core.InteractionEvent {
	recs := make([]eventRecord, 0, len(members))
	for _, m := range members {
		var rec eventRecord
		if err := json.Unmarshal([]byte(m), &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp != recs[j].Timestamp {
			return recs[i].Timestamp > recs[j].Timestamp
		}
		return recs[i].N > recs[j].N
	})
	out := make([]core.InteractionEvent, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.InteractionEvent)
	}
	return out
}

func (a *StoreDataAdapter) ReadUserInteractions(ctx context.Context, userID string, since int64, limit int) ([]core.InteractionEvent, error) {
	members, err := a.store.ZRangeByScore(ctx, a.userEventsKey(userID), float64(since), math.MaxFloat64, int64(limit))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []core.InteractionEvent{}, nil
		}
		return nil, err
	}
	events := decodeEvents(members)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (a *StoreDataAdapter) ReadUserActionInteractions(ctx context.Context, userID string, actions []core.ActionType, limit int) ([]core.InteractionEvent, error) {
	var members []string
	for _, action := range actions {
		ms, err := a.store.ZRangeByScore(ctx, a.userActionKey(userID, action), 0, math.MaxFloat64, int64(limit))
		if err != nil {
			if core.IsStoreNotFound(err) {
				continue
			}
			return nil, err
		}
		members = append(members, ms...)
	}
	events := decodeEvents(members)
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (a *StoreDataAdapter) ReadWindowInteractions(ctx context.Context, since int64) ([]core.InteractionEvent, error) {
	members, err := a.store.ZRangeByScore(ctx, a.KeyPrefix+":events:all", float64(since), math.MaxFloat64, 0)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []core.InteractionEvent{}, nil
		}
		return nil, err
	}
	return decodeEvents(members), nil
}

func (a *StoreDataAdapter) ReadItemActors(ctx context.Context, productID string, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	actors, err := a.store.ZRange(ctx, a.KeyPrefix+":actors:item:"+productID, 0, stop)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []string{}, nil
		}
		return nil, err
	}
	return actors, nil
}

// ========== 订单 ==========

func (a *StoreDataAdapter) orderKey(oid string) string {
	return a.KeyPrefix + ":order:" + oid
}

// appendToIndex 向 JSON 字符串数组型索引追加一个值（幂等：已存在则跳过）。
func (a *StoreDataAdapter) appendToIndex(ctx context.Context, key, value string) error {
	var ids []string
	data, err := a.store.Get(ctx, key)
	if err != nil && !core.IsStoreNotFound(err) {
		return err
	}
	if err == nil {
		if err := json.Unmarshal(data, &ids); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if id == value {
			return nil
		}
	}
	ids = append(ids, value)
	out, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, out)
}

func (a *StoreDataAdapter) AppendOrder(ctx context.Context, o core.Order) error {
	if o.ID == "" || o.UserID == "" || len(o.Items) == 0 {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: order requires id, user_id and items")
	}

	data, err := json.Marshal(o)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.store.Set(ctx, a.orderKey(o.ID), data); err != nil {
		return err
	}
	if err := a.appendToIndex(ctx, a.KeyPrefix+":orders:user:"+o.UserID, o.ID); err != nil {
		return err
	}
	for _, it := range o.Items {
		if err := a.appendToIndex(ctx, a.KeyPrefix+":orders:item:"+it.ProductID, o.ID); err != nil {
			return err
		}
	}

	// 下单同时为每个条目追加 purchase 事件，保持日志单一规范化
	weights := core.DefaultActionWeights()
	for _, it := range o.Items {
		ev := core.InteractionEvent{
			UserID:    o.UserID,
			ProductID: it.ProductID,
			Action:    core.ActionPurchase,
			Value:     weights.WeightOf(core.ActionPurchase),
			Timestamp: o.CreatedAt,
		}
		if err := a.AppendInteraction(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// readOrdersByIndex 按索引 key 批量读取订单，按时间倒序。
func (a *StoreDataAdapter) readOrdersByIndex(ctx context.Context, indexKey string) ([]core.Order, error) {
	data, err := a.store.Get(ctx, indexKey)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []core.Order{}, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, a.orderKey(id))
	}
	blobs, err := a.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	orders := make([]core.Order, 0, len(blobs))
	for _, key := range keys {
		blob, ok := blobs[key]
		if !ok {
			continue
		}
		var o core.Order
		if err := json.Unmarshal(blob, &o); err != nil {
			continue
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt > orders[j].CreatedAt
		}
		return orders[i].ID < orders[j].ID
	})
	return orders, nil
}

func (a *StoreDataAdapter) ReadUserOrders(ctx context.Context, userID string) ([]core.Order, error) {
	return a.readOrdersByIndex(ctx, a.KeyPrefix+":orders:user:"+userID)
}

func (a *StoreDataAdapter) ReadOrdersWithProduct(ctx context.Context, productID string) ([]core.Order, error) {
	return a.readOrdersByIndex(ctx, a.KeyPrefix+":orders:item:"+productID)
}

// ========== 商品目录 ==========

func (a *StoreDataAdapter) productKey(pid string) string {
	return a.KeyPrefix + ":product:" + pid
}

func (a *StoreDataAdapter) PutProduct(ctx context.Context, p core.ProductSummary) error {
	if p.ID == "" {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: product requires id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, a.productKey(p.ID), data)
}

func (a *StoreDataAdapter) ReadCatalog(ctx context.Context, ids []string) (map[string]core.ProductSummary, error) {
	if len(ids) == 0 {
		return map[string]core.ProductSummary{}, nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, a.productKey(id))
	}
	blobs, err := a.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	result := make(map[string]core.ProductSummary, len(blobs))
	for _, id := range ids {
		blob, ok := blobs[a.productKey(id)]
		if !ok {
			continue
		}
		var p core.ProductSummary
		if err := json.Unmarshal(blob, &p); err != nil {
			continue
		}
		result[id] = p
	}
	return result, nil
}

// ========== 心愿单 ==========

func (a *StoreDataAdapter) PutWishlist(ctx context.Context, userID string, productIDs []string) error {
	data, err := json.Marshal(productIDs)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, a.KeyPrefix+":wishlist:"+userID, data)
}

func (a *StoreDataAdapter) ReadWishlist(ctx context.Context, userID string) ([]string, error) {
	data, err := a.store.Get(ctx, a.KeyPrefix+":wishlist:"+userID)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// ========== 相似度索引 ==========

// NewGeneration 生成一个新的构建代 ID（时间戳 + 进程内序号），
// 同一秒内的多次构建不会撞代。
func (a *StoreDataAdapter) NewGeneration(ts int64) string {
	return strconv.FormatInt(ts, 10) + "-" + strconv.FormatInt(a.seq.Add(1), 10)
}

func (a *StoreDataAdapter) simRowKey(gen, pid string) string {
	return a.KeyPrefix + ":sim:" + gen + ":" + pid
}

func (a *StoreDataAdapter) simPointerKey() string {
	return a.KeyPrefix + ":sim:current"
}

func (a *StoreDataAdapter) UpsertSimilarityRow(ctx context.Context, generation string, row core.ItemSimilarityRow) error {
	if generation == "" || row.ProductID == "" {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: similarity row requires generation and product_id")
	}
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	if a.RowTTL > 0 {
		return a.store.Set(ctx, a.simRowKey(generation, row.ProductID), data, a.RowTTL)
	}
	return a.store.Set(ctx, a.simRowKey(generation, row.ProductID), data)
}

func (a *StoreDataAdapter) CommitGeneration(ctx context.Context, generation string) error {
	if generation == "" {
		return core.NewDomainError(core.ModuleDataset, core.ErrorCodeInvalidInput, "dataset: empty generation")
	}
	return a.store.Set(ctx, a.simPointerKey(), []byte(generation))
}

func (a *StoreDataAdapter) CurrentGeneration(ctx context.Context) (string, error) {
	data, err := a.store.Get(ctx, a.simPointerKey())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *StoreDataAdapter) ReadSimilarityRows(ctx context.Context, productIDs []string) (map[string]core.ItemSimilarityRow, error) {
	if len(productIDs) == 0 {
		return map[string]core.ItemSimilarityRow{}, nil
	}
	gen, err := a.CurrentGeneration(ctx)
	if err != nil {
		if core.IsStoreNotFound(err) {
			// 从未构建过：空索引
			return map[string]core.ItemSimilarityRow{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(productIDs))
	for _, pid := range productIDs {
		keys = append(keys, a.simRowKey(gen, pid))
	}
	blobs, err := a.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}
	result := make(map[string]core.ItemSimilarityRow, len(blobs))
	for _, pid := range productIDs {
		blob, ok := blobs[a.simRowKey(gen, pid)]
		if !ok {
			continue
		}
		var row core.ItemSimilarityRow
		if err := json.Unmarshal(blob, &row); err != nil {
			continue
		}
		result[pid] = row
	}
	return result, nil
}

// ========== 用户推荐缓存 ==========

func (a *StoreDataAdapter) cacheKey(uid string) string {
	return a.KeyPrefix + ":reccache:" + uid
}

func (a *StoreDataAdapter) WriteUserRecCache(ctx context.Context, userID string, entries []core.CachedEntry) error {
	if entries == nil {
		entries = []core.CachedEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, a.cacheKey(userID), data)
}

func (a *StoreDataAdapter) ReadUserRecCache(ctx context.Context, userID string) ([]core.CachedEntry, error) {
	data, err := a.store.Get(ctx, a.cacheKey(userID))
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []core.CachedEntry{}, nil
		}
		return nil, err
	}
	var entries []core.CachedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// 确保实现 core.DataStore 接口
var _ core.DataStore = (*StoreDataAdapter)(nil)
