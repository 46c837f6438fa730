// Package builder 实现商品相似度索引的离线构建与重建协调。
//
// 构建流程：读取时间窗内的互动日志 -> 用户×商品权重聚合 ->
// 加权余弦相似度 -> 每个商品保留 top-K 正相似邻居 ->
// 按代（generation）写入 -> 原子切换当前代指针。
package builder

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rushteam/mallrec/core"
)

// BuildResult 是一次构建的统计结果。
type BuildResult struct {
	Generation string // 本次构建写入并提交的代
	Events     int    // 参与聚合的事件数
	Products   int    // 写入的相似度行数
	Users      int    // 时间窗内的活跃用户数
}

// SimilarityBuilder 是商品相似度索引的离线构建器。
//
// 算法：加权余弦。同一用户对同一商品的多次行为按 Weights 累加，
// dot(i,j) 按用户逐个累加 w(u,i)*w(u,j)，再除以两商品的权重向量模长。
//
// 复杂度：每个用户贡献 C(n,2) 个商品对（n 为该用户互动过的商品数），
// 重度用户会产生平方级的对数。适用于目录万级、用户互动数百级的规模，
// 更大规模需要分片或采样。
type SimilarityBuilder struct {
	Data core.DataStore

	// Weights 是行为类型到聚合权重的映射，空时使用默认权重
	Weights core.ActionWeights

	// WindowMonths 是聚合时间窗（月），<= 0 时取 12
	WindowMonths int

	// TopK 是每行保留的邻居数，<= 0 时取 20
	TopK int

	// Epsilon 是模长下限，防止除零，<= 0 时取 1e-9
	Epsilon float64

	// Now 可注入当前时间（测试用），为 nil 时使用 time.Now
	Now func() time.Time
}

// NewSimilarityBuilder 创建使用默认参数的构建器。
func NewSimilarityBuilder(data core.DataStore) *SimilarityBuilder {
	return &SimilarityBuilder{
		Data:    data,
		Weights: core.DefaultActionWeights(),
	}
}

func (b *SimilarityBuilder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *SimilarityBuilder) weights() core.ActionWeights {
	if b.Weights != nil {
		return b.Weights
	}
	return core.DefaultActionWeights()
}

func (b *SimilarityBuilder) topK() int {
	if b.TopK > 0 {
		return b.TopK
	}
	return 20
}

func (b *SimilarityBuilder) windowMonths() int {
	if b.WindowMonths > 0 {
		return b.WindowMonths
	}
	return 12
}

func (b *SimilarityBuilder) epsilon() float64 {
	if b.Epsilon > 0 {
		return b.Epsilon
	}
	return 1e-9
}

// round6 将相似度固定为 6 位小数精度。
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Build 执行一次完整构建，成功后新代即为当前代。
// 日志读取失败时直接返回错误，不写入任何行、不切换指针，
// 旧代的完整索引保持可读。
func (b *SimilarityBuilder) Build(ctx context.Context, generation string) (*BuildResult, error) {
	if generation == "" {
		return nil, core.NewDomainError(core.ModuleBuilder, core.ErrorCodeInvalidInput, "builder: empty generation")
	}

	nowT := b.now()
	since := nowT.AddDate(0, -b.windowMonths(), 0).Unix()

	events, err := b.Data.ReadWindowInteractions(ctx, since)
	if err != nil {
		return nil, err
	}

	// 用户×商品权重聚合
	weights := b.weights()
	userItem := make(map[string]map[string]float64)
	for _, ev := range events {
		if ev.UserID == "" || ev.ProductID == "" {
			continue
		}
		if userItem[ev.UserID] == nil {
			userItem[ev.UserID] = make(map[string]float64)
		}
		userItem[ev.UserID][ev.ProductID] += weights.WeightOf(ev.Action)
	}

	// 模长：norm(i) = sqrt(Σ_u w(u,i)^2)
	normSq := make(map[string]float64)
	for _, items := range userItem {
		for pid, w := range items {
			normSq[pid] += w * w
		}
	}

	// 点积：逐用户累加无序商品对
	dots := make(map[string]map[string]float64)
	addDot := func(i, j string, v float64) {
		if dots[i] == nil {
			dots[i] = make(map[string]float64)
		}
		dots[i][j] += v
	}
	for _, items := range userItem {
		pids := make([]string, 0, len(items))
		for pid := range items {
			pids = append(pids, pid)
		}
		sort.Strings(pids)
		for x := 0; x < len(pids); x++ {
			for y := x + 1; y < len(pids); y++ {
				v := items[pids[x]] * items[pids[y]]
				addDot(pids[x], pids[y], v)
				addDot(pids[y], pids[x], v)
			}
		}
	}

	eps := b.epsilon()
	norm := func(pid string) float64 {
		n := math.Sqrt(normSq[pid])
		if n < eps {
			return eps
		}
		return n
	}

	// 每个商品：余弦 -> 6 位小数 -> 仅保留正相似 -> 排序截断 top-K
	k := b.topK()
	updatedAt := nowT.Unix()
	rows := 0
	for pid := range normSq {
		neighbors := make([]core.NeighborEntry, 0, len(dots[pid]))
		for nbr, dot := range dots[pid] {
			sim := round6(dot / (norm(pid) * norm(nbr)))
			if sim <= 0 {
				continue
			}
			neighbors = append(neighbors, core.NeighborEntry{ProductID: nbr, Sim: sim})
		}
		sort.Slice(neighbors, func(i, j int) bool {
			if neighbors[i].Sim != neighbors[j].Sim {
				return neighbors[i].Sim > neighbors[j].Sim
			}
			return neighbors[i].ProductID < neighbors[j].ProductID
		})
		if len(neighbors) > k {
			neighbors = neighbors[:k]
		}

		row := core.ItemSimilarityRow{
			ProductID: pid,
			Neighbors: neighbors,
			UpdatedAt: updatedAt,
		}
		if err := b.Data.UpsertSimilarityRow(ctx, generation, row); err != nil {
			return nil, err
		}
		rows++
	}

	if err := b.Data.CommitGeneration(ctx, generation); err != nil {
		return nil, err
	}

	return &BuildResult{
		Generation: generation,
		Events:     len(events),
		Products:   rows,
		Users:      len(userItem),
	}, nil
}
