// Package mallrec 是一个电商推荐核心（Mall Recommender）。
//
// 设计要点：
// - Item-CF first: 离线构建商品相似度索引（加权余弦），在线多策略打分
// - Pipeline-first: 推荐逻辑通过 Node 串联（Recall → Filter → ReRank → PostProcess）
// - Labels-first: labels 全链路透传与标准化 merge，支持 explain / 观测 / 策略驱动
// - 统一事件日志: 一份规范化互动日志 + 行为子集视图，不维护重复日志
package mallrec

import "github.com/rushteam/mallrec/pipeline"

// 轻量 facade：便于用户直接 import "mallrec" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
