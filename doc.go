// Package recflow 是一个个性化内容推荐引擎。
//
// 一次生成的流程：
//   - 从用户的浏览与搜索事件中抽取偏好（最常看的类别、最近的搜索词）
//   - 按所选算法打分：content / collaborative / trending，或三者加权的 hybrid
//   - 打分为空时随机兜底
//   - 后处理：去掉已看内容，截断到 limit
//   - 覆盖写入该用户唯一的一份推荐结果（7 天后标记过期），按需推送
//
// 打分、过滤、截断都是 pipeline.Node，通过 Pipeline 串联；
// 应用层入口见 service 包，命令行入口见 cmd/recflow。
package recflow

import "github.com/rushteam/recflow/pipeline"

// 轻量 facade：便于直接 import "recflow" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
