package core

import (
	"strings"
	"time"
)

// Algorithm 是可选的推荐算法。
type Algorithm string

const (
	AlgorithmContent       Algorithm = "content"
	AlgorithmCollaborative Algorithm = "collaborative"
	AlgorithmTrending      Algorithm = "trending"
	AlgorithmHybrid        Algorithm = "hybrid"
)

// Algorithms 返回全部合法算法。
func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmContent, AlgorithmCollaborative, AlgorithmTrending, AlgorithmHybrid}
}

// ParseAlgorithm 解析算法名；空字符串返回默认的 hybrid。
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return AlgorithmHybrid, nil
	}
	for _, a := range Algorithms() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", NewValidationError("unknown algorithm %q", s)
}

// 打分相关的命名常量。这些数值没有更深的推导，只作为可配置项的默认值。
const (
	// CategoryBonus 内容命中偏好类别的加分
	CategoryBonus = 50.0
	// KeywordBonus 内容命中搜索词的加分（每个内容最多一次）
	KeywordBonus = 20.0

	// 混合权重
	HybridContentWeight       = 0.40
	HybridCollaborativeWeight = 0.35
	HybridTrendingWeight      = 0.25

	// FavoriteCategoryLimit 偏好类别保留个数
	FavoriteCategoryLimit = 3

	// FallbackMaxScore 随机兜底的装饰分数上限（不含）
	FallbackMaxScore = 50.0

	// DefaultLimit 单次生成默认返回数量
	DefaultLimit = 5
	// MaxLimit 单次生成返回数量上限
	MaxLimit = 50

	// DefaultMaxUsers 批处理默认用户数上限
	DefaultMaxUsers = 100
	// MaxDetailedErrors 批次日志中保留详细信息的错误数
	MaxDetailedErrors = 10
	// SampleErrors 批处理返回的错误样本数
	SampleErrors = 5
	// RecentBatchReports 历史查询返回的批次日志数
	RecentBatchReports = 50
	// DefaultHistoryLimit 历史查询默认条数
	DefaultHistoryLimit = 100
)

const (
	// TrendingWindow 热门统计窗口
	TrendingWindow = 7 * 24 * time.Hour
	// RecommendationTTL 推荐结果有效期（过期只标记，不删除）
	RecommendationTTL = 7 * 24 * time.Hour
)

// 推荐理由文案。
const (
	ReasonCategoryMatch = "category match: "
	ReasonKeywordMatch  = "keyword match: "
	ReasonSimilarUsers  = "similar users also viewed"
	ReasonRandom        = "random suggestion"
)
