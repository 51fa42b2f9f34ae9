package service

import (
	"sort"
	"sync"
	"time"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/recall"
)

// ScoringOptions 是内置打分源的参数，零值字段使用默认常量。
type ScoringOptions struct {
	Weights        recall.Weights
	CategoryBonus  float64
	KeywordBonus   float64
	TrendingWindow time.Duration
	HybridTimeout  time.Duration
}

// AlgorithmRegistry 维护算法名到打分源的映射。
type AlgorithmRegistry struct {
	mu      sync.RWMutex
	sources map[core.Algorithm]recall.Source
}

// NewAlgorithmRegistry 注册 content / collaborative / trending / hybrid 四种内置算法，
// hybrid 复用同一组基础打分源。
func NewAlgorithmRegistry(opts ScoringOptions) *AlgorithmRegistry {
	content := recall.NewContentRecall()
	if opts.CategoryBonus > 0 {
		content.CategoryBonus = opts.CategoryBonus
	}
	if opts.KeywordBonus > 0 {
		content.KeywordBonus = opts.KeywordBonus
	}
	collaborative := recall.NewCollaborativeRecall()
	trending := recall.NewTrendingRecall()
	if opts.TrendingWindow > 0 {
		trending.Window = opts.TrendingWindow
	}
	w := opts.Weights
	if w == (recall.Weights{}) {
		w = recall.DefaultWeights()
	}
	hybrid := recall.NewHybridRecall(content, collaborative, trending, w)
	hybrid.Timeout = opts.HybridTimeout

	return &AlgorithmRegistry{
		sources: map[core.Algorithm]recall.Source{
			core.AlgorithmContent:       content,
			core.AlgorithmCollaborative: collaborative,
			core.AlgorithmTrending:      trending,
			core.AlgorithmHybrid:        hybrid,
		},
	}
}

// DefaultAlgorithmRegistry 使用默认参数创建注册表。
func DefaultAlgorithmRegistry() *AlgorithmRegistry {
	return NewAlgorithmRegistry(ScoringOptions{})
}

// Register 注册或替换算法的打分源。
func (r *AlgorithmRegistry) Register(algorithm core.Algorithm, source recall.Source) {
	if source == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[algorithm] = source
}

// Source 返回算法对应的打分源；未注册时返回 NOT_SUPPORTED。
func (r *AlgorithmRegistry) Source(algorithm core.Algorithm) (recall.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[algorithm]
	if !ok {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeNotSupported, "algorithm "+string(algorithm)+" is not registered")
	}
	return s, nil
}

// Algorithms 返回已注册的算法（排序）。
func (r *AlgorithmRegistry) Algorithms() []core.Algorithm {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Algorithm, 0, len(r.sources))
	for a := range r.sources {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
