package config

import (
	"fmt"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/filter"
	"github.com/rushteam/recflow/pipeline"
	"github.com/rushteam/recflow/pkg/conv"
	"github.com/rushteam/recflow/rerank"
)

func init() {
	Register("filter", BuildFilterNode)
	Register("filter.viewed", BuildViewedFilterNode)
	Register("rerank.topn", BuildTopNNode)
	Register("rerank.diversity", BuildDiversityNode)
}

// BuildViewedFilterNode 构建只含已看过滤器的 FilterNode。
func BuildViewedFilterNode(map[string]any) (pipeline.Node, error) {
	return &filter.FilterNode{NodeName: "filter.viewed", Filters: []filter.Filter{filter.NewViewedFilter()}}, nil
}

// BuildTopNNode 构建截断节点；n 缺省为 0，表示使用请求的 limit。
func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	n := conv.Int(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("rerank.topn: n must not be negative")
	}
	return &rerank.TopNNode{N: n}, nil
}

// BuildDiversityNode 构建多样性节点：
//
//	- type: rerank.diversity
//	  config:
//	    max_per_category: 2
//	    field: category
func BuildDiversityNode(cfg map[string]any) (pipeline.Node, error) {
	maxPer := conv.Int(cfg, "max_per_category", 1)
	if maxPer < 1 {
		return nil, fmt.Errorf("rerank.diversity: max_per_category must be at least 1")
	}
	return &rerank.Diversity{
		MaxPerCategory: maxPer,
		Field:          conv.Get(cfg, "field", ""),
	}, nil
}

// BuildFilterNode 构建组合过滤节点：
//
//	- type: filter
//	  config:
//	    filters:
//	      - type: viewed
//	      - type: blacklist
//	        item_ids: ["A"]
//	      - type: expr
//	        expr: item.category == "ads"
func BuildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	return buildFilterNode(cfg, nil)
}

// FilterNodeBuilder 返回带黑名单存储的 filter 构建器，blacklist 类型的过滤器会读取 Store 中的 key。
func FilterNodeBuilder(blacklist core.Store) NodeBuilder {
	var store filter.BlacklistStore
	if blacklist != nil {
		store = filter.NewStoreAdapter(blacklist)
	}
	return func(cfg map[string]any) (pipeline.Node, error) {
		return buildFilterNode(cfg, store)
	}
}

func buildFilterNode(cfg map[string]any, store filter.BlacklistStore) (pipeline.Node, error) {
	raws, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}
	filters := make([]filter.Filter, 0, len(raws))
	for i, raw := range raws {
		fc, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("filters[%d]: expected a mapping", i)
		}
		f, err := buildFilter(fc, store)
		if err != nil {
			return nil, fmt.Errorf("filters[%d]: %w", i, err)
		}
		filters = append(filters, f)
	}
	return &filter.FilterNode{NodeName: "filter", Filters: filters}, nil
}

func buildFilter(fc map[string]any, store filter.BlacklistStore) (filter.Filter, error) {
	switch typ := conv.Get(fc, "type", ""); typ {
	case "viewed":
		return filter.NewViewedFilter(), nil
	case "blacklist":
		ids := conv.Strings(fc, "item_ids")
		if ids == nil {
			ids = []string{}
		}
		return filter.NewBlacklistFilter(ids, store, conv.Get(fc, "key", "")), nil
	case "expr":
		return filter.NewExprFilter(conv.Get(fc, "expr", ""))
	default:
		return nil, fmt.Errorf("unknown filter type: %q", typ)
	}
}
