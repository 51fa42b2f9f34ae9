package feature

import (
	"context"
	"sort"
	"strings"

	"github.com/rushteam/recflow/core"
)

// PreferenceExtractor 从用户的事件流推导偏好画像（UserPreferenceProfile）。
//
// 抽取规则：
//   - ViewItem：写入已看集合，并对内容类别计数（类别通过 ContentLookup 解析，
//     查不到时回退到事件自带的类别，都为空则不计数）
//   - Search：小写 + 空白归一化后去重，不做词干化
//   - Other：忽略
//
// 类别按频次降序取前 TopCategories 个，同频按首次出现顺序。
// 没有事件时返回空画像，下游打分器视为"无信号"。
type PreferenceExtractor struct {
	// TopCategories 保留的偏好类别数，默认 core.FavoriteCategoryLimit
	TopCategories int
}

// NewPreferenceExtractor 创建默认配置的抽取器。
func NewPreferenceExtractor() *PreferenceExtractor {
	return &PreferenceExtractor{TopCategories: core.FavoriteCategoryLimit}
}

func (e *PreferenceExtractor) Name() string {
	return "feature.preference"
}

// Extract 抽取 userID 的偏好画像；events 中其他用户的事件会被忽略。
func (e *PreferenceExtractor) Extract(
	ctx context.Context,
	userID string,
	events []core.Event,
	lookup core.ContentLookup,
) (*core.UserPreferenceProfile, error) {
	profile := core.NewUserPreferenceProfile(userID)
	if len(events) == 0 {
		return profile, nil
	}

	type categoryCount struct {
		name  string
		count int
		first int
	}
	counts := make(map[string]*categoryCount)
	seenKeyword := make(map[string]struct{})

	for _, ev := range events {
		if ev == nil || ev.UserID() != userID {
			continue
		}
		switch v := ev.(type) {
		case core.ViewItem:
			if v.ItemID == "" {
				continue
			}
			profile.ViewedItemIDs[v.ItemID] = struct{}{}

			category := ""
			if lookup != nil {
				c, err := lookup.CategoryOf(ctx, v.ItemID)
				if err != nil {
					return nil, core.NewUpstreamError(core.ModuleFeature, "content lookup", err)
				}
				category = c
			}
			if category == "" {
				category = v.Category
			}
			if category == "" {
				continue
			}
			cc, ok := counts[category]
			if !ok {
				cc = &categoryCount{name: category, first: len(counts)}
				counts[category] = cc
			}
			cc.count++
		case core.Search:
			kw := NormalizeKeyword(v.Term)
			if kw == "" {
				continue
			}
			if _, ok := seenKeyword[kw]; ok {
				continue
			}
			seenKeyword[kw] = struct{}{}
			profile.SearchKeywords = append(profile.SearchKeywords, kw)
		default:
			// 其他事件不产生信号
		}
	}

	ranked := make([]*categoryCount, 0, len(counts))
	for _, cc := range counts {
		ranked = append(ranked, cc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].first < ranked[j].first
	})

	top := e.TopCategories
	if top <= 0 {
		top = core.FavoriteCategoryLimit
	}
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	for _, cc := range ranked {
		profile.FavoriteCategories = append(profile.FavoriteCategories, cc.name)
	}

	return profile, nil
}

// NormalizeKeyword 小写并把连续空白压缩为单个空格。
func NormalizeKeyword(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}
