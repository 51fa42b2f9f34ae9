package core

// UserPreferenceProfile 是从事件流实时推导出的用户偏好信号，每次生成都重新计算，不落库。
//
//	维度                 作用
//	FavoriteCategories  内容打分（按频次排序的前 3 个类别）
//	ViewedItemIDs       协同打分 / 已看过滤
//	SearchKeywords      内容打分（小写、空白归一化、去重）
//
// 三个维度都为空表示"没有信号"，不是错误。
type UserPreferenceProfile struct {
	UserID string

	// FavoriteCategories 按浏览频次降序，最多 FavoriteCategoryLimit 个
	FavoriteCategories []string

	// ViewedItemIDs 用户浏览过的内容集合
	ViewedItemIDs map[string]struct{}

	// SearchKeywords 归一化后的搜索词，按首次出现顺序去重
	SearchKeywords []string
}

// NewUserPreferenceProfile 创建一个空画像。
func NewUserPreferenceProfile(userID string) *UserPreferenceProfile {
	return &UserPreferenceProfile{
		UserID:             userID,
		FavoriteCategories: make([]string, 0),
		ViewedItemIDs:      make(map[string]struct{}),
		SearchKeywords:     make([]string, 0),
	}
}

// IsEmpty 判断画像是否没有任何信号。
func (p *UserPreferenceProfile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return len(p.FavoriteCategories) == 0 && len(p.ViewedItemIDs) == 0 && len(p.SearchKeywords) == 0
}

// HasViewed 判断用户是否浏览过 itemID。
func (p *UserPreferenceProfile) HasViewed(itemID string) bool {
	if p == nil || p.ViewedItemIDs == nil {
		return false
	}
	_, ok := p.ViewedItemIDs[itemID]
	return ok
}

// IsFavorite 判断类别是否属于偏好类别。
func (p *UserPreferenceProfile) IsFavorite(category string) bool {
	if p == nil || category == "" {
		return false
	}
	for _, c := range p.FavoriteCategories {
		if c == category {
			return true
		}
	}
	return false
}
