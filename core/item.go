package core

import "github.com/rushteam/recflow/pkg/utils"

// Item 是推荐链路中的统一承载结构（ScoredItem）：分数、理由、元信息、标签。
// Reasons 是面向用户的可读理由（有序、去重）；Labels 用于解释与观测（例如 recall_source）。
type Item struct {
	ID      string
	Title   string
	Score   float64
	Reasons []string
	Meta    map[string]any
	Labels  map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:      id,
		Score:   0,
		Reasons: make([]string, 0, 2),
		Meta:    make(map[string]any),
		Labels:  make(map[string]utils.Label),
	}
}

// AddReason 追加理由；已存在的理由不重复追加。
func (it *Item) AddReason(reason string) {
	if reason == "" {
		return
	}
	for _, r := range it.Reasons {
		if r == reason {
			return
		}
	}
	it.Reasons = append(it.Reasons, reason)
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Category 返回 Meta 中记录的类别（没有则为空）。
func (it *Item) Category() string {
	if it == nil || it.Meta == nil {
		return ""
	}
	if s, ok := it.Meta["category"].(string); ok {
		return s
	}
	return ""
}

// ScoredItem 是持久化和对外返回使用的扁平结构。
type ScoredItem struct {
	ItemID  string   `json:"item_id"`
	Title   string   `json:"title,omitempty"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ToScored 转为 ScoredItem。
func (it *Item) ToScored() ScoredItem {
	reasons := make([]string, len(it.Reasons))
	copy(reasons, it.Reasons)
	return ScoredItem{
		ItemID:  it.ID,
		Title:   it.Title,
		Score:   it.Score,
		Reasons: reasons,
	}
}

// ToScoredItems 批量转换。
func ToScoredItems(items []*Item) []ScoredItem {
	out := make([]ScoredItem, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, it.ToScored())
	}
	return out
}
