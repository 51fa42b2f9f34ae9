package core

import "context"

// CatalogItem 是可推荐的内容条目。
type CatalogItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
}

// Catalog 是一次生成（或一次批处理）开始时拍下的只读内容快照。
// 迭代顺序即 Items 的顺序，内容打分的同分排序依赖这一顺序。
type Catalog struct {
	items []CatalogItem
	index map[string]int
}

// NewCatalog 创建内容快照；重复 ID 只保留第一次出现的条目。
func NewCatalog(items []CatalogItem) *Catalog {
	c := &Catalog{
		items: make([]CatalogItem, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, ok := c.index[it.ID]; ok {
			continue
		}
		c.index[it.ID] = len(c.items)
		c.items = append(c.items, it)
	}
	return c
}

// Items 返回快照中的全部条目（只读，调用方不得修改）。
func (c *Catalog) Items() []CatalogItem {
	if c == nil {
		return nil
	}
	return c.items
}

// Len 返回条目数量。
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Get 按 ID 查找条目。
func (c *Catalog) Get(id string) (CatalogItem, bool) {
	if c == nil {
		return CatalogItem{}, false
	}
	i, ok := c.index[id]
	if !ok {
		return CatalogItem{}, false
	}
	return c.items[i], true
}

// Has 判断条目是否在快照中。
func (c *Catalog) Has(id string) bool {
	_, ok := c.Get(id)
	return ok
}

// CategoryOf 实现 ContentLookup；未知条目返回空字符串。
func (c *Catalog) CategoryOf(_ context.Context, itemID string) (string, error) {
	it, ok := c.Get(itemID)
	if !ok {
		return "", nil
	}
	return it.Category, nil
}

var _ ContentLookup = (*Catalog)(nil)
