package core

import "time"

// Event 是行为事件流中的一条记录，只读、由外部追加。
//
// 事件是带标签的变体：ViewItem / Search / Other，
// 使用方通过 type switch 区分，而不是探测可选字段。
type Event interface {
	UserID() string
	Timestamp() time.Time

	isEvent()
}

// ViewItem 表示用户浏览了某个内容。
// Category 是事件上报时携带的类别（可能为空），
// 偏好抽取以内容查询协作方（ContentLookup）返回的类别为准。
type ViewItem struct {
	User     string
	ItemID   string
	Category string
	At       time.Time
}

// Search 表示用户的一次搜索。
type Search struct {
	User string
	Term string
	At   time.Time
}

// Other 表示打分不关心的其他事件（点赞、分享等）。
type Other struct {
	User string
	Type string
	At   time.Time
}

func (e ViewItem) UserID() string       { return e.User }
func (e ViewItem) Timestamp() time.Time { return e.At }
func (ViewItem) isEvent()               {}

func (e Search) UserID() string       { return e.User }
func (e Search) Timestamp() time.Time { return e.At }
func (Search) isEvent()               {}

func (e Other) UserID() string       { return e.User }
func (e Other) Timestamp() time.Time { return e.At }
func (Other) isEvent()               {}

// EventsOf 返回属于 userID 的事件切片（保持原有顺序）。
func EventsOf(events []Event, userID string) []Event {
	out := make([]Event, 0)
	for _, ev := range events {
		if ev != nil && ev.UserID() == userID {
			out = append(out, ev)
		}
	}
	return out
}

// ViewedBy 汇总每个用户浏览过的物品集合。
func ViewedBy(events []Event) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{})
	for _, ev := range events {
		v, ok := ev.(ViewItem)
		if !ok || v.ItemID == "" {
			continue
		}
		set, ok := out[v.User]
		if !ok {
			set = make(map[string]struct{})
			out[v.User] = set
		}
		set[v.ItemID] = struct{}{}
	}
	return out
}
