// Package notify 提供推送协作方（core.Dispatcher）的实现。
//
// 投递语义为至多一次：Send 返回错误即视为本次推送失败，不做重试。
// 调用方（service）把失败记录为 DispatchError，不影响推荐生成结果。
package notify

import (
	"fmt"

	"github.com/rushteam/recflow/core"
)

const (
	// DefaultTitle 是推送标题
	DefaultTitle = "New recommendations for you"
)

// BuildMessage 根据最终推荐列表构建推送消息。
// 单条结果时正文为该内容标题，多条时为数量摘要。items 为空返回 false。
func BuildMessage(items []core.ScoredItem) (core.Message, bool) {
	if len(items) == 0 {
		return core.Message{}, false
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}
	msg := core.Message{
		Title:   DefaultTitle,
		ItemIDs: ids,
		Data: map[string]string{
			"item_id": items[0].ItemID,
		},
	}
	if len(items) == 1 {
		msg.Body = titleOf(items[0])
	} else {
		msg.Body = fmt.Sprintf("We found %d items you might like", len(items))
	}
	return msg, true
}

func titleOf(it core.ScoredItem) string {
	if it.Title != "" {
		return it.Title
	}
	return it.ItemID
}
