package core

import "time"

// RecommendContext 承载一次单用户生成所需的全部只读输入，贯穿整个 Pipeline 透传。
// 内容和事件是调用（或批次）开始时拍下的快照，打分器之间不共享可变状态。
type RecommendContext struct {
	UserID string

	// User 来自用户目录（可能为空，例如单测直接调用打分器）
	User *User

	// Profile 由偏好抽取器推导
	Profile *UserPreferenceProfile

	// Catalog 内容快照
	Catalog *Catalog

	// Events 全量事件快照（协同打分与热门打分需要其他用户的事件）
	Events []Event

	// Now 本次生成的"当前时间"，热门窗口与过期时间都以它为准
	Now time.Time

	// Limit 本次请求的结果数量上限
	Limit int

	// Algorithm 本次请求选择的算法
	Algorithm Algorithm
}

// Viewed 判断用户是否看过 itemID。
func (rctx *RecommendContext) Viewed(itemID string) bool {
	if rctx == nil {
		return false
	}
	return rctx.Profile.HasViewed(itemID)
}
