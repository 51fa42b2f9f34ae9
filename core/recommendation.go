package core

import "time"

// RecommendationSet 是用户当前唯一有效的推荐结果。重新生成直接覆盖，不保留历史分数。
type RecommendationSet struct {
	UserID      string       `json:"user_id"`
	Items       []ScoredItem `json:"items"`
	Algorithm   Algorithm    `json:"algorithm"`
	GeneratedAt time.Time    `json:"generated_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// NewRecommendationSet 创建推荐结果，ExpiresAt 固定为 GeneratedAt + RecommendationTTL。
func NewRecommendationSet(userID string, algorithm Algorithm, items []ScoredItem, generatedAt time.Time) *RecommendationSet {
	if items == nil {
		items = make([]ScoredItem, 0)
	}
	return &RecommendationSet{
		UserID:      userID,
		Items:       items,
		Algorithm:   algorithm,
		GeneratedAt: generatedAt,
		ExpiresAt:   generatedAt.Add(RecommendationTTL),
	}
}

// IsExpired 判断结果在 now 时刻是否已过期。
func (s *RecommendationSet) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// UserError 记录单个用户在批处理中的失败。
type UserError struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// BatchRunReport 是一次批处理的运行日志，只追加。
type BatchRunReport struct {
	ID                string      `json:"id"`
	Timestamp         time.Time   `json:"timestamp"`
	TotalUsers        int         `json:"total_users"`
	SuccessCount      int         `json:"success_count"`
	FailureCount      int         `json:"failure_count"`
	Algorithm         Algorithm   `json:"algorithm"`
	NotificationsSent bool        `json:"notifications_sent"`
	Errors            []UserError `json:"errors"`
	MoreErrors        int         `json:"more_errors"`
}

// ErrorCount 返回错误总数（详细 + 仅计数部分）。
func (r *BatchRunReport) ErrorCount() int {
	return len(r.Errors) + r.MoreErrors
}
