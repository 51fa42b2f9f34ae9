package core

import "context"

// User 是用户目录中的一条记录。
// PushTarget 是推送协作方使用的不透明地址，为空表示用户未注册推送。
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PushTarget string `json:"push_target"`
}

// HasPushTarget 判断用户是否注册了推送地址。
func (u *User) HasPushTarget() bool {
	return u != nil && u.PushTarget != ""
}

// UserDirectory 是用户资料协作方。
type UserDirectory interface {
	// GetUser 获取用户；未知用户返回 NOT_FOUND
	GetUser(ctx context.Context, userID string) (*User, error)

	// ListUsers 枚举全部用户（批处理使用）
	ListUsers(ctx context.Context) ([]User, error)
}

// EventSource 是行为事件存储的只读适配器。
type EventSource interface {
	// Events 返回当前全量事件快照（按时间升序）
	Events(ctx context.Context) ([]Event, error)
}

// CatalogSource 提供内容快照。
type CatalogSource interface {
	Catalog(ctx context.Context) (*Catalog, error)
}

// ContentLookup 根据内容 ID 解析类别；未知内容返回空字符串。
type ContentLookup interface {
	CategoryOf(ctx context.Context, itemID string) (string, error)
}

// Message 是一条推送消息。
type Message struct {
	Title   string            `json:"title"`
	Body    string            `json:"body"`
	ItemIDs []string          `json:"item_ids"`
	Data    map[string]string `json:"data,omitempty"`
}

// Dispatcher 是推送协作方。投递语义为至多一次，不保证恰好一次。
type Dispatcher interface {
	Name() string
	Send(ctx context.Context, target string, msg Message) error
}
