package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/recflow/core"
)

// 事件记录中的 type 取值
const (
	EventTypeViewItem = "view_item"
	EventTypeSearch   = "search"
)

// EventRecord 是事件在快照文件中的编码形式。
type EventRecord struct {
	Type      string    `json:"type"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id,omitempty"`
	Category  string    `json:"category,omitempty"`
	Term      string    `json:"term,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToEvent 按 type 还原事件变体；未知 type 视为 core.Other。
func (r EventRecord) ToEvent() core.Event {
	switch r.Type {
	case EventTypeViewItem:
		return core.ViewItem{User: r.UserID, ItemID: r.ItemID, Category: r.Category, At: r.Timestamp}
	case EventTypeSearch:
		return core.Search{User: r.UserID, Term: r.Term, At: r.Timestamp}
	default:
		return core.Other{User: r.UserID, Type: r.Type, At: r.Timestamp}
	}
}

// EncodeEvent 把事件变体编码为 EventRecord。
func EncodeEvent(ev core.Event) EventRecord {
	switch e := ev.(type) {
	case core.ViewItem:
		return EventRecord{Type: EventTypeViewItem, UserID: e.User, ItemID: e.ItemID, Category: e.Category, Timestamp: e.At}
	case core.Search:
		return EventRecord{Type: EventTypeSearch, UserID: e.User, Term: e.Term, Timestamp: e.At}
	case core.Other:
		return EventRecord{Type: e.Type, UserID: e.User, Timestamp: e.At}
	default:
		return EventRecord{UserID: ev.UserID(), Timestamp: ev.Timestamp()}
	}
}

type snapshotFile struct {
	Users   []core.User        `json:"users"`
	Catalog []core.CatalogItem `json:"catalog"`
	Events  []EventRecord      `json:"events"`
}

// Snapshot 是一份只读的用户、内容、事件数据，同时实现
// core.UserDirectory、core.EventSource、core.CatalogSource。
// 命令行与测试使用它代替真实的外部协作方。
type Snapshot struct {
	users   []core.User
	byID    map[string]int
	catalog *core.Catalog
	events  []core.Event
}

// NewSnapshot 创建快照；事件按时间升序稳定排序。
func NewSnapshot(users []core.User, items []core.CatalogItem, events []core.Event) *Snapshot {
	s := &Snapshot{
		users:   make([]core.User, 0, len(users)),
		byID:    make(map[string]int, len(users)),
		catalog: core.NewCatalog(items),
		events:  make([]core.Event, 0, len(events)),
	}
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if _, ok := s.byID[u.ID]; ok {
			continue
		}
		s.byID[u.ID] = len(s.users)
		s.users = append(s.users, u)
	}
	for _, ev := range events {
		if ev != nil {
			s.events = append(s.events, ev)
		}
	}
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Timestamp().Before(s.events[j].Timestamp())
	})
	return s
}

// ParseSnapshot 解析 JSON 快照。
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	events := make([]core.Event, 0, len(f.Events))
	for _, r := range f.Events {
		events = append(events, r.ToEvent())
	}
	return NewSnapshot(f.Users, f.Catalog, events), nil
}

// LoadSnapshot 从文件加载 JSON 快照。
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return ParseSnapshot(data)
}

// MarshalJSON 按文件格式输出快照。
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	f := snapshotFile{
		Users:   s.users,
		Catalog: s.catalog.Items(),
		Events:  make([]EventRecord, 0, len(s.events)),
	}
	for _, ev := range s.events {
		f.Events = append(f.Events, EncodeEvent(ev))
	}
	return json.Marshal(f)
}

func (s *Snapshot) GetUser(_ context.Context, userID string) (*core.User, error) {
	i, ok := s.byID[userID]
	if !ok {
		return nil, core.NewNotFoundError(core.ModuleStore, "user %s not found", userID)
	}
	u := s.users[i]
	return &u, nil
}

func (s *Snapshot) ListUsers(_ context.Context) ([]core.User, error) {
	out := make([]core.User, len(s.users))
	copy(out, s.users)
	return out, nil
}

func (s *Snapshot) Events(_ context.Context) ([]core.Event, error) {
	out := make([]core.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *Snapshot) Catalog(_ context.Context) (*core.Catalog, error) {
	return s.catalog, nil
}

var (
	_ core.UserDirectory = (*Snapshot)(nil)
	_ core.EventSource   = (*Snapshot)(nil)
	_ core.CatalogSource = (*Snapshot)(nil)
)
