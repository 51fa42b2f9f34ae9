package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/recall"
	"github.com/rushteam/recflow/store"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	snapshot   *store.Snapshot
	kv         *store.MemoryStore
	repo       *store.RecommendationRepo
	dispatcher *fakeDispatcher
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent map[string]core.Message
	err  error
}

func (d *fakeDispatcher) Name() string { return "fake" }

func (d *fakeDispatcher) Send(_ context.Context, target string, msg core.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	if d.sent == nil {
		d.sent = make(map[string]core.Message)
	}
	d.sent[target] = msg
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func newFixture(t *testing.T, users []core.User, items []core.CatalogItem, events []core.Event) *fixture {
	t.Helper()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	return &fixture{
		snapshot:   store.NewSnapshot(users, items, events),
		kv:         kv,
		repo:       store.NewRecommendationRepo(kv),
		dispatcher: &fakeDispatcher{},
	}
}

func (f *fixture) deps() Deps {
	return Deps{
		Users:      f.snapshot,
		Events:     f.snapshot,
		Catalog:    f.snapshot,
		Store:      f.repo,
		Dispatcher: f.dispatcher,
	}
}

func (f *fixture) generator(t *testing.T, opts ...Option) *Generator {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return testNow }),
		WithFallback(recall.NewFallbackRecall(rand.New(rand.NewPCG(1, 2)))),
	}, opts...)
	g, err := NewGenerator(f.deps(), opts...)
	require.NoError(t, err)
	return g
}

func view(user, item string, ago time.Duration) core.Event {
	return core.ViewItem{User: user, ItemID: item, At: testNow.Add(-ago)}
}

func healthCatalog() []core.CatalogItem {
	return []core.CatalogItem{
		{ID: "A", Title: "Drink water", Category: "health"},
		{ID: "B", Title: "Run daily", Category: "fitness"},
		{ID: "C", Title: "Sleep well", Category: "health"},
	}
}

func TestGenerate_Validation(t *testing.T) {
	f := newFixture(t, []core.User{{ID: "u1"}}, healthCatalog(), nil)
	g := f.generator(t)
	ctx := context.Background()

	cases := []GenerateRequest{
		{UserID: ""},
		{UserID: "  "},
		{UserID: "u1", Limit: -1},
		{UserID: "u1", Limit: core.MaxLimit + 1},
		{UserID: "u1", Algorithm: "neural"},
	}
	for _, req := range cases {
		_, err := g.Generate(ctx, req)
		assert.True(t, core.IsValidation(err), "%+v: %v", req, err)
	}
}

func TestGenerate_UnknownUser(t *testing.T) {
	f := newFixture(t, []core.User{{ID: "u1"}}, healthCatalog(), nil)
	_, err := f.generator(t).Generate(context.Background(), GenerateRequest{UserID: "ghost"})
	assert.True(t, core.IsNotFound(err))
}

func TestGenerate_ContentScenario(t *testing.T) {
	// u1 浏览过另一个 health 内容（不在快照中），偏好类别为 health
	events := []core.Event{
		core.ViewItem{User: "u1", ItemID: "X", Category: "health", At: testNow.Add(-time.Hour)},
	}
	items := []core.CatalogItem{
		{ID: "A", Title: "Drink water", Category: "health"},
		{ID: "B", Title: "Run daily", Category: "fitness"},
	}
	f := newFixture(t, []core.User{{ID: "u1"}}, items, events)

	resp, err := f.generator(t).Generate(context.Background(), GenerateRequest{UserID: "u1", Algorithm: "content"})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, "A", resp.Recommendations[0].ItemID)
	assert.Equal(t, "Drink water", resp.Recommendations[0].Title)
	assert.Equal(t, 50.0, resp.Recommendations[0].Score)
	assert.Equal(t, []string{"category match: health"}, resp.Recommendations[0].Reasons)
	assert.False(t, resp.UsedFallback)
	assert.Equal(t, core.AlgorithmContent, resp.Algorithm)
	assert.Equal(t, 1, resp.TotalRecommendations)
}

func TestGenerate_TrendingRemovesViewed(t *testing.T) {
	events := []core.Event{view("u1", "A", time.Hour)}
	for i := 0; i < 9; i++ {
		events = append(events, view(fmt.Sprintf("o%d", i), "A", time.Duration(i+2)*time.Hour))
	}
	for i := 0; i < 3; i++ {
		events = append(events, view(fmt.Sprintf("o%d", i), "B", 30*time.Minute))
	}
	f := newFixture(t, []core.User{{ID: "u1"}}, healthCatalog(), events)

	resp, err := f.generator(t).Generate(context.Background(), GenerateRequest{UserID: "u1", Algorithm: "trending"})
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, "B", resp.Recommendations[0].ItemID)
	assert.Equal(t, 3.0, resp.Recommendations[0].Score)
}

func TestGenerate_PersistsAndOverwrites(t *testing.T) {
	events := []core.Event{
		view("u1", "A", time.Hour),
		view("u2", "A", time.Hour),
		view("u2", "B", time.Hour),
	}
	f := newFixture(t, []core.User{{ID: "u1"}, {ID: "u2"}}, healthCatalog(), events)
	g := f.generator(t)
	ctx := context.Background()

	_, err := g.Generate(ctx, GenerateRequest{UserID: "u1", Algorithm: "collaborative"})
	require.NoError(t, err)
	first, err := f.repo.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "B", first.Items[0].ItemID)
	assert.Equal(t, core.AlgorithmCollaborative, first.Algorithm)
	assert.Equal(t, 7*24*time.Hour, first.ExpiresAt.Sub(first.GeneratedAt))

	_, err = g.Generate(ctx, GenerateRequest{UserID: "u1", Algorithm: "trending"})
	require.NoError(t, err)
	second, err := f.repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, core.AlgorithmTrending, second.Algorithm)

	all, err := f.repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGenerate_FallbackWhenNoSignal(t *testing.T) {
	// A 没有类别、浏览发生在热门窗口之外：三路打分都没有输出
	items := []core.CatalogItem{
		{ID: "A", Title: "Drink water"},
		{ID: "B", Title: "Run daily", Category: "fitness"},
		{ID: "C", Title: "Sleep well", Category: "health"},
	}
	f := newFixture(t, []core.User{{ID: "u1"}}, items, []core.Event{view("u1", "A", 30*24*time.Hour)})

	resp, err := f.generator(t).Generate(context.Background(), GenerateRequest{UserID: "u1", Limit: 5})
	require.NoError(t, err)
	assert.True(t, resp.UsedFallback)
	require.Len(t, resp.Recommendations, 2)
	prev := 50.0
	for _, it := range resp.Recommendations {
		assert.NotEqual(t, "A", it.ItemID)
		assert.Equal(t, []string{"random suggestion"}, it.Reasons)
		assert.GreaterOrEqual(t, it.Score, 0.0)
		assert.Less(t, it.Score, 50.0)
		assert.LessOrEqual(t, it.Score, prev)
		prev = it.Score
	}
}

func TestGenerate_EmptyResultWhenEverythingViewed(t *testing.T) {
	events := []core.Event{view("u1", "A", time.Hour), view("u1", "B", time.Hour), view("u1", "C", time.Hour)}
	f := newFixture(t, []core.User{{ID: "u1", PushTarget: "dev-1"}}, healthCatalog(), events)

	resp, err := f.generator(t).Generate(context.Background(), GenerateRequest{UserID: "u1", SendNotification: true})
	require.NoError(t, err)
	assert.Empty(t, resp.Recommendations)
	assert.False(t, resp.NotificationSent)
	assert.Zero(t, f.dispatcher.count())
}

func TestGenerate_LimitTruncates(t *testing.T) {
	items := make([]core.CatalogItem, 0, 60)
	for i := 0; i < 60; i++ {
		items = append(items, core.CatalogItem{ID: fmt.Sprintf("I%02d", i), Category: "health"})
	}
	events := []core.Event{core.ViewItem{User: "u1", ItemID: "Z", Category: "health", At: testNow}}
	f := newFixture(t, []core.User{{ID: "u1"}}, items, events)
	g := f.generator(t)

	resp, err := g.Generate(context.Background(), GenerateRequest{UserID: "u1", Algorithm: "content"})
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, core.DefaultLimit)

	resp, err = g.Generate(context.Background(), GenerateRequest{UserID: "u1", Algorithm: "content", Limit: core.MaxLimit})
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, core.MaxLimit)
	// 同分保持内容快照顺序
	assert.Equal(t, "I00", resp.Recommendations[0].ItemID)
}

func TestGenerate_Notification(t *testing.T) {
	events := []core.Event{core.ViewItem{User: "u1", ItemID: "X", Category: "health", At: testNow}}
	users := []core.User{{ID: "u1", PushTarget: "dev-1"}, {ID: "u2"}}
	f := newFixture(t, users, healthCatalog(), events)
	g := f.generator(t)
	ctx := context.Background()

	resp, err := g.Generate(ctx, GenerateRequest{UserID: "u1", Algorithm: "content"})
	require.NoError(t, err)
	assert.False(t, resp.NotificationSent)
	assert.Zero(t, f.dispatcher.count())

	resp, err = g.Generate(ctx, GenerateRequest{UserID: "u1", Algorithm: "content", SendNotification: true})
	require.NoError(t, err)
	assert.True(t, resp.NotificationSent)
	msg := f.dispatcher.sent["dev-1"]
	assert.Equal(t, "We found 2 items you might like", msg.Body)
	assert.Equal(t, []string{"A", "C"}, msg.ItemIDs)

	// 没有推送地址
	resp, err = g.Generate(ctx, GenerateRequest{UserID: "u2", SendNotification: true})
	require.NoError(t, err)
	assert.False(t, resp.NotificationSent)
	assert.Equal(t, 1, f.dispatcher.count())
}

func TestGenerate_DispatchFailureIsNotFatal(t *testing.T) {
	events := []core.Event{core.ViewItem{User: "u1", ItemID: "X", Category: "health", At: testNow}}
	f := newFixture(t, []core.User{{ID: "u1", PushTarget: "dev-1"}}, healthCatalog(), events)
	f.dispatcher.err = errors.New("gateway down")

	resp, err := f.generator(t).Generate(context.Background(), GenerateRequest{UserID: "u1", Algorithm: "content", SendNotification: true})
	require.NoError(t, err)
	assert.False(t, resp.NotificationSent)
	assert.NotEmpty(t, resp.Recommendations)

	saved, err := f.repo.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, saved.Items, len(resp.Recommendations))
}

func TestGenerate_Deterministic(t *testing.T) {
	events := []core.Event{
		core.ViewItem{User: "u1", ItemID: "A", Category: "health", At: testNow.Add(-time.Hour)},
		core.Search{User: "u1", Term: "Run", At: testNow.Add(-time.Hour)},
		view("u2", "A", time.Hour), view("u2", "B", time.Hour), view("u2", "C", time.Hour),
		view("u3", "C", 2*time.Hour),
	}
	f := newFixture(t, []core.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}, healthCatalog(), events)
	g := f.generator(t)

	first, err := g.Generate(context.Background(), GenerateRequest{UserID: "u1", Algorithm: "hybrid"})
	require.NoError(t, err)
	require.NotEmpty(t, first.Recommendations)
	for i := 0; i < 5; i++ {
		again, err := g.Generate(context.Background(), GenerateRequest{UserID: "u1", Algorithm: "hybrid"})
		require.NoError(t, err)
		assert.Equal(t, first.Recommendations, again.Recommendations)
	}
}

type failingUpstream struct{ *store.Snapshot }

func (failingUpstream) Events(context.Context) ([]core.Event, error) {
	return nil, errors.New("event store timeout")
}

func TestGenerate_UpstreamFailure(t *testing.T) {
	f := newFixture(t, []core.User{{ID: "u1"}}, healthCatalog(), nil)
	deps := f.deps()
	deps.Events = failingUpstream{f.snapshot}
	g, err := NewGenerator(deps)
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), GenerateRequest{UserID: "u1"})
	assert.True(t, core.IsUnavailable(err))
}

func TestNewGenerator_RequiresDeps(t *testing.T) {
	_, err := NewGenerator(Deps{})
	assert.Error(t, err)
}

func TestAlgorithmRegistry(t *testing.T) {
	r := DefaultAlgorithmRegistry()
	assert.Equal(t, []core.Algorithm{"collaborative", "content", "hybrid", "trending"}, r.Algorithms())

	_, err := r.Source("neural")
	assert.True(t, core.IsNotSupported(err))

	s, err := r.Source(core.AlgorithmHybrid)
	require.NoError(t, err)
	assert.Equal(t, "recall.hybrid", s.Name())
}
