package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/recall"
	"github.com/rushteam/recflow/store"
)

// flakyContent 对指定用户返回错误（或 panic），其他用户走正常的内容打分。
type flakyContent struct {
	inner  recall.Source
	fail   map[string]bool
	panics map[string]bool
}

func (s *flakyContent) Name() string { return "recall.content" }

func (s *flakyContent) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if s.panics[rctx.UserID] {
		panic("scorer exploded")
	}
	if s.fail[rctx.UserID] {
		return nil, fmt.Errorf("content scorer failed for %s", rctx.UserID)
	}
	return s.inner.Recall(ctx, rctx)
}

func batchUsers(n int) []core.User {
	users := make([]core.User, 0, n)
	for i := 0; i < n; i++ {
		users = append(users, core.User{ID: fmt.Sprintf("u%02d", i), PushTarget: fmt.Sprintf("dev-%02d", i)})
	}
	return users
}

func batchEvents(users []core.User) []core.Event {
	events := make([]core.Event, 0, len(users))
	for _, u := range users {
		events = append(events, core.ViewItem{User: u.ID, ItemID: "X", Category: "health", At: testNow.Add(-time.Hour)})
	}
	return events
}

func newBatch(t *testing.T, f *fixture, source recall.Source, opts BatchOptions) *BatchOrchestrator {
	t.Helper()
	registry := DefaultAlgorithmRegistry()
	if source != nil {
		registry.Register(core.AlgorithmContent, source)
	}
	b, err := NewBatchOrchestrator(f.generator(t, WithAlgorithms(registry)), opts)
	require.NoError(t, err)
	return b
}

func failSet(ids ...string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func TestBatch_PartialFailureIsolation(t *testing.T) {
	users := batchUsers(10)
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	src := &flakyContent{inner: recall.NewContentRecall(), fail: failSet("u01", "u04", "u07")}
	b := newBatch(t, f, src, BatchOptions{Throttle: 0})

	res, err := b.Run(context.Background(), BatchRequest{Algorithm: "content", SendNotifications: true})
	require.NoError(t, err)
	assert.Equal(t, BatchStateDone, res.State)
	assert.Equal(t, 10, res.TotalUsers)
	assert.Equal(t, 7, res.SuccessCount)
	assert.Equal(t, 3, res.FailureCount)
	assert.Equal(t, 3, res.ErrorCount)
	assert.LessOrEqual(t, len(res.SampleErrors), 3)
	assert.Equal(t, "u01", res.SampleErrors[0].UserID)
	assert.Equal(t, 7, f.dispatcher.count())

	reports, err := f.repo.RecentBatchReports(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, res.RunID, r.ID)
	assert.Equal(t, 10, r.TotalUsers)
	assert.Equal(t, r.TotalUsers, r.SuccessCount+r.FailureCount)
	assert.True(t, r.NotificationsSent)
	assert.Equal(t, core.AlgorithmContent, r.Algorithm)
	assert.Len(t, r.Errors, 3)

	// 失败用户不写推荐结果
	_, err = f.repo.Get(context.Background(), "u01")
	assert.True(t, core.IsNotFound(err))
	_, err = f.repo.Get(context.Background(), "u00")
	assert.NoError(t, err)
}

func TestBatch_ErrorDetailCap(t *testing.T) {
	users := batchUsers(15)
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	fail := make(map[string]bool)
	for _, u := range users[:12] {
		fail[u.ID] = true
	}
	b := newBatch(t, f, &flakyContent{inner: recall.NewContentRecall(), fail: fail}, BatchOptions{Throttle: 0, Concurrency: 4})

	res, err := b.Run(context.Background(), BatchRequest{Algorithm: "content"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, 12, res.FailureCount)
	assert.Equal(t, 12, res.ErrorCount)
	assert.Len(t, res.SampleErrors, core.SampleErrors)

	reports, err := f.repo.RecentBatchReports(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Errors, core.MaxDetailedErrors)
	assert.Equal(t, 2, reports[0].MoreErrors)
	// 详细错误按用户顺序记录
	assert.Equal(t, "u00", reports[0].Errors[0].UserID)
	assert.Equal(t, "u09", reports[0].Errors[9].UserID)
}

func TestBatch_PanicIsIsolated(t *testing.T) {
	users := batchUsers(3)
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	src := &flakyContent{inner: recall.NewContentRecall(), panics: failSet("u01")}
	b := newBatch(t, f, src, BatchOptions{Throttle: 0})

	res, err := b.Run(context.Background(), BatchRequest{Algorithm: "content"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	require.Len(t, res.SampleErrors, 1)
	assert.Contains(t, res.SampleErrors[0].Error, "panic")
}

func TestBatch_HybridScorerPanicIsIsolated(t *testing.T) {
	users := batchUsers(3)
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	src := &flakyContent{inner: recall.NewContentRecall(), panics: failSet("u01")}
	registry := DefaultAlgorithmRegistry()
	registry.Register(core.AlgorithmHybrid, recall.NewHybridRecall(
		src, recall.NewCollaborativeRecall(), recall.NewTrendingRecall(), recall.DefaultWeights(),
	))
	b, err := NewBatchOrchestrator(f.generator(t, WithAlgorithms(registry)), BatchOptions{Throttle: 0, Concurrency: 2})
	require.NoError(t, err)

	var res *BatchResult
	require.NotPanics(t, func() {
		res, err = b.Run(context.Background(), BatchRequest{})
	})
	require.NoError(t, err)
	assert.Equal(t, BatchStateDone, res.State)
	assert.Equal(t, 2, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	require.Len(t, res.SampleErrors, 1)
	assert.Equal(t, "u01", res.SampleErrors[0].UserID)
	assert.Contains(t, res.SampleErrors[0].Error, "panic")

	reports, err := f.repo.RecentBatchReports(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}

func TestBatch_AllFailedIsValidOutcome(t *testing.T) {
	users := batchUsers(2)
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	src := &flakyContent{fail: failSet("u00", "u01")}
	b := newBatch(t, f, src, BatchOptions{Throttle: 0})

	res, err := b.Run(context.Background(), BatchRequest{Algorithm: "content"})
	require.NoError(t, err)
	assert.Equal(t, BatchStateDone, res.State)
	assert.Zero(t, res.SuccessCount)
	assert.Equal(t, 2, res.FailureCount)
}

func TestBatch_EligibilityAndMaxUsers(t *testing.T) {
	users := []core.User{
		{ID: "a", PushTarget: "dev-a"},
		{ID: "b"},
		{ID: "c", PushTarget: "dev-c"},
		{ID: "d", PushTarget: "dev-d"},
	}
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	b := newBatch(t, f, nil, BatchOptions{Throttle: 0})

	res, err := b.Run(context.Background(), BatchRequest{MaxUsers: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalUsers)

	_, err = f.repo.Get(context.Background(), "b")
	assert.True(t, core.IsNotFound(err))
	_, err = f.repo.Get(context.Background(), "d")
	assert.True(t, core.IsNotFound(err))

	res, err = b.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalUsers)
}

func TestBatch_CustomEligibility(t *testing.T) {
	users := []core.User{{ID: "vip-1", PushTarget: "dev-1"}, {ID: "vip-2"}, {ID: "u2", PushTarget: "dev"}}
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	b := newBatch(t, f, nil, BatchOptions{Throttle: 0, Eligibility: `user.id.startsWith("vip-")`})

	res, err := b.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalUsers)
	_, err = f.repo.Get(context.Background(), "vip-1")
	assert.NoError(t, err)
}

func TestBatch_EligibilityCannotAdmitUsersWithoutPushTarget(t *testing.T) {
	users := []core.User{{ID: "a", PushTarget: "dev-a"}, {ID: "b"}}
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	b := newBatch(t, f, nil, BatchOptions{Throttle: 0, Eligibility: `true`})

	res, err := b.Run(context.Background(), BatchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalUsers)
	_, err = f.repo.Get(context.Background(), "b")
	assert.True(t, core.IsNotFound(err))
}

func TestNewBatchOrchestrator_InvalidEligibility(t *testing.T) {
	f := newFixture(t, nil, nil, nil)
	_, err := NewBatchOrchestrator(f.generator(t), BatchOptions{Eligibility: `user.id ==`})
	assert.Error(t, err)

	_, err = NewBatchOrchestrator(nil, BatchOptions{})
	assert.Error(t, err)
}

type failingUsers struct{ *store.Snapshot }

func (failingUsers) ListUsers(context.Context) ([]core.User, error) {
	return nil, errors.New("directory offline")
}

func TestBatch_LoadUsersFailure(t *testing.T) {
	f := newFixture(t, batchUsers(2), healthCatalog(), nil)
	deps := f.deps()
	deps.Users = failingUsers{f.snapshot}
	g, err := NewGenerator(deps)
	require.NoError(t, err)
	b, err := NewBatchOrchestrator(g, BatchOptions{Throttle: 0})
	require.NoError(t, err)

	res, err := b.Run(context.Background(), BatchRequest{})
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
	assert.Equal(t, BatchStateFailed, res.State)

	reports, err := f.repo.RecentBatchReports(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestBatch_InvalidRequest(t *testing.T) {
	f := newFixture(t, batchUsers(1), healthCatalog(), nil)
	b := newBatch(t, f, nil, BatchOptions{Throttle: 0})

	res, err := b.Run(context.Background(), BatchRequest{MaxUsers: -1})
	assert.True(t, core.IsValidation(err))
	assert.Equal(t, BatchStateFailed, res.State)

	_, err = b.Run(context.Background(), BatchRequest{Algorithm: "neural"})
	assert.True(t, core.IsValidation(err))
}

func TestBatch_Throttle(t *testing.T) {
	users := batchUsers(3)
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	b := newBatch(t, f, nil, BatchOptions{Throttle: 30 * time.Millisecond})

	started := time.Now()
	res, err := b.Run(context.Background(), BatchRequest{Algorithm: "content"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	assert.GreaterOrEqual(t, time.Since(started), 60*time.Millisecond)
}

func TestBatch_CancelledContextCountsRemainingAsFailures(t *testing.T) {
	users := batchUsers(4)
	f := newFixture(t, users, healthCatalog(), batchEvents(users))
	b := newBatch(t, f, nil, BatchOptions{Throttle: 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := b.Run(ctx, BatchRequest{Algorithm: "content"})
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalUsers)
	assert.Equal(t, res.TotalUsers, res.SuccessCount+res.FailureCount)
	assert.Equal(t, 4, res.FailureCount)
}
