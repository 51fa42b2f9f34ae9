package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recflow/core"
	"github.com/rushteam/recflow/service"
	"github.com/rushteam/recflow/store"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	now := time.Now().UTC()
	users := []core.User{
		{ID: "u1", PushTarget: "dev-1"},
		{ID: "u2", PushTarget: "dev-2"},
		{ID: "u3", PushTarget: "dev-3"},
		{ID: "quiet"},
	}
	items := []core.CatalogItem{
		{ID: "A", Title: "Drink water", Category: "health"},
		{ID: "B", Title: "Run daily", Category: "fitness"},
	}
	var events []core.Event
	for _, u := range users {
		events = append(events, core.ViewItem{User: u.ID, ItemID: "X", Category: "health", At: now.Add(-time.Hour)})
	}
	data, err := json.Marshal(store.NewSnapshot(users, items, events))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(args, "--env", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.Bytes(), err
}

func TestGenerateCommand(t *testing.T) {
	snapshot := writeSnapshot(t)
	out, err := run(t, "generate", "--snapshot", snapshot, "--user", "u1", "--algorithm", "content", "--notify")
	require.NoError(t, err)

	var resp service.GenerateResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, core.AlgorithmContent, resp.Algorithm)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, "A", resp.Recommendations[0].ItemID)
	assert.True(t, resp.NotificationSent)
}

func TestGenerateCommand_Errors(t *testing.T) {
	snapshot := writeSnapshot(t)

	_, err := run(t, "generate", "--snapshot", snapshot, "--user", "ghost")
	assert.True(t, core.IsNotFound(err))

	_, err = run(t, "generate", "--snapshot", snapshot, "--user", "u1", "--limit", "51")
	assert.True(t, core.IsValidation(err))

	_, err = run(t, "generate", "--user", "u1")
	assert.True(t, core.IsValidation(err), "missing snapshot")
}

func TestBatchCommand_EnvFile(t *testing.T) {
	t.Setenv("RECFLOW_BATCH_THROTTLE", "0s")
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RECFLOW_BATCH_MAX_USERS=2\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("RECFLOW_BATCH_MAX_USERS") })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"batch", "--snapshot", writeSnapshot(t), "--env", envFile})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var result service.BatchResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, service.BatchStateDone, result.State)
	assert.Equal(t, 2, result.TotalUsers)
	assert.Equal(t, 2, result.SuccessCount)
}

func TestHistoryCommand_MemoryStoreStartsEmpty(t *testing.T) {
	out, err := run(t, "history", "--snapshot", writeSnapshot(t), "--pretty")
	require.NoError(t, err)

	var resp service.HistoryResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Empty(t, resp.Recommendations)
	assert.Empty(t, resp.BatchReports)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "nope.env")))
	assert.NoError(t, loadEnvFile(""))
}
