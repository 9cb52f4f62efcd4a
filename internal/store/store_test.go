package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jakopako/mailwalk/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_ValidationErrors(t *testing.T) {
	for _, p := range []string{"", "   ", "\t"} {
		s, err := Open(context.Background(), p)
		assert.Nil(t, s)
		assert.ErrorContains(t, err, "empty database path")
	}
}

func TestOpen_FilePermissions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")
	s, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer s.Close()

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestGetSetDeleteClear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	var v []string
	found, err := s.Get(ctx, "missing", &v)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "list", []string{"a", "b"}))
	found, err = s.Get(ctx, "list", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"a", "b"}, v)

	require.NoError(t, s.Delete(ctx, "list"))
	found, err = s.Get(ctx, "list", &v)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "x", 1))
	require.NoError(t, s.Clear(ctx))
	var x int
	found, err = s.Get(ctx, "x", &x)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsAutomationRunning(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	running, set, err := s.IsAutomationRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running)
	assert.False(t, set, "an absent flag is not an explicit false")

	require.NoError(t, s.SetAutomationRunning(ctx, true))
	running, set, err = s.IsAutomationRunning(ctx)
	require.NoError(t, err)
	assert.True(t, running)
	assert.True(t, set)

	require.NoError(t, s.SetAutomationRunning(ctx, false))
	running, set, err = s.IsAutomationRunning(ctx)
	require.NoError(t, err)
	assert.False(t, running)
	assert.True(t, set)
}

func TestSharedFileBetweenStores(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "state.db")
	runner, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer runner.Close()
	stopper, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer stopper.Close()

	require.NoError(t, runner.SetAutomationRunning(ctx, true))
	require.NoError(t, stopper.SetAutomationRunning(ctx, false))

	running, set, err := runner.IsAutomationRunning(ctx)
	require.NoError(t, err)
	assert.True(t, set)
	assert.False(t, running)
}

func TestLogs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	logs, err := s.Logs(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)

	require.NoError(t, s.AppendLog(ctx, types.LogEntry{Message: "one", Type: types.LogLevelInfo}))
	require.NoError(t, s.AppendLog(ctx, types.LogEntry{Message: "two", Type: types.LogLevelError}))
	logs, err = s.Logs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.LogEntry{
		{Message: "one", Type: types.LogLevelInfo},
		{Message: "two", Type: types.LogLevelError},
	}, logs)

	require.NoError(t, s.ClearLogs(ctx))
	logs, err = s.Logs(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestSaveAccount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	settings := json.RawMessage(`{"cta":{"gmail":["//a[@id='cta']"]}}`)
	require.NoError(t, s.SaveAccount(ctx, "tok", []string{"news@example.com"}, settings))

	token, err := s.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	senders, err := s.Senders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"news@example.com"}, senders)

	raw, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(settings), string(raw))

	require.NoError(t, s.Clear(ctx))
	raw, err = s.Settings(ctx)
	require.NoError(t, err)
	assert.Nil(t, raw)
}
