package output

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jakopako/mailwalk/internal/messaging"
	"github.com/jakopako/mailwalk/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memLogs struct {
	mu      sync.Mutex
	entries []types.LogEntry
}

func (m *memLogs) AppendLog(ctx context.Context, entry types.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func notify(t *testing.T, bus *messaging.Bus, action messaging.Action, payload any) {
	t.Helper()
	msg, err := messaging.NewMessage(action, payload)
	require.NoError(t, err)
	require.NoError(t, bus.Notify(msg))
}

func TestFinishedEntry(t *testing.T) {
	total := 4
	tests := []struct {
		name     string
		payload  messaging.FinishedPayload
		expected types.LogEntry
	}{
		{"finished", messaging.FinishedPayload{Total: &total}, types.LogEntry{Message: "PROCESS FINISHED. Total processed: 4", Type: types.LogLevelSuccess}},
		{"stopped", messaging.FinishedPayload{Total: &total, Stopped: true}, types.LogEntry{Message: "PROCESS FINISHED. Total processed: 4", Type: types.LogLevelSuccess}},
		{"failed", messaging.FinishedPayload{Error: "logger API error"}, types.LogEntry{Message: "logger API error", Type: types.LogLevelError}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FinishedEntry(tt.payload))
		})
	}
}

func TestConsoleFollow(t *testing.T) {
	bus := messaging.NewBus()
	defer bus.Close()
	logs := bus.Subscribe(messaging.Log)
	finished := bus.Subscribe(messaging.AutomationFinished)

	notify(t, bus, messaging.Log, messaging.LogPayload{Data: types.LogEntry{Message: "Processing email #1: Hello", Type: types.LogLevelInfo}})
	notify(t, bus, messaging.Log, messaging.LogPayload{Data: types.LogEntry{Message: "Full sequence terminated normally! Total processed: 1", Type: types.LogLevelSuccess}})
	total := 1
	notify(t, bus, messaging.AutomationFinished, messaging.FinishedPayload{Total: &total})

	var out bytes.Buffer
	store := &memLogs{}
	c := NewConsole(&out, store)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := c.Follow(ctx, logs, finished)
	require.NoError(t, err)
	require.NotNil(t, p.Total)
	assert.Equal(t, 1, *p.Total)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "INFO  Processing email #1: Hello", lines[0])
	assert.Equal(t, "OK    PROCESS FINISHED. Total processed: 1", lines[2])
	assert.Equal(t, []types.LogEntry{{Message: "PROCESS FINISHED. Total processed: 1", Type: types.LogLevelSuccess}}, store.entries)
}

func TestConsoleFollowCancelled(t *testing.T) {
	bus := messaging.NewBus()
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewConsole(&bytes.Buffer{}, nil).Follow(ctx, bus.Subscribe(messaging.Log), bus.Subscribe(messaging.AutomationFinished))
	assert.ErrorIs(t, err, context.Canceled)
}

func testStatus() types.RunStatus {
	return types.RunStatus{
		RunID:       "run-1",
		Account:     "jane.doe@example.com",
		NrProcessed: 3,
		Senders: []types.SenderStatus{
			{Sender: "Shop <news@shop.example>", NrProcessed: 3, NrCTAs: 2},
			{Sender: "deals@example.org", NoMatches: true},
		},
		Outcome: types.OutcomeCompleted,
		Start:   time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 10, 19, 12, 5, 0, 0, time.UTC),
	}
}

func TestWriteSummary(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteSummary(&out, testStatus()))
	s := out.String()
	assert.Contains(t, s, "Account: jane.doe@example.com")
	assert.Contains(t, s, "Outcome: completed")
	assert.Contains(t, s, "Shop <news@shop.example>")
	assert.Contains(t, s, "no matches")
	assert.NotContains(t, s, "Error:")
}

func TestFileWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	w, err := NewWriter(&WriterConfig{Type: FILE_WRITER_TYPE, FileDir: dir})
	require.NoError(t, err)
	fw, ok := w.(*FileWriter)
	require.True(t, ok)

	require.NoError(t, fw.WriteStatus(testStatus()))
	data, err := os.ReadFile(fw.StatusPath("run-1"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Shop <news@shop.example>")

	var got types.RunStatus
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, testStatus(), got)
}

func TestNewWriter(t *testing.T) {
	w, err := NewWriter(&WriterConfig{Type: STDOUT_WRITER_TYPE})
	require.NoError(t, err)
	assert.IsType(t, &StdoutWriter{}, w)

	_, err = NewWriter(&WriterConfig{Type: FILE_WRITER_TYPE})
	assert.Error(t, err)

	_, err = NewWriter(&WriterConfig{Type: "api"})
	assert.Error(t, err)
}
