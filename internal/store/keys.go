package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jakopako/mailwalk/internal/types"
)

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	var token string
	_, err := s.Get(ctx, KeyAccessToken, &token)
	return token, err
}

func (s *Store) Senders(ctx context.Context) ([]string, error) {
	var senders []string
	_, err := s.Get(ctx, KeySenders, &senders)
	return senders, err
}

// Settings returns the settings document as it was received from the API,
// or nil if none is stored.
func (s *Store) Settings(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	found, err := s.Get(ctx, KeySettings, &raw)
	if err != nil || !found || string(raw) == "null" {
		return nil, err
	}
	return raw, nil
}

// SaveAccount stores the values obtained by a successful login.
func (s *Store) SaveAccount(ctx context.Context, token string, senders []string, settings json.RawMessage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if senders == nil {
		senders = []string{}
	}
	if err := set(ctx, tx, KeyAccessToken, token); err != nil {
		return err
	}
	if err := set(ctx, tx, KeySenders, senders); err != nil {
		return err
	}
	if err := set(ctx, tx, KeySettings, settings); err != nil {
		return err
	}
	return tx.Commit()
}

// IsAutomationRunning reads the run flag. set is false if the flag has
// never been written, which is different from an explicit false.
func (s *Store) IsAutomationRunning(ctx context.Context) (running bool, set bool, err error) {
	set, err = s.Get(ctx, KeyIsAutomationRunning, &running)
	return running, set, err
}

func (s *Store) SetAutomationRunning(ctx context.Context, running bool) error {
	return s.Set(ctx, KeyIsAutomationRunning, running)
}

// AppendLog appends an entry to the execution log list.
func (s *Store) AppendLog(ctx context.Context, entry types.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var raw string
	logs := []types.LogEntry{}
	err = tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, KeyExecutionLogs).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("get %s: %w", KeyExecutionLogs, err)
	default:
		if err := json.Unmarshal([]byte(raw), &logs); err != nil {
			return fmt.Errorf("decode %s: %w", KeyExecutionLogs, err)
		}
	}
	logs = append(logs, entry)
	if err := set(ctx, tx, KeyExecutionLogs, logs); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Logs(ctx context.Context) ([]types.LogEntry, error) {
	logs := []types.LogEntry{}
	_, err := s.Get(ctx, KeyExecutionLogs, &logs)
	return logs, err
}

func (s *Store) ClearLogs(ctx context.Context) error {
	return s.Set(ctx, KeyExecutionLogs, []types.LogEntry{})
}
