// Package types defines shared types used across the application.
package types

import "time"

// LogLevel is the severity of a log entry as shown in the log console.
// The values are the ones the stored log list has always used.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelSuccess LogLevel = "success"
	LogLevelWarn    LogLevel = "warn"
	LogLevelError   LogLevel = "error"
)

// LogEntry is one line of the execution log.
type LogEntry struct {
	Message string   `json:"message"`
	Type    LogLevel `json:"type"`
}

// Outcome describes how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped"
	OutcomeFailed    Outcome = "failed"
)

// SenderStatus holds the number of emails processed for one sender.
type SenderStatus struct {
	Sender      string `json:"sender"`
	NrProcessed int    `json:"nrProcessed"`
	NrCTAs      int    `json:"nrCtas"`
	NoMatches   bool   `json:"noMatches"`
}

// RunStatus represents the status of an automation run.
type RunStatus struct {
	RunID       string         `json:"runId"`
	Account     string         `json:"account"`
	NrProcessed int            `json:"nrProcessed"`
	Senders     []SenderStatus `json:"senders"`
	Outcome     Outcome        `json:"outcome"`
	Error       string         `json:"error,omitempty"`
	Start       time.Time      `json:"start"`
	End         time.Time      `json:"end"`
}
