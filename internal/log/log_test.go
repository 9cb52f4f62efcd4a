package log

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jakopako/mailwalk/internal/config"
)

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != slog.Default() {
		t.Fatal("expected the default logger for an empty context")
	}

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil)).With(slog.String("sender", "news@example.com"))
	ctx := ContextWithLogger(context.Background(), l)
	LoggerFromContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "sender=news@example.com") {
		t.Fatalf("expected sender attribute in %q", buf.String())
	}
}

func TestFanout(t *testing.T) {
	var a, b bytes.Buffer
	h := fanout{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	l := slog.New(h).With(slog.String("run", "r1"))
	l.Info("only text")
	l.Error("both")

	if !strings.Contains(a.String(), "only text") || !strings.Contains(a.String(), "both") {
		t.Fatalf("text handler missed records: %q", a.String())
	}
	if strings.Contains(b.String(), "only text") {
		t.Fatalf("json handler should not receive info records: %q", b.String())
	}
	if !strings.Contains(b.String(), `"run":"r1"`) {
		t.Fatalf("json handler lost attributes: %q", b.String())
	}
}

func TestStdoutLevel(t *testing.T) {
	defer func(d, q bool) { Debug, Quiet = d, q }(Debug, Quiet)
	tests := []struct {
		debug, quiet bool
		expected     slog.Level
	}{
		{false, false, slog.LevelInfo},
		{true, false, slog.LevelDebug},
		{false, true, slog.LevelWarn},
		{true, true, slog.LevelDebug},
	}
	for _, tt := range tests {
		Debug, Quiet = tt.debug, tt.quiet
		if got := stdoutLevel(); got != tt.expected {
			t.Errorf("debug=%t quiet=%t: expected %v, got %v", tt.debug, tt.quiet, tt.expected, got)
		}
	}
}

func TestNoStdoutKeepsFile(t *testing.T) {
	defer func(n bool, l *slog.Logger, out *os.File) {
		NoStdout = n
		slog.SetDefault(l)
		os.Stdout = out
	}(NoStdout, slog.Default(), os.Stdout)

	dir := t.TempDir()
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	if err != nil {
		t.Fatal(err)
	}
	defer stdout.Close()
	os.Stdout = stdout
	NoStdout = true

	logFile := filepath.Join(dir, "mailwalk.log")
	closer := InitializeDefaultLogger(config.LogConfig{File: logFile, MaxSize: 1})
	slog.Warn("error reading logs")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	printed, err := os.ReadFile(stdout.Name())
	if err != nil {
		t.Fatal(err)
	}
	if len(printed) != 0 {
		t.Errorf("expected nothing on stdout, got %q", printed)
	}
	written, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(written), "error reading logs") {
		t.Errorf("expected the record in the log file, got %q", written)
	}
}
