package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	applog "fintrack/internal/log"
)

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if !strings.HasPrefix(a, "run_") || len(a) != len("run_")+16 {
		t.Errorf("unexpected run id %q", a)
	}
	if a == b {
		t.Error("run ids should be unique")
	}
}

func TestStartCommand(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Level: slog.LevelDebug, Component: applog.ComponentApp, Output: &buf})

	ctx, done := StartCommand(context.Background(), logger, "summary")
	applog.FromContext(ctx).InfoContext(ctx, "inside")
	done(errors.New("login failed"))

	out := buf.String()
	for _, want := range []string{"Command started", "inside", "Command completed", "command=summary", "run_id=run_", "success=false", "duration_ms="} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "level=WARN msg=\"Command completed\"") {
		t.Errorf("failed command should complete at warn level:\n%s", out)
	}

	// every line carries the same run id
	lines := strings.Split(strings.TrimSpace(out), "\n")
	id := runIDOf(lines[0])
	for _, line := range lines {
		if runIDOf(line) != id {
			t.Errorf("run id changed within one command: %s", line)
		}
	}
}

func runIDOf(line string) string {
	i := strings.Index(line, "run_id=")
	if i < 0 {
		return ""
	}
	return strings.Fields(line[i:])[0]
}
