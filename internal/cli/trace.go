package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	applog "fintrack/internal/log"
)

// StartCommand tags the logger with a fresh run ID and the command name and
// stores it in ctx. The returned func logs completion with the duration.
func StartCommand(ctx context.Context, logger *applog.Logger, name string) (context.Context, func(error)) {
	l := logger.With(applog.FieldRunID, NewRunID(), applog.FieldCommand, name)
	ctx = applog.IntoContext(ctx, l)
	start := time.Now()

	l.DebugContext(ctx, "Command started")

	return ctx, func(err error) {
		attrs := []any{
			applog.FieldDuration, time.Since(start).Milliseconds(),
			"success", err == nil,
		}
		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, applog.FieldError, err)
		}
		l.Log(ctx, level, "Command completed", attrs...)
	}
}

func NewRunID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("run_%d", time.Now().UnixNano())
	}
	return "run_" + hex.EncodeToString(b)
}
