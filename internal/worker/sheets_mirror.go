// Package worker mirrors committed ledger transactions into Google Sheets as
// they are announced on the message queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/sheets"
)

// EventLog remembers which events have already been mirrored so redelivered
// messages do not produce duplicate rows.
type EventLog interface {
	EventProcessed(ctx context.Context, id string) (bool, error)
	MarkEventProcessed(ctx context.Context, id, userID string, at time.Time) error
	CleanupProcessedEvents(ctx context.Context, cutoff time.Time) (int64, error)
}

// Consumer delivers committed-transaction events until ctx is done.
type Consumer interface {
	ConsumeTransactionCommitted(ctx context.Context, handler amqp.TransactionHandler) error
}

// MirrorConfig holds configuration for the sheets mirror
type MirrorConfig struct {
	// CleanupInterval is how often old event IDs are forgotten (default: 1h)
	CleanupInterval time.Duration

	// Retention is how long a processed event ID is remembered (default: 30 days)
	Retention time.Duration
}

func DefaultMirrorConfig() MirrorConfig {
	return MirrorConfig{
		CleanupInterval: time.Hour,
		Retention:       30 * 24 * time.Hour,
	}
}

type SheetsMirror struct {
	sheet  sheets.TransactionAppender
	events EventLog
	config MirrorConfig
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

func NewSheetsMirror(sheet sheets.TransactionAppender, events EventLog, config MirrorConfig) *SheetsMirror {
	defaults := DefaultMirrorConfig()
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	return &SheetsMirror{
		sheet:  sheet,
		events: events,
		config: config,
		now:    time.Now,
	}
}

// HandleTransactionCommitted appends the event's transaction to the sheet
// unless the event was mirrored before. Events that cannot describe a valid
// transaction fail with an error matching core.ErrValidation.
func (m *SheetsMirror) HandleTransactionCommitted(ctx context.Context, msg *amqp.TransactionCommittedEvent) error {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)

	if msg.ID == "" {
		return core.NewValidationError(core.ReasonEmptyField, "id", "")
	}
	t, err := msg.Transaction()
	if err != nil {
		return fmt.Errorf("event %s: %w: %w", msg.ID, core.ErrValidation, err)
	}

	done, err := m.events.EventProcessed(ctx, msg.ID)
	if err != nil {
		return fmt.Errorf("check event %s: %w", msg.ID, err)
	}
	if done {
		logger.DebugContext(ctx, "Event already mirrored, skipping", "id", msg.ID)
		return nil
	}

	ref, err := m.sheet.Append(ctx, t)
	if err != nil {
		return fmt.Errorf("append to sheets: %w", err)
	}

	if err := m.events.MarkEventProcessed(ctx, msg.ID, msg.UserID, m.now()); err != nil {
		// The row is written; a redelivery would duplicate it.
		logger.ErrorContext(ctx, "Failed to record mirrored event",
			"id", msg.ID,
			applog.FieldError, err)
	}

	fields := applog.NewFields().
		WithUser(msg.UserID).
		WithOperation(applog.OpMirror).
		WithTransaction(msg.Date, msg.Category, msg.Merchant, msg.Amount)
	logger.WithFields(fields).InfoContext(ctx, "Transaction mirrored to sheet", "id", msg.ID, "sheets_ref", ref)
	return nil
}

// Run consumes events and periodically forgets old event IDs. It returns nil
// once ctx is cancelled, or the consumer's error if consumption stops first.
func (m *SheetsMirror) Run(ctx context.Context, consumer Consumer) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("sheets mirror is already running")
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- consumer.ConsumeTransactionCommitted(ctx, m.HandleTransactionCommitted)
	}()

	applog.FromContext(ctx).WithComponent(applog.ComponentWorker).InfoContext(ctx, "Sheets mirror started",
		"cleanup_interval", m.config.CleanupInterval,
		"retention", m.config.Retention)

	m.cleanup(ctx)
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-consumeErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				err = errors.New("consumer stopped")
			}
			return fmt.Errorf("consume transaction events: %w", err)
		case <-ticker.C:
			m.cleanup(ctx)
		}
	}
}

func (m *SheetsMirror) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *SheetsMirror) cleanup(ctx context.Context) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentWorker)
	n, err := m.events.CleanupProcessedEvents(ctx, m.now().Add(-m.config.Retention))
	if err != nil {
		logger.ErrorContext(ctx, "Failed to clean up processed events", applog.FieldOperation, applog.OpCleanup, applog.FieldError, err)
		return
	}
	if n > 0 {
		logger.InfoContext(ctx, "Forgot old processed events", applog.FieldOperation, applog.OpCleanup, "count", n)
	}
}
