package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

type fakeSheet struct {
	mu   sync.Mutex
	rows []core.Transaction
	err  error
}

func (f *fakeSheet) Append(ctx context.Context, t core.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.rows = append(f.rows, t)
	return "Transactions!A2:D2", nil
}

func (f *fakeSheet) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeEvents struct {
	mu       sync.Mutex
	seen     map[string]time.Time
	cutoffs  []time.Time
	checkErr error
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{seen: make(map[string]time.Time)}
}

func (f *fakeEvents) EventProcessed(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return false, f.checkErr
	}
	_, ok := f.seen[id]
	return ok, nil
}

func (f *fakeEvents) MarkEventProcessed(ctx context.Context, id, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[id] = at
	return nil
}

func (f *fakeEvents) CleanupProcessedEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	var n int64
	for id, at := range f.seen {
		if at.Before(cutoff) {
			delete(f.seen, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeEvents) marked(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[id]
	return ok
}

func event(id string) *amqp.TransactionCommittedEvent {
	return &amqp.TransactionCommittedEvent{
		ID:       id,
		UserID:   "alice",
		Date:     "2024-03-15",
		Category: "Food",
		Merchant: "Cafe",
		Amount:   "12.5",
	}
}

func TestHandleTransactionCommitted(t *testing.T) {
	sheet := &fakeSheet{}
	events := newFakeEvents()
	mirror := NewSheetsMirror(sheet, events, MirrorConfig{})
	ctx := context.Background()

	if err := mirror.HandleTransactionCommitted(ctx, event("evt-1")); err != nil {
		t.Fatalf("HandleTransactionCommitted() error = %v", err)
	}
	if sheet.count() != 1 {
		t.Fatalf("expected 1 row, got %d", sheet.count())
	}
	if sheet.rows[0].Merchant != "Cafe" || core.FormatAmount(sheet.rows[0].Amount) != "12.50" {
		t.Errorf("unexpected row %+v", sheet.rows[0])
	}
	if !events.marked("evt-1") {
		t.Error("event should be recorded as processed")
	}

	// Redelivery of the same event adds nothing.
	if err := mirror.HandleTransactionCommitted(ctx, event("evt-1")); err != nil {
		t.Fatalf("redelivery error = %v", err)
	}
	if sheet.count() != 1 {
		t.Errorf("redelivery added a row: %d", sheet.count())
	}

	// A distinct event with identical fields is a genuine second purchase.
	if err := mirror.HandleTransactionCommitted(ctx, event("evt-2")); err != nil {
		t.Fatalf("second event error = %v", err)
	}
	if sheet.count() != 2 {
		t.Errorf("expected 2 rows, got %d", sheet.count())
	}
}

func TestHandleTransactionCommitted_InvalidEvent(t *testing.T) {
	mirror := NewSheetsMirror(&fakeSheet{}, newFakeEvents(), MirrorConfig{})
	ctx := context.Background()

	noID := event("")
	if err := mirror.HandleTransactionCommitted(ctx, noID); !errors.Is(err, core.ErrValidation) {
		t.Errorf("missing id: expected validation error, got %v", err)
	}

	bad := event("evt-1")
	bad.Amount = "-3"
	if err := mirror.HandleTransactionCommitted(ctx, bad); !errors.Is(err, core.ErrValidation) {
		t.Errorf("negative amount: expected validation error, got %v", err)
	}

	split := event("evt-2")
	split.Merchant = "Bakery, Inc"
	if err := mirror.HandleTransactionCommitted(ctx, split); !errors.Is(err, core.ErrValidation) {
		t.Errorf("comma in merchant: expected validation error, got %v", err)
	}
}

func TestHandleTransactionCommitted_AppendFailure(t *testing.T) {
	sheet := &fakeSheet{err: errors.New("quota exceeded")}
	events := newFakeEvents()
	mirror := NewSheetsMirror(sheet, events, MirrorConfig{})

	err := mirror.HandleTransactionCommitted(context.Background(), event("evt-1"))
	if err == nil {
		t.Fatal("expected error when the sheet rejects the row")
	}
	if errors.Is(err, core.ErrValidation) {
		t.Error("append failures must stay retryable")
	}
	if events.marked("evt-1") {
		t.Error("failed event must not be recorded as processed")
	}
}

func TestHandleTransactionCommitted_EventLogFailure(t *testing.T) {
	sheet := &fakeSheet{}
	events := newFakeEvents()
	events.checkErr = errors.New("database is locked")
	mirror := NewSheetsMirror(sheet, events, MirrorConfig{})

	if err := mirror.HandleTransactionCommitted(context.Background(), event("evt-1")); err == nil {
		t.Fatal("expected error when the event log is unavailable")
	}
	if sheet.count() != 0 {
		t.Error("nothing should be written without checking the event log")
	}
}

// fakeConsumer delivers its events, then waits for cancellation.
type fakeConsumer struct {
	events    []*amqp.TransactionCommittedEvent
	delivered chan struct{}
	err       error
}

func (f *fakeConsumer) ConsumeTransactionCommitted(ctx context.Context, handler amqp.TransactionHandler) error {
	for _, e := range f.events {
		_ = handler(ctx, e)
	}
	close(f.delivered)
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRun(t *testing.T) {
	sheet := &fakeSheet{}
	events := newFakeEvents()
	mirror := NewSheetsMirror(sheet, events, MirrorConfig{CleanupInterval: 10 * time.Millisecond, Retention: time.Hour})
	fixed := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	mirror.now = func() time.Time { return fixed }

	consumer := &fakeConsumer{
		events:    []*amqp.TransactionCommittedEvent{event("evt-1"), event("evt-1"), event("evt-2")},
		delivered: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mirror.Run(ctx, consumer) }()

	<-consumer.delivered
	time.Sleep(30 * time.Millisecond)
	if !mirror.IsRunning() {
		t.Error("mirror should be running")
	}
	if err := mirror.Run(ctx, consumer); err == nil {
		t.Error("expected error when running twice")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}

	if sheet.count() != 2 {
		t.Errorf("expected 2 rows, got %d", sheet.count())
	}
	if mirror.IsRunning() {
		t.Error("mirror should not be running after Run returns")
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.cutoffs) == 0 {
		t.Fatal("expected at least one cleanup")
	}
	if want := fixed.Add(-time.Hour); !events.cutoffs[0].Equal(want) {
		t.Errorf("cleanup cutoff = %v, want %v", events.cutoffs[0], want)
	}
}

func TestRun_ConsumerFailure(t *testing.T) {
	mirror := NewSheetsMirror(&fakeSheet{}, newFakeEvents(), MirrorConfig{})
	consumer := &fakeConsumer{delivered: make(chan struct{}), err: errors.New("message channel closed")}

	err := mirror.Run(context.Background(), consumer)
	if err == nil || !errors.Is(err, consumer.err) {
		t.Errorf("expected consumer error, got %v", err)
	}
}

func TestNewSheetsMirrorDefaults(t *testing.T) {
	mirror := NewSheetsMirror(nil, nil, MirrorConfig{})
	if mirror.config != DefaultMirrorConfig() {
		t.Errorf("expected defaults, got %+v", mirror.config)
	}
}
