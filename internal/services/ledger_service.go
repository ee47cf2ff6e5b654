package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/taxonomy"
)

// LedgerStore is the durable side of a user's ledger.
type LedgerStore interface {
	Load(ctx context.Context, userID string) (storage.LoadResult, error)
	Append(ctx context.Context, userID string, t core.Transaction) error
}

// Publisher announces committed transactions. Failures never affect the
// ledger.
type Publisher interface {
	PublishTransactionCommitted(ctx context.Context, userID string, t core.Transaction) error
}

// ConfirmFunc asks the user whether an unrecognized category should be
// registered under the flat container.
type ConfirmFunc func(category string) bool

// LedgerService opens per-user sessions from durable storage and admits new
// transactions into them.
type LedgerService struct {
	files     LedgerStore
	publisher Publisher
	flatName  string
	now       func() time.Time
}

func NewLedgerService(files LedgerStore, publisher Publisher, flatName string) *LedgerService {
	return &LedgerService{
		files:     files,
		publisher: publisher,
		flatName:  flatName,
		now:       time.Now,
	}
}

// WithClock replaces the source of "today" for blank submission dates.
func (s *LedgerService) WithClock(now func() time.Time) *LedgerService {
	s.now = now
	return s
}

// OpenSession rebuilds userID's ledger from storage. Categories the default
// taxonomy does not know are registered as flat subcategories. Records that
// cannot be replayed are skipped and returned as warnings next to the
// load warnings.
func (s *LedgerService) OpenSession(ctx context.Context, userID string) (*ledger.Session, []*core.PersistenceWarning, error) {
	res, err := s.files.Load(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}

	logger := applog.FromContext(ctx).WithComponent(applog.ComponentLedger)
	warnings := res.Warnings
	sess := ledger.NewSession(userID, taxonomy.NewDefault(s.flatName))

	for _, t := range res.Transactions {
		if err := replay(sess, t); err != nil {
			warnings = append(warnings, &core.PersistenceWarning{UserID: userID, Op: applog.OpLoad, Err: err})
		}
	}

	for _, w := range warnings {
		logger.WarnContext(ctx, "Ledger record skipped",
			applog.FieldUserID, userID,
			applog.FieldLine, w.Line,
			applog.FieldError, w.Err)
	}
	logger.InfoContext(ctx, "Session opened",
		applog.FieldUserID, userID,
		"transactions", sess.Len(),
		"warnings", len(warnings))

	return sess, warnings, nil
}

func replay(sess *ledger.Session, t core.Transaction) error {
	class, err := sess.Classify(t.Category)
	if err != nil {
		return err
	}
	switch class.Kind {
	case taxonomy.FlatContainer:
		return core.NewValidationError(core.ReasonReservedCategory, "category", t.Category)
	case taxonomy.Unrecognized:
		if _, err := sess.RegisterFlatSubcategory(t.Category); err != nil {
			return err
		}
	}
	_, err = sess.Commit(t, nil)
	return err
}

// Submit validates raw input and commits it to sess. Validation runs in
// order: empty fields, amount, date, then category. An unrecognized category
// is registered only if confirm approves it; a nil confirm declines.
//
// A nil error means the transaction is in memory. Receipt.Warning is set
// when it could not be written to storage; RetryPersist can write it later.
func (s *LedgerService) Submit(ctx context.Context, sess *ledger.Session, in core.Submission, confirm ConfirmFunc) (ledger.Receipt, error) {
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentIngest)

	t, err := core.ParseSubmission(in, core.DateOf(s.now()))
	if err != nil {
		return ledger.Receipt{}, s.reject(ctx, logger, sess, err)
	}

	class, err := sess.Classify(t.Category)
	if err != nil {
		return ledger.Receipt{}, s.reject(ctx, logger, sess, err)
	}
	switch class.Kind {
	case taxonomy.FlatContainer:
		return ledger.Receipt{}, s.reject(ctx, logger, sess,
			core.NewValidationError(core.ReasonReservedCategory, "category", t.Category))
	case taxonomy.Unrecognized:
		if confirm == nil || !confirm(t.Category) {
			return ledger.Receipt{}, s.reject(ctx, logger, sess,
				core.NewValidationError(core.ReasonUserDeclined, "category", t.Category))
		}
		if _, err := sess.RegisterFlatSubcategory(t.Category); err != nil {
			return ledger.Receipt{}, s.reject(ctx, logger, sess, err)
		}
		logger.InfoContext(ctx, "Subcategory registered",
			applog.FieldUserID, sess.UserID(),
			applog.FieldCategory, t.Category,
			"container", sess.FlatName())
	}

	receipt, err := sess.Commit(t, func(tx core.Transaction) error {
		return s.files.Append(ctx, sess.UserID(), tx)
	})
	if err != nil {
		return ledger.Receipt{}, s.reject(ctx, logger, sess, err)
	}

	fields := applog.NewFields().
		WithUser(sess.UserID()).
		WithTransaction(t.Date.String(), receipt.Category.Name, t.Merchant, t.Amount.String())
	if receipt.Warning != nil {
		logger.WarnContext(ctx, "Transaction committed in memory only",
			fields.WithError(receipt.Warning).ToSlice()...)
	} else {
		logger.InfoContext(ctx, "Transaction committed", fields.ToSlice()...)
	}

	// Publish after the commit; the ledger does not depend on it.
	if err := s.publish(ctx, sess.UserID(), t); err != nil {
		logger.ErrorContext(ctx, "Failed to publish transaction event",
			applog.FieldUserID, sess.UserID(),
			applog.FieldError, err)
	}

	return receipt, nil
}

// RetryPersist appends a transaction whose earlier append failed.
func (s *LedgerService) RetryPersist(ctx context.Context, userID string, t core.Transaction) error {
	if err := s.files.Append(ctx, userID, t); err != nil {
		return &core.PersistenceWarning{UserID: userID, Op: applog.OpAppend, Err: err}
	}
	return nil
}

func (s *LedgerService) reject(ctx context.Context, logger *applog.Logger, sess *ledger.Session, err error) error {
	reason, _ := core.RejectionReason(err)
	logger.DebugContext(ctx, "Submission rejected",
		applog.FieldUserID, sess.UserID(),
		applog.FieldReason, string(reason),
		applog.FieldError, err)
	return err
}

func (s *LedgerService) publish(ctx context.Context, userID string, t core.Transaction) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event")
		return nil
	}
	return s.publisher.PublishTransactionCommitted(ctx, userID, t)
}

// Close releases the publisher when it holds a connection.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	return errors.Join(errs...)
}
