// Package ledger holds one user's in-memory ledger: the transaction log,
// the category taxonomy derived from it, and the read-only aggregations
// over both.
//
// A Session is the explicit state every ingestion and aggregation call
// operates on. Sessions for different users share nothing.
package ledger

import (
	"errors"
	"fmt"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

// ErrOutOfBalance is returned by Reconcile when the taxonomy and the log
// disagree.
var ErrOutOfBalance = errors.New("taxonomy and transaction log do not reconcile")

// PersistFunc durably records a transaction that was just committed in
// memory.
type PersistFunc func(core.Transaction) error

// Receipt describes a committed transaction. Warning is set when the
// in-memory commit succeeded but persistence failed, leaving memory ahead
// of disk.
type Receipt struct {
	Transaction core.Transaction
	Category    taxonomy.Classification
	Warning     *core.PersistenceWarning
}

type Session struct {
	mu       sync.RWMutex
	userID   string
	store    *Store
	taxonomy *taxonomy.Taxonomy
}

// NewSession creates an empty ledger for userID over tax. The session takes
// ownership of tax.
func NewSession(userID string, tax *taxonomy.Taxonomy) *Session {
	if tax == nil {
		tax = taxonomy.NewDefault("")
	}
	return &Session{
		userID:   userID,
		store:    NewStore(),
		taxonomy: tax,
	}
}

// UserID is the owner of this ledger.
func (s *Session) UserID() string {
	return s.userID
}

// Classify resolves a category name against the session taxonomy.
func (s *Session) Classify(name string) (taxonomy.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taxonomy.Classify(name)
}

// RegisterFlatSubcategory adds name under the flat container.
func (s *Session) RegisterFlatSubcategory(name string) (taxonomy.Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taxonomy.RegisterFlatSubcategory(name)
}

// FlatName is the display name of the flat container.
func (s *Session) FlatName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taxonomy.FlatName()
}

// Subcategories lists the flat container's subcategories.
func (s *Session) Subcategories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taxonomy.Subcategories()
}

// Commit records t in the taxonomy and appends it to the log, both or
// neither. When persist is non-nil it runs before the session lock is
// released, so the durable order always matches the in-memory order. A
// persist failure is reported in the receipt and does not undo the commit.
func (s *Session) Commit(t core.Transaction, persist PersistFunc) (Receipt, error) {
	if err := t.Validate(); err != nil {
		return Receipt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	class, err := s.taxonomy.Classify(t.Category)
	if err != nil {
		return Receipt{}, err
	}
	if err := s.taxonomy.RecordAmount(t.Category, t.Merchant, t.Amount); err != nil {
		return Receipt{}, err
	}
	s.store.Append(t)

	receipt := Receipt{Transaction: t, Category: class}
	if persist != nil {
		if err := persist(t); err != nil {
			var w *core.PersistenceWarning
			if !errors.As(err, &w) {
				w = &core.PersistenceWarning{UserID: s.userID, Op: "append", Err: err}
			}
			receipt.Warning = w
		}
	}
	return receipt, nil
}

// Transactions returns the log in insertion order.
func (s *Session) Transactions() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.All()
}

// Len returns the number of committed transactions.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Len()
}

// Reconcile checks that the taxonomy holds exactly the amounts of the log.
func (s *Session) Reconcile() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logTotal := core.Sum(amountsOf(s.store.records))
	taxTotal := s.taxonomy.Total()
	if !logTotal.Equal(taxTotal) {
		return fmt.Errorf("%w: log %s, taxonomy %s", ErrOutOfBalance, logTotal, taxTotal)
	}
	return nil
}
