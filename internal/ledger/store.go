package ledger

import "fintrack/internal/core"

// Store is the append-only, insertion-ordered transaction log.
type Store struct {
	records []core.Transaction
}

func NewStore() *Store {
	return &Store{}
}

// Append adds t to the end of the log.
func (s *Store) Append(t core.Transaction) {
	s.records = append(s.records, t)
}

// All returns a copy of the log in insertion order.
func (s *Store) All() []core.Transaction {
	return append([]core.Transaction(nil), s.records...)
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// FilterByDateRange returns records with start <= date <= end, in
// insertion order.
func (s *Store) FilterByDateRange(start, end core.Date) []core.Transaction {
	var out []core.Transaction
	for _, t := range s.records {
		if t.Date.Within(start, end) {
			out = append(out, t)
		}
	}
	return out
}
