package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

// Aggregations are recomputed on every call and never cached.

// TotalSpent sums every transaction in the log.
func (s *Session) TotalSpent() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Sum(amountsOf(s.store.records))
}

// SummaryByCategory breaks spending down by category, then by merchant or,
// for the flat container, by subcategory. Every category is listed, empty
// ones with a zero total.
func (s *Session) SummaryByCategory() core.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := core.Summary{Total: decimal.Zero}
	for _, c := range s.taxonomy.Categories() {
		cs := summarize(c)
		summary.Total = summary.Total.Add(cs.Total)
		summary.Categories = append(summary.Categories, cs)
	}
	return summary
}

// SummaryForCategory breaks down a single top-level category.
func (s *Session) SummaryForCategory(name string) (core.CategorySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.taxonomy.Category(name)
	if !ok {
		return core.CategorySummary{}, &core.NotFoundError{Kind: "category", Name: strings.TrimSpace(name)}
	}
	return summarize(c), nil
}

// SummaryForDateRange lists the transactions dated within [start, end] in
// insertion order, with their total.
func (s *Session) SummaryForDateRange(start, end core.Date) (core.RangeReport, error) {
	if start.After(end.Time) {
		return core.RangeReport{}, core.NewValidationError(core.ReasonInvalidRange, "range",
			fmt.Sprintf("%s..%s", start, end))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.store.FilterByDateRange(start, end)
	return core.RangeReport{
		Start:        start,
		End:          end,
		Total:        core.Sum(amountsOf(matched)),
		Transactions: matched,
	}, nil
}

func summarize(c taxonomy.CategoryView) core.CategorySummary {
	cs := core.CategorySummary{Name: c.Name, Flat: c.Flat, Total: decimal.Zero}
	for _, b := range c.Buckets {
		subtotal := core.Sum(b.Amounts)
		cs.Buckets = append(cs.Buckets, core.BucketTotal{Name: b.Name, Total: subtotal})
		cs.Total = cs.Total.Add(subtotal)
	}
	return cs
}

func amountsOf(records []core.Transaction) []decimal.Decimal {
	out := make([]decimal.Decimal, len(records))
	for i, t := range records {
		out[i] = t.Amount
	}
	return out
}
