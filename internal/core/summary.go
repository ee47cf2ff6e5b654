package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// BucketTotal is the subtotal of one merchant or subcategory bucket.
type BucketTotal struct {
	Name  string
	Total decimal.Decimal
}

// CategorySummary is the breakdown of one top-level category. For the flat
// container the buckets are subcategories, otherwise merchants.
type CategorySummary struct {
	Name    string
	Flat    bool
	Total   decimal.Decimal
	Buckets []BucketTotal
}

// Bucket returns the subtotal for the named bucket.
func (c CategorySummary) Bucket(name string) (decimal.Decimal, bool) {
	for _, b := range c.Buckets {
		if b.Name == name || (c.Flat && strings.EqualFold(b.Name, name)) {
			return b.Total, true
		}
	}
	return decimal.Zero, false
}

// Summary is the per-category breakdown of a whole ledger.
type Summary struct {
	Total      decimal.Decimal
	Categories []CategorySummary
}

// Category finds a category summary by case-insensitive name.
func (s Summary) Category(name string) (CategorySummary, bool) {
	for _, c := range s.Categories {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return c, true
		}
	}
	return CategorySummary{}, false
}

// RangeReport lists the transactions dated within [Start, End] in
// insertion order.
type RangeReport struct {
	Start        Date
	End          Date
	Total        decimal.Decimal
	Transactions []Transaction
}
