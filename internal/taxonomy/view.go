package taxonomy

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// BucketView is a copy of one bucket's amounts in insertion order.
type BucketView struct {
	Name    string
	Amounts []decimal.Decimal
}

// CategoryView is a copy of one top-level category.
type CategoryView struct {
	Name    string
	Flat    bool
	Buckets []BucketView
}

// Categories returns every top-level category in definition order, the
// flat container last.
func (t *Taxonomy) Categories() []CategoryView {
	out := make([]CategoryView, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, t.index[key].top.view())
	}
	return out
}

// Category returns the top-level category called name.
func (t *Taxonomy) Category(name string) (CategoryView, bool) {
	e, ok := t.index[Canonical(name)]
	if !ok || e.top == nil {
		return CategoryView{}, false
	}
	return e.top.view(), true
}

// Subcategories lists the flat container's subcategory names.
func (t *Taxonomy) Subcategories() []string {
	flat := t.flat()
	out := make([]string, 0, len(flat.order))
	for _, key := range flat.order {
		out = append(out, flat.buckets[key].name)
	}
	return out
}

// Total sums every amount in every bucket.
func (t *Taxonomy) Total() decimal.Decimal {
	total := decimal.Zero
	for _, key := range t.order {
		for _, b := range t.index[key].top.buckets {
			total = total.Add(core.Sum(b.amounts))
		}
	}
	return total
}

func (c *category) view() CategoryView {
	v := CategoryView{Name: c.name, Flat: c.flat, Buckets: make([]BucketView, 0, len(c.order))}
	for _, key := range c.order {
		b := c.buckets[key]
		v.Buckets = append(v.Buckets, BucketView{
			Name:    b.name,
			Amounts: append([]decimal.Decimal(nil), b.amounts...),
		})
	}
	return v
}
