// Package taxonomy indexes spending amounts by category.
//
// A taxonomy has a closed set of top-level categories. All but one of them
// split their amounts by merchant. The remaining one, the flat container,
// holds user-registered subcategories instead, and any category name that
// is not top-level must be registered there before amounts can be recorded
// under it.
//
// Category names are matched case-insensitively; the first-seen spelling is
// kept for display. A Taxonomy is not safe for concurrent use.
package taxonomy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Kind is the variant a category name resolves to.
type Kind int

const (
	Unrecognized Kind = iota
	MerchantBucketed
	FlatSubcategory
	// FlatContainer is the container's own name. Amounts are never recorded
	// against it directly.
	FlatContainer
)

func (k Kind) String() string {
	switch k {
	case MerchantBucketed:
		return "merchant_bucketed"
	case FlatSubcategory:
		return "flat_subcategory"
	case FlatContainer:
		return "flat_container"
	default:
		return "unrecognized"
	}
}

// ErrUnrecognizedCategory is returned by RecordAmount for a name that is
// neither top-level nor a registered subcategory.
var ErrUnrecognizedCategory = errors.New("unrecognized category")

// Classification is the result of resolving a category name.
type Classification struct {
	Kind Kind
	Name string // canonical display form; empty when Unrecognized
}

// Definition lists the categories a taxonomy starts with.
type Definition struct {
	Categories    []string // merchant-bucketed, in display order
	Flat          string   // name of the flat container
	Subcategories []string // initial subcategories of the flat container
}

// Default returns the stock category set.
func Default() Definition {
	return Definition{
		Categories:    []string{"Shopping", "Transportation", "Bills", "Food", "Credit Card"},
		Flat:          "Other",
		Subcategories: []string{"Miscellaneous", "Entertainment", "Insurance/Financial"},
	}
}

type bucket struct {
	name    string
	amounts []decimal.Decimal
}

type category struct {
	name    string
	flat    bool
	order   []string
	buckets map[string]*bucket
}

func newCategory(name string, flat bool) *category {
	return &category{name: name, flat: flat, buckets: make(map[string]*bucket)}
}

// ensure returns the bucket under key, creating it with the display name.
func (c *category) ensure(key, name string) *bucket {
	if b, ok := c.buckets[key]; ok {
		return b
	}
	b := &bucket{name: name}
	c.buckets[key] = b
	c.order = append(c.order, key)
	return b
}

// entry is what a canonical name resolves to. Both fields set means the
// name collides across the two namespaces.
type entry struct {
	top *category
	sub *bucket
}

type Taxonomy struct {
	order   []string
	index   map[string]*entry
	flatKey string
}

// New builds a taxonomy from def. Duplicate names keep their first spelling.
func New(def Definition) *Taxonomy {
	t := &Taxonomy{index: make(map[string]*entry)}
	for _, name := range def.Categories {
		t.addTop(name, false)
	}
	flatName := strings.TrimSpace(def.Flat)
	if flatName == "" {
		flatName = Default().Flat
	}
	t.flatKey = Canonical(flatName)
	t.addTop(flatName, true)
	flat := t.index[t.flatKey].top
	for _, name := range def.Subcategories {
		name = strings.TrimSpace(name)
		key := Canonical(name)
		if key == "" || key == t.flatKey {
			continue
		}
		e := t.entry(key)
		if e.sub == nil {
			e.sub = flat.ensure(key, name)
		}
	}
	return t
}

// NewDefault builds the stock taxonomy with the flat container renamed to
// flatName when it is not empty.
func NewDefault(flatName string) *Taxonomy {
	def := Default()
	if strings.TrimSpace(flatName) != "" {
		def.Flat = flatName
	}
	return New(def)
}

// Canonical returns the lookup key for a category name.
func Canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (t *Taxonomy) entry(key string) *entry {
	e, ok := t.index[key]
	if !ok {
		e = &entry{}
		t.index[key] = e
	}
	return e
}

func (t *Taxonomy) addTop(name string, flat bool) {
	name = strings.TrimSpace(name)
	key := Canonical(name)
	if key == "" {
		return
	}
	e := t.entry(key)
	if e.top != nil {
		if flat {
			e.top.flat = true
		}
		return
	}
	e.top = newCategory(name, flat)
	t.order = append(t.order, key)
}

func (t *Taxonomy) flat() *category {
	return t.index[t.flatKey].top
}

// FlatName is the display name of the flat container.
func (t *Taxonomy) FlatName() string {
	return t.flat().name
}

// Classify resolves a category name. A name that is both a top-level
// category and a flat subcategory is reported as AmbiguousCategory.
func (t *Taxonomy) Classify(name string) (Classification, error) {
	key := Canonical(name)
	e, ok := t.index[key]
	if !ok || key == "" {
		return Classification{Kind: Unrecognized}, nil
	}
	switch {
	case e.top != nil && e.sub != nil:
		return Classification{}, core.NewValidationError(core.ReasonAmbiguousCategory, "category", strings.TrimSpace(name))
	case key == t.flatKey:
		return Classification{Kind: FlatContainer, Name: e.top.name}, nil
	case e.top != nil:
		return Classification{Kind: MerchantBucketed, Name: e.top.name}, nil
	case e.sub != nil:
		return Classification{Kind: FlatSubcategory, Name: e.sub.name}, nil
	}
	return Classification{Kind: Unrecognized}, nil
}

// RegisterFlatSubcategory adds name as a subcategory of the flat container.
// Registering an existing subcategory is a no-op.
func (t *Taxonomy) RegisterFlatSubcategory(name string) (Classification, error) {
	name = strings.TrimSpace(name)
	if err := core.ValidateName("category", name); err != nil {
		return Classification{}, err
	}
	c, err := t.Classify(name)
	if err != nil {
		return Classification{}, err
	}
	switch c.Kind {
	case FlatSubcategory:
		return c, nil
	case FlatContainer:
		return Classification{}, core.NewValidationError(core.ReasonReservedCategory, "category", name)
	case MerchantBucketed:
		return Classification{}, core.NewValidationError(core.ReasonAmbiguousCategory, "category", name)
	}
	key := Canonical(name)
	t.entry(key).sub = t.flat().ensure(key, name)
	return Classification{Kind: FlatSubcategory, Name: name}, nil
}

// RecordAmount routes amount to the merchant bucket of a merchant-bucketed
// category or to the subcategory bucket of a registered subcategory, in
// which case merchant is not used.
func (t *Taxonomy) RecordAmount(categoryName, merchant string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return core.NewValidationError(core.ReasonInvalidAmount, "amount", amount.String())
	}
	c, err := t.Classify(categoryName)
	if err != nil {
		return err
	}
	key := Canonical(categoryName)
	switch c.Kind {
	case MerchantBucketed:
		merchant = strings.TrimSpace(merchant)
		if merchant == "" {
			return core.NewValidationError(core.ReasonEmptyField, "merchant", merchant)
		}
		b := t.index[key].top.ensure(merchant, merchant)
		b.amounts = append(b.amounts, amount)
	case FlatSubcategory:
		b := t.index[key].sub
		b.amounts = append(b.amounts, amount)
	case FlatContainer:
		return core.NewValidationError(core.ReasonReservedCategory, "category", strings.TrimSpace(categoryName))
	default:
		return fmt.Errorf("%w: %q", ErrUnrecognizedCategory, strings.TrimSpace(categoryName))
	}
	return nil
}
