package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
	"fintrack/internal/taxonomy"
)

func tx(date, category, merchant, amount string) core.Transaction {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{
		Date:     d,
		Category: category,
		Merchant: merchant,
		Amount:   decimal.RequireFromString(amount),
	}
}

func newSession(t *testing.T) *Session {
	t.Helper()
	return NewSession("alice", taxonomy.NewDefault(""))
}

func mustCommit(t *testing.T, s *Session, txs ...core.Transaction) {
	t.Helper()
	for _, x := range txs {
		_, err := s.Commit(x, nil)
		require.NoError(t, err)
	}
}

func TestStoreFilterKeepsInsertionOrder(t *testing.T) {
	s := NewStore()
	s.Append(tx("2024-01-20", "Food", "A", "1"))
	s.Append(tx("2024-01-05", "Food", "B", "2"))
	s.Append(tx("2024-03-01", "Food", "C", "3"))
	s.Append(tx("2024-01-10", "Food", "D", "4"))

	got := s.FilterByDateRange(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Merchant)
	assert.Equal(t, "B", got[1].Merchant)
	assert.Equal(t, "D", got[2].Merchant)

	all := s.All()
	all[0].Merchant = "changed"
	assert.Equal(t, "A", s.All()[0].Merchant)
	assert.Equal(t, 4, s.Len())
}

func TestCommitRoutesIntoTaxonomy(t *testing.T) {
	s := newSession(t)
	mustCommit(t, s,
		tx("2024-01-01", "Food", "Bakery", "4"),
		tx("2024-01-02", "Bills", "Power", "60"),
	)
	before := s.SummaryByCategory()

	receipt, err := s.Commit(tx("2024-01-03", "food", "Cafe", "12.50"), nil)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.MerchantBucketed, receipt.Category.Kind)
	assert.Equal(t, "Food", receipt.Category.Name)
	assert.Nil(t, receipt.Warning)

	after := s.SummaryByCategory()
	food, _ := after.Category("Food")
	cafe, ok := food.Bucket("Cafe")
	require.True(t, ok)
	assert.True(t, cafe.Equal(decimal.RequireFromString("12.50")))

	bakery, _ := food.Bucket("Bakery")
	assert.True(t, bakery.Equal(decimal.NewFromInt(4)))

	beforeBills, _ := before.Category("Bills")
	afterBills, _ := after.Category("Bills")
	assert.Equal(t, beforeBills, afterBills)
	assert.True(t, after.Total.Equal(before.Total.Add(decimal.RequireFromString("12.50"))))
}

func TestCommitUnrecognizedLeavesNoTrace(t *testing.T) {
	s := newSession(t)
	_, err := s.Commit(tx("2024-01-01", "Pets", "Vet", "10"), nil)
	assert.True(t, errors.Is(err, taxonomy.ErrUnrecognizedCategory))
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.TotalSpent().IsZero())

	_, err = s.RegisterFlatSubcategory("Pets")
	require.NoError(t, err)
	receipt, err := s.Commit(tx("2024-01-01", "Pets", "Vet", "10"), nil)
	require.NoError(t, err)
	assert.Equal(t, taxonomy.FlatSubcategory, receipt.Category.Kind)

	other, err := s.SummaryForCategory("other")
	require.NoError(t, err)
	pets, ok := other.Bucket("pets")
	require.True(t, ok)
	assert.True(t, pets.Equal(decimal.NewFromInt(10)))
}

func TestCommitPersistFailureIsWarning(t *testing.T) {
	s := newSession(t)
	boom := errors.New("disk full")

	receipt, err := s.Commit(tx("2024-01-01", "Food", "Cafe", "5"), func(core.Transaction) error {
		return boom
	})
	require.NoError(t, err)
	require.NotNil(t, receipt.Warning)
	assert.True(t, errors.Is(receipt.Warning, boom))
	assert.True(t, errors.Is(receipt.Warning, core.ErrPersistence))
	assert.Equal(t, "alice", receipt.Warning.UserID)
	assert.Equal(t, 1, s.Len())
}

func TestReconciliationInvariant(t *testing.T) {
	s := newSession(t)
	_, err := s.RegisterFlatSubcategory("Gym")
	require.NoError(t, err)

	categories := []string{"Food", "Bills", "Shopping", "Gym", "Entertainment", "Credit Card"}
	for i := 0; i < 300; i++ {
		amount := decimal.New(int64(i%97+1), -2) // 0.01 .. 0.97
		mustCommit(t, s, core.Transaction{
			Date:     core.NewDate(2024, 1+i%12, 1+i%28),
			Category: categories[i%len(categories)],
			Merchant: fmt.Sprintf("M%d", i%7),
			Amount:   amount,
		})
		require.NoError(t, s.Reconcile())
	}

	summary := s.SummaryByCategory()
	assert.True(t, s.TotalSpent().Equal(summary.Total))

	bucketSum := decimal.Zero
	for _, c := range summary.Categories {
		catSum := decimal.Zero
		for _, b := range c.Buckets {
			catSum = catSum.Add(b.Total)
		}
		assert.True(t, catSum.Equal(c.Total), c.Name)
		bucketSum = bucketSum.Add(catSum)
	}
	assert.True(t, bucketSum.Equal(s.TotalSpent()))
}

func TestSummaryForDateRange(t *testing.T) {
	s := newSession(t)
	mustCommit(t, s,
		tx("2024-02-01", "Food", "C", "30"),
		tx("2024-01-15", "Food", "B", "20"),
		tx("2024-01-01", "Food", "A", "10"),
	)

	report, err := s.SummaryForDateRange(core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31))
	require.NoError(t, err)
	assert.True(t, report.Total.Equal(decimal.NewFromInt(30)))
	require.Len(t, report.Transactions, 2)
	assert.Equal(t, "B", report.Transactions[0].Merchant)
	assert.Equal(t, "A", report.Transactions[1].Merchant)

	report, err = s.SummaryForDateRange(core.NewDate(2024, 2, 1), core.NewDate(2024, 2, 1))
	require.NoError(t, err)
	assert.Len(t, report.Transactions, 1)

	_, err = s.SummaryForDateRange(core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1))
	reason, _ := core.RejectionReason(err)
	assert.Equal(t, core.ReasonInvalidRange, reason)
}

func TestSummaryForCategoryNotFound(t *testing.T) {
	s := newSession(t)
	_, err := s.SummaryForCategory("Entertainment")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	var nf *core.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Entertainment", nf.Name)

	cs, err := s.SummaryForCategory("  credit CARD ")
	require.NoError(t, err)
	assert.Equal(t, "Credit Card", cs.Name)
	assert.True(t, cs.Total.IsZero())
}

func TestConcurrentCommitsPersistInMemoryOrder(t *testing.T) {
	s := newSession(t)
	var (
		mu      sync.Mutex
		written []core.Transaction
	)
	persist := func(x core.Transaction) error {
		mu.Lock()
		defer mu.Unlock()
		written = append(written, x)
		return nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Commit(core.Transaction{
				Date:     core.NewDate(2024, 1, 1),
				Category: "Food",
				Merchant: fmt.Sprintf("M%d", i),
				Amount:   decimal.NewFromInt(int64(i + 1)),
			}, persist)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got := s.Transactions()
	require.Len(t, written, len(got))
	for i := range got {
		assert.True(t, got[i].Equal(written[i]), "position %d", i)
	}
	require.NoError(t, s.Reconcile())
}
