package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func ledger() []core.Transaction {
	return []core.Transaction{
		{Date: core.NewDate(2024, 1, 5), Category: "Food", Merchant: "Cafe", Amount: decimal.RequireFromString("12.5")},
		{Date: core.NewDate(2024, 1, 2), Category: "Bills", Merchant: "Power \"Co\"", Amount: decimal.NewFromInt(1234)},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ledger()))

	want := "Date,Category,Merchant,Amount\n" +
		"2024-01-05,Food,Cafe,12.50\n" +
		"2024-01-02,Bills,\"Power \"\"Co\"\"\",1234.00\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSVEmptyLedger(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "Date,Category,Merchant,Amount\n", buf.String())
}

func TestCSVFileExport(t *testing.T) {
	dir := t.TempDir()
	e := NewCSVFile(dir)

	path, err := e.Export(context.Background(), "alice", ledger())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "alice_transactions.csv"), path)

	// A second export replaces the first.
	_, err = e.Export(context.Background(), "alice", ledger()[:1])
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Date,Category,Merchant,Amount\n2024-01-05,Food,Cafe,12.50\n", string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = e.Export(context.Background(), "../x", ledger())
	assert.Error(t, err)
}
