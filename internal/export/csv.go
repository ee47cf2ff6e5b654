// Package export writes a user's ledger as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// WriteCSV writes the header row followed by one row per transaction in the
// order given. Amounts carry two fraction digits.
func WriteCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(sheets.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range txs {
		record := []string{t.Date.String(), t.Category, t.Merchant, core.FormatAmount(t.Amount)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFile exports each user's ledger to <dir>/<userId>_transactions.csv,
// replacing any previous export.
type CSVFile struct {
	dir string
}

var _ sheets.TransactionExporter = (*CSVFile)(nil)

func NewCSVFile(dir string) *CSVFile {
	return &CSVFile{dir: dir}
}

func (e *CSVFile) Path(userID string) string {
	return filepath.Join(e.dir, userID+"_transactions.csv")
}

func (e *CSVFile) Export(ctx context.Context, userID string, txs []core.Transaction) (string, error) {
	if !core.ValidUserID(userID) {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	path := e.Path(userID)
	tmp, err := os.CreateTemp(e.dir, ".export-*.csv")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, txs); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("move export file: %w", err)
	}

	slog.InfoContext(ctx, "Transactions exported", "user_id", userID, "path", path, "rows", len(txs))
	return path, nil
}
