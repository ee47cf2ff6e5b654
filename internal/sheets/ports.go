package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter copies a user's ledger to an external destination
	// and returns a reference to what it wrote.
	TransactionExporter interface {
		Export(ctx context.Context, userID string, txs []core.Transaction) (ref string, err error)
	}

	// TransactionAppender adds a single transaction row.
	TransactionAppender interface {
		Append(ctx context.Context, t core.Transaction) (ref string, err error)
	}

	// TransactionReader reads back previously exported transactions.
	TransactionReader interface {
		ReadTransactions(ctx context.Context) ([]core.Transaction, error)
	}
)

// Header is the column layout shared by every exporter.
var Header = []string{"Date", "Category", "Merchant", "Amount"}
