package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fintrack/internal/core"
	ports "fintrack/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var (
	_ ports.TransactionExporter = (*Client)(nil)
	_ ports.TransactionAppender = (*Client)(nil)
	_ ports.TransactionReader   = (*Client)(nil)
)

// New wraps an existing Sheets service. sheetName defaults to "Transactions".
func New(svc *gsheet.Service, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		sheetName = "Transactions"
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

// NewFromEnv creates a Sheets client. User OAuth credentials
// (GOOGLE_OAUTH_CLIENT_* plus GOOGLE_OAUTH_TOKEN_*) take precedence over a
// service account (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS).
func NewFromEnv(ctx context.Context, spreadsheetID, sheetName string, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, sheetName)
}

// newSheetsService initializes a Sheets Service. Extra options, when given,
// replace the credential lookup.
func newSheetsService(ctx context.Context, opts ...goption.ClientOption) (*gsheet.Service, error) {
	if len(opts) > 0 {
		return gsheet.NewService(ctx, opts...)
	}
	if oauthConfigured() {
		return newOAuthSheetsService(ctx)
	}

	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Export appends the transactions that are not already in the sheet. Rows
// already present are matched as a multiset, so exporting twice adds
// nothing. The header row is written when the sheet is empty.
func (c *Client) Export(ctx context.Context, userID string, txs []core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	values, err := c.readValues(ctx)
	if err != nil {
		return "", err
	}
	existing, _ := parseRows(values)

	seen := make(map[string]int, len(existing))
	for _, t := range existing {
		seen[core.FormatRecord(t)]++
	}

	var rows [][]any
	if len(values) == 0 {
		rows = append(rows, toRow(ports.Header))
	}
	for _, t := range txs {
		key := core.FormatRecord(t)
		if seen[key] > 0 {
			seen[key]--
			continue
		}
		rows = append(rows, transactionRow(t))
	}
	if len(rows) == 0 {
		slog.InfoContext(ctx, "Sheet already up to date", "user_id", userID, "sheet", c.sheetName)
		return fmt.Sprintf("%s (no new rows)", c.sheetName), nil
	}

	ref, err := c.appendRows(ctx, rows)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Transactions exported to sheet",
		"user_id", userID,
		"rows", len(rows),
		"range", ref)
	return ref, nil
}

// Append adds one transaction without checking for duplicates, writing the
// header first when the sheet is empty.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName+"!A1:D1").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read header: %w", err)
	}

	var rows [][]any
	if len(resp.Values) == 0 {
		rows = append(rows, toRow(ports.Header))
	}
	rows = append(rows, transactionRow(t))
	return c.appendRows(ctx, rows)
}

func (c *Client) appendRows(ctx context.Context, rows [][]any) (string, error) {
	rng := fmt.Sprintf("%s!A:D", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// ReadTransactions returns the rows of the sheet that parse as transactions.
func (c *Client) ReadTransactions(ctx context.Context) ([]core.Transaction, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	values, err := c.readValues(ctx)
	if err != nil {
		return nil, err
	}
	txs, skipped := parseRows(values)
	if skipped > 0 {
		slog.WarnContext(ctx, "Skipped unreadable sheet rows", "sheet", c.sheetName, "skipped", skipped)
	}
	return txs, nil
}

func (c *Client) readValues(ctx context.Context) ([][]any, error) {
	rng := fmt.Sprintf("%s!A:D", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

func transactionRow(t core.Transaction) []any {
	return []any{t.Date.String(), t.Category, t.Merchant, core.FormatAmount(t.Amount)}
}

func toRow(cells []string) []any {
	row := make([]any, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return row
}
