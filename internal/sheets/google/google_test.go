package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"

	"fintrack/internal/core"
)

// fakeSheet serves the two Values endpoints the client uses.
type fakeSheet struct {
	mu   sync.Mutex
	rows [][]any
}

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/values/"):
		json.NewEncoder(w).Encode(map[string]any{
			"range":          "Transactions!A1:D",
			"majorDimension": "ROWS",
			"values":         f.rows,
		})
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var body struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows, body.Values...)
		json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sheet-1",
			"updates": map[string]any{
				"updatedRange": "Transactions!A1:D3",
				"updatedRows":  len(body.Values),
			},
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestClient(t *testing.T, sheet *fakeSheet) *Client {
	t.Helper()
	srv := httptest.NewServer(sheet)
	t.Cleanup(srv.Close)

	c, err := NewFromEnv(context.Background(), "sheet-1", "",
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewFromEnv() error = %v", err)
	}
	return c
}

func sampleTransactions() []core.Transaction {
	return []core.Transaction{
		{Date: core.NewDate(2024, 1, 5), Category: "Food", Merchant: "Cafe", Amount: decimal.RequireFromString("12.5")},
		{Date: core.NewDate(2024, 1, 6), Category: "Bills", Merchant: "Power", Amount: decimal.NewFromInt(60)},
	}
}

func TestExportWritesHeaderOnce(t *testing.T) {
	sheet := &fakeSheet{}
	c := newTestClient(t, sheet)
	ctx := context.Background()

	ref, err := c.Export(ctx, "alice", sampleTransactions())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if ref != "Transactions!A1:D3" {
		t.Errorf("Export() ref = %q", ref)
	}
	if len(sheet.rows) != 3 {
		t.Fatalf("sheet has %d rows, want 3", len(sheet.rows))
	}
	if sheet.rows[0][0] != "Date" || sheet.rows[1][3] != "12.50" {
		t.Errorf("unexpected rows: %v", sheet.rows)
	}

	// Second export of the same ledger adds nothing.
	if _, err := c.Export(ctx, "alice", sampleTransactions()); err != nil {
		t.Fatalf("second Export() error = %v", err)
	}
	if len(sheet.rows) != 3 {
		t.Errorf("re-export added rows: %d", len(sheet.rows))
	}

	more := append(sampleTransactions(), core.Transaction{
		Date: core.NewDate(2024, 1, 7), Category: "Food", Merchant: "Cafe", Amount: decimal.RequireFromString("12.5"),
	})
	if _, err := c.Export(ctx, "alice", more); err != nil {
		t.Fatalf("third Export() error = %v", err)
	}
	if len(sheet.rows) != 4 {
		t.Errorf("sheet has %d rows, want 4", len(sheet.rows))
	}

	got, err := c.ReadTransactions(ctx)
	if err != nil {
		t.Fatalf("ReadTransactions() error = %v", err)
	}
	if len(got) != 3 || !got[0].Equal(sampleTransactions()[0]) {
		t.Errorf("ReadTransactions() = %+v", got)
	}
}

func TestAppendKeepsDuplicates(t *testing.T) {
	sheet := &fakeSheet{}
	c := newTestClient(t, sheet)
	ctx := context.Background()
	tx := sampleTransactions()[0]

	for i := 0; i < 2; i++ {
		if _, err := c.Append(ctx, tx); err != nil {
			t.Fatalf("Append() #%d error = %v", i+1, err)
		}
	}
	if len(sheet.rows) != 3 {
		t.Fatalf("sheet has %d rows, want header plus 2", len(sheet.rows))
	}
	if sheet.rows[0][0] != "Date" || sheet.rows[2][2] != "Cafe" {
		t.Errorf("unexpected rows: %v", sheet.rows)
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	_, err := NewFromEnv(context.Background(), "  ", "Transactions")
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	for _, k := range []string{"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS", "GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE"} {
		t.Setenv(k, "")
	}

	_, err := NewFromEnv(context.Background(), "sheet-1", "")
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected credentials error, got: %v", err)
	}
}

func TestClient_NilService(t *testing.T) {
	c := &Client{spreadsheetID: "test", sheetName: "Transactions"}
	if _, err := c.Export(context.Background(), "alice", sampleTransactions()); err == nil {
		t.Error("expected error when service is not initialized")
	}
	if _, err := c.ReadTransactions(context.Background()); err == nil {
		t.Error("expected error when service is not initialized")
	}
	if _, err := c.Append(context.Background(), sampleTransactions()[0]); err == nil {
		t.Error("expected error when service is not initialized")
	}
}
