// Package backend selects where a ledger export is written.
package backend

import (
	"context"
	"fmt"
	"strings"

	"fintrack/internal/config"
	"fintrack/internal/export"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
)

// Type names an export destination.
type Type string

const (
	CSV    Type = "csv"
	Sheets Type = "sheets"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the type is a known destination
func (t Type) IsValid() bool {
	switch t {
	case CSV, Sheets:
		return true
	default:
		return false
	}
}

// Config holds what each destination needs.
type Config struct {
	Type Type

	// CSV specific
	ExportDir string

	// Google Sheets specific
	GoogleSpreadsheetID string
	GoogleSheetName     string
}

// ConfigFromAppConfig builds the destination config for name.
func ConfigFromAppConfig(cfg *config.Config, name string) (Config, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if !t.IsValid() {
		return Config{}, fmt.Errorf("unknown export target %q: use csv or sheets", name)
	}
	return Config{
		Type:                t,
		ExportDir:           cfg.ExportDir,
		GoogleSpreadsheetID: cfg.GoogleSpreadsheetID,
		GoogleSheetName:     cfg.GoogleSheetName,
	}, nil
}

// NewExporter creates the exporter for cfg.Type.
func NewExporter(ctx context.Context, cfg Config) (sheets.TransactionExporter, error) {
	switch cfg.Type {
	case CSV:
		return export.NewCSVFile(cfg.ExportDir), nil
	case Sheets:
		client, err := gsheet.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			return nil, fmt.Errorf("create sheets exporter: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported export target: %s", cfg.Type)
	}
}
