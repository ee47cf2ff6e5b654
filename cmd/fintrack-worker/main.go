// Command fintrack-worker mirrors committed ledger transactions from the
// message queue into Google Sheets.
package main

import (
	"errors"
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout).WithComponent(applog.ComponentWorker)

	logger.Info("Starting fintrack-worker")

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		os.Exit(1)
	}
	if err := requireMirrorConfig(cfg); err != nil {
		logger.Error("Worker cannot start", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	ctx = applog.IntoContext(ctx, logger)

	// Processed event IDs live next to the credential store
	events, err := cli.InitUsers(logger, cfg.UsersDBPath)
	if err != nil {
		os.Exit(1)
	}
	defer events.Close()

	sheetsClient, err := gsheet.NewFromEnv(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewSheetsMirror(sheetsClient, events, worker.MirrorConfig{Retention: cfg.EventRetention})
	if err := mirror.Run(ctx, amqpClient); err != nil {
		logger.Error("Sheets mirror stopped", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func requireMirrorConfig(cfg *config.Config) error {
	var errs []error
	if cfg.AMQPURL == "" {
		errs = append(errs, errors.New("AMQP_URL is required"))
	}
	if cfg.GoogleSpreadsheetID == "" {
		errs = append(errs, errors.New("GOOGLE_SPREADSHEET_ID is required"))
	}
	return errors.Join(errs...)
}
