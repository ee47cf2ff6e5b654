package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
	"fintrack/internal/quotes"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

const usage = `usage: fintrack <command> [flags]

Account:
  signup      create an account
Ledger (require -u and -p, or LEDGER_USER and LEDGER_PASSWORD):
  add         record a transaction
  summary     spending by category
  category    spending for one category
  report      transactions within a date range
  check       verify the ledger reconciles
  export      write the ledger to CSV or Google Sheets
Google Sheets:
  sheets-auth authorize Sheets export with a Google account
Lookups:
  price       latest stock price
  rate        exchange rates
  stocks      supported stock symbols
  currencies  supported currencies
`

func main() {
	cli.LoadEnvFile()
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type app struct {
	cfg    *config.Config
	logger *applog.Logger
	stdin  *bufio.Reader
	stdout io.Writer

	ledgerSvc *services.LedgerService
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"signup":      cmdSignup,
	"add":         cmdAdd,
	"summary":     cmdSummary,
	"category":    cmdCategory,
	"report":      cmdReport,
	"check":       cmdCheck,
	"export":      cmdExport,
	"sheets-auth": cmdSheetsAuth,
	"price":       cmdPrice,
	"rate":        cmdRate,
	"stocks":      cmdStocks,
	"currencies":  cmdCurrencies,
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), stderr)

	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	cfg, err := cli.LoadAndValidateConfig(logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()
	ctx, done := cli.StartCommand(ctx, logger, args[0])

	a := &app{cfg: cfg, logger: applog.FromContext(ctx), stdin: bufio.NewReader(stdin), stdout: stdout}
	err = cmd(ctx, a, args[1:])
	done(err)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// credentials registers -u and -p on fs, defaulting to the environment.
func credentials(fs *flag.FlagSet) (user, password *string) {
	user = fs.String("u", os.Getenv("LEDGER_USER"), "username")
	password = fs.String("p", os.Getenv("LEDGER_PASSWORD"), "password")
	return user, password
}

func (a *app) authService() (*auth.Service, func(), error) {
	repo, err := cli.InitUsers(a.logger, a.cfg.UsersDBPath)
	if err != nil {
		return nil, nil, err
	}
	return auth.NewService(repo), func() { repo.Close() }, nil
}

// login authenticates and greets the user.
func (a *app) login(ctx context.Context, user, password string) (string, error) {
	svc, closeRepo, err := a.authService()
	if err != nil {
		return "", err
	}
	defer closeRepo()

	userID, err := svc.Authenticate(ctx, user, password)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(a.stdout, "%s, %s!\n", auth.Greeting(now()), userID)
	return userID, nil
}

func (a *app) ledgerService(publisher services.Publisher) *services.LedgerService {
	files := storage.NewLedgerFiles(a.cfg.LedgerDataDir)
	return services.NewLedgerService(files, publisher, a.cfg.FlatCategory).WithClock(now)
}

func (a *app) quoteService() *quotes.Service {
	return quotes.NewService(
		quotes.NewMarketClient(a.cfg.MarketAPIURL, a.cfg.MarketAPIKey, a.cfg.LookupTimeout),
		quotes.NewCurrencyClient(a.cfg.CurrencyAPIURL, a.cfg.CurrencyAPIKey, a.cfg.LookupTimeout),
		a.cfg.QuoteCacheSize,
		a.cfg.QuoteCacheTTL,
	).WithLimiter(quotes.NewLimiter(a.cfg.QuoteRequestsPerMinute))
}

// confirm asks on stdin and accepts y or yes.
func (a *app) confirm(question string) bool {
	fmt.Fprintf(a.stdout, "%s [y/N]: ", question)
	line, _ := a.stdin.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
