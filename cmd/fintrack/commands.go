package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/quotes"
	"fintrack/internal/services"
	gsheet "fintrack/internal/sheets/google"
)

var now = time.Now

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("signup", a.stdout)
	user, password := credentials(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	svc, closeRepo, err := a.authService()
	if err != nil {
		return err
	}
	defer closeRepo()

	if err := svc.SignUp(ctx, *user, *password); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Account created successfully!")
	return nil
}

// openLedger authenticates and loads the user's ledger, printing any load
// warnings.
func (a *app) openLedger(ctx context.Context, user, password string, withEvents bool) (*ledger.Session, func(), error) {
	userID, err := a.login(ctx, user, password)
	if err != nil {
		return nil, nil, err
	}

	var pub services.Publisher
	if withEvents {
		pub = cli.InitPublisher(a.logger, a.cfg)
	}
	svc := a.ledgerService(pub)

	sess, warnings, err := svc.OpenSession(ctx, userID)
	if err != nil {
		svc.Close()
		return nil, nil, err
	}
	for _, w := range warnings {
		fmt.Fprintf(a.stdout, "warning: %v\n", w)
	}
	a.ledgerSvc = svc
	return sess, func() { svc.Close() }, nil
}

func cmdAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("add", a.stdout)
	user, password := credentials(fs)
	category := fs.String("category", "", "category name")
	merchant := fs.String("merchant", "", "merchant name")
	amount := fs.String("amount", "", "amount, e.g. 1,000.00")
	date := fs.String("date", "", "date as YYYY-MM-DD (default today)")
	yes := fs.Bool("confirm", false, "register an unknown category without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, closeLedger, err := a.openLedger(ctx, *user, *password, true)
	if err != nil {
		return err
	}
	defer closeLedger()

	confirm := func(name string) bool {
		if *yes {
			return true
		}
		return a.confirm(fmt.Sprintf("Category %q not found. Add it as a subcategory of %q?", name, sess.FlatName()))
	}

	receipt, err := a.ledgerSvc.Submit(ctx, sess, core.Submission{
		Category: *category,
		Merchant: *merchant,
		Amount:   *amount,
		Date:     *date,
	}, confirm)
	if err != nil {
		return err
	}

	t := receipt.Transaction
	fmt.Fprintf(a.stdout, "Added %s %s at %s on %s\n", core.FormatMoney(t.Amount), receipt.Category.Name, t.Merchant, t.Date)
	if receipt.Warning != nil {
		fmt.Fprintf(a.stdout, "warning: transaction not saved to disk: %v\n", receipt.Warning)
		if err := a.ledgerSvc.RetryPersist(ctx, sess.UserID(), t); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, "Saved on retry.")
	}
	return nil
}

func cmdSummary(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("summary", a.stdout)
	user, password := credentials(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, closeLedger, err := a.openLedger(ctx, *user, *password, false)
	if err != nil {
		return err
	}
	defer closeLedger()

	summary := sess.SummaryByCategory()
	for _, c := range summary.Categories {
		printCategory(a.stdout, c)
	}
	fmt.Fprintf(a.stdout, "Total spent: %s\n", core.FormatMoney(sess.TotalSpent()))
	return nil
}

func cmdCategory(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("category", a.stdout)
	user, password := credentials(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: fintrack category [flags] NAME")
	}

	sess, closeLedger, err := a.openLedger(ctx, *user, *password, false)
	if err != nil {
		return err
	}
	defer closeLedger()

	c, err := sess.SummaryForCategory(fs.Arg(0))
	if err != nil {
		return err
	}
	printCategory(a.stdout, c)
	return nil
}

func printCategory(w io.Writer, c core.CategorySummary) {
	fmt.Fprintf(w, "%s: %s\n", c.Name, core.FormatMoney(c.Total))
	for _, b := range c.Buckets {
		fmt.Fprintf(w, "  %s: %s\n", b.Name, core.FormatMoney(b.Total))
	}
}

func cmdReport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("report", a.stdout)
	user, password := credentials(fs)
	from := fs.String("from", "", "start date YYYY-MM-DD (inclusive)")
	to := fs.String("to", "", "end date YYYY-MM-DD (inclusive)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	start, err := core.ParseDate(strings.TrimSpace(*from))
	if err != nil {
		return err
	}
	end, err := core.ParseDate(strings.TrimSpace(*to))
	if err != nil {
		return err
	}

	sess, closeLedger, err := a.openLedger(ctx, *user, *password, false)
	if err != nil {
		return err
	}
	defer closeLedger()

	report, err := sess.SummaryForDateRange(start, end)
	if err != nil {
		return err
	}
	for _, t := range report.Transactions {
		fmt.Fprintf(a.stdout, "%s  %-15s %-20s %12s\n", t.Date, t.Category, t.Merchant, core.FormatMoney(t.Amount))
	}
	fmt.Fprintf(a.stdout, "Total spent from %s to %s: %s\n", report.Start, report.End, core.FormatMoney(report.Total))
	return nil
}

func cmdCheck(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("check", a.stdout)
	user, password := credentials(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	sess, closeLedger, err := a.openLedger(ctx, *user, *password, false)
	if err != nil {
		return err
	}
	defer closeLedger()

	if err := sess.Reconcile(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "OK: %d transactions, %s\n", sess.Len(), core.FormatMoney(sess.TotalSpent()))
	return nil
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("export", a.stdout)
	user, password := credentials(fs)
	target := fs.String("to", "csv", "csv or sheets")
	if err := fs.Parse(args); err != nil {
		return err
	}

	bcfg, err := backend.ConfigFromAppConfig(a.cfg, *target)
	if err != nil {
		return err
	}
	exporter, err := backend.NewExporter(ctx, bcfg)
	if err != nil {
		return err
	}

	sess, closeLedger, err := a.openLedger(ctx, *user, *password, false)
	if err != nil {
		return err
	}
	defer closeLedger()

	ref, err := exporter.Export(ctx, sess.UserID(), sess.Transactions())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Transactions exported to %s\n", ref)
	return nil
}

// cmdSheetsAuth runs the OAuth consent flow once and saves the token used by
// "export -to sheets".
func cmdSheetsAuth(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("sheets-auth", a.stdout)
	port := fs.String("port", envOr("OAUTH_REDIRECT_PORT", "8085"), "local redirect port")
	out := fs.String("out", envOr("GOOGLE_OAUTH_TOKEN_FILE", "token.json"), "token file")
	timeout := fs.Duration("timeout", 5*time.Minute, "how long to wait for consent")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := gsheet.OAuthConfigFromEnv()
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", "localhost:"+*port)
	if err != nil {
		return fmt.Errorf("listen for redirect: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	tok, err := gsheet.Authorize(ctx, cfg, ln, a.stdout)
	if err != nil {
		return err
	}
	if err := gsheet.SaveToken(*out, tok); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Saved token to %s\n", *out)
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func cmdPrice(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("price", a.stdout)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: fintrack price SYMBOL...")
	}

	svc := a.quoteService()
	var failed int
	for _, symbol := range fs.Args() {
		price, err := svc.LatestPrice(ctx, symbol)
		if err != nil {
			failed++
			fmt.Fprintf(a.stdout, "%s: %v\n", strings.ToUpper(symbol), err)
			continue
		}
		fmt.Fprintf(a.stdout, "%s Latest Stock Price: %s\n", strings.ToUpper(symbol), core.FormatMoney(price))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, fs.NArg())
	}
	return nil
}

func cmdRate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("rate", a.stdout)
	base := fs.String("base", "USD", "base currency")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("usage: fintrack rate [-base USD] TARGET...")
	}

	var failed int
	for _, r := range a.quoteService().Rates(ctx, *base, fs.Args()) {
		if r.Err != nil {
			failed++
			fmt.Fprintf(a.stdout, "%s: %v\n", r.Target, r.Err)
			continue
		}
		fmt.Fprintf(a.stdout, "Exchange Rate 1 %s = %s %s\n", strings.ToUpper(*base), r.Rate.StringFixed(4), r.Target)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d lookups failed", failed, fs.NArg())
	}
	return nil
}

func cmdStocks(ctx context.Context, a *app, args []string) error {
	printListings(a.stdout, "Supported Stocks", quotes.SupportedStocks())
	return nil
}

func cmdCurrencies(ctx context.Context, a *app, args []string) error {
	printListings(a.stdout, "Supported Currencies", quotes.SupportedCurrencies())
	return nil
}

func printListings(w io.Writer, title string, listings []quotes.Listing) {
	fmt.Fprintf(w, "==== %s ====\n", title)
	for i, l := range listings {
		fmt.Fprintf(w, "%d. %s: %s\n", i+1, l.Code, l.Name)
	}
}
