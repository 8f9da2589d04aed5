package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/app"
	"github.com/dvloznov/budget-bot/internal/config"
	"github.com/dvloznov/budget-bot/internal/domain"
	"github.com/dvloznov/budget-bot/internal/gcsuploader"
	"github.com/dvloznov/budget-bot/internal/ledger"
	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/internal/notionsync"
	"github.com/dvloznov/budget-bot/internal/pipeline"
)

var (
	title = color.New(color.BgGreen, color.FgBlack)
	faint = color.New(color.FgHiBlack)
	errc  = color.New(color.BgRed, color.FgWhite).PrintfFunc()
)

type command struct {
	usage string
	help  string
	// offline commands do not connect to Google Cloud.
	offline bool
	run     func(ctx context.Context, a *app.App, args []string) error
}

var commands = map[string]command{
	"parse":          {"parse <text>", "Parse a message like '35 евро продукты'", true, runParse},
	"categorize":     {"categorize <user> <text>", "Run the categorization chain on a description", false, runCategorize},
	"record":         {"record <user> <text>", "Parse, categorize and store a transaction", false, runRecord},
	"confirm":        {"confirm <user> <category-id> <description>", "Confirm a category choice and remember it", false, runConfirm},
	"suggest":        {"suggest <user> <description>", "Ask category memory for a suggestion", false, runSuggest},
	"remember":       {"remember <user> <category-id> <description>", "Store a description to category association", false, runRemember},
	"explain":        {"explain <user> <description>", "Score every remembered pattern against a description", false, runExplain},
	"patterns":       {"patterns <user>", "List remembered patterns", false, runPatterns},
	"cleanup":        {"cleanup [user]", "Remove stale category memory", false, runCleanup},
	"list":           {"list <user> [from] [to]", "List transactions, dates as YYYY-MM-DD", false, runList},
	"summary":        {"summary <user> [from] [to]", "Totals per currency and category", false, runSummary},
	"limit":          {"limit <user> [set <category-id> <amount> [period] | delete <id>]", "List, set or delete spending limits", false, runLimit},
	"upload-receipt": {"upload-receipt <user> <file>", "Upload a receipt photo and process it", false, runUploadReceipt},
	"export-notion":  {"export-notion [-- -dry-run] <user> [from] [to]", "Export transactions to the Notion database", false, runExportNotion},
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		printUsage()
		return
	}

	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		errc("Unknown command: %s", name)
		fmt.Println()
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(name, os.Args[2:], os.Getenv)
	if err != nil {
		errc("%v", err)
		fmt.Println()
		os.Exit(2)
	}

	log := logger.New(cfg.LogLevel).With().Str("component", "cli").Logger()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := &app.App{Config: cfg, Log: log}
	if !cmd.offline {
		a, err = app.New(ctx, cfg, log)
		if err != nil {
			fail(log, err)
		}
		defer a.Close()
	}

	if err := cmd.run(ctx, a, cfg.Args); err != nil {
		fail(log, err)
	}
}

func fail(log zerolog.Logger, err error) {
	log.Debug().Err(err).Msg("Command failed")
	errc("Error: %v", err)
	fmt.Println()
	os.Exit(1)
}

func printUsage() {
	title.Println("budget-bot CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [flags] <args>")
	fmt.Println("\nCommands:")
	for _, name := range []string{
		"parse", "categorize", "record", "confirm", "suggest", "explain", "remember",
		"patterns", "cleanup", "list", "summary", "limit", "upload-receipt", "export-notion",
	} {
		c := commands[name]
		fmt.Printf("  %-46s %s\n", c.usage, faint.Sprint(c.help))
	}
	fmt.Println("\nFlags are shared with the api binary; run 'cli <command> -h' to list them.")
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: cli %s", usage)
	}
	return nil
}

func runParse(_ context.Context, a *app.App, args []string) error {
	if err := need(args, 1, "parse <text>"); err != nil {
		return err
	}
	parsed, ok := a.Config.Tuning.Parser().Parse(strings.Join(args, " "))
	if !ok {
		return fmt.Errorf("not a transaction: %q", strings.Join(args, " "))
	}
	kind := "expense"
	if parsed.IsIncome {
		kind = "income"
	}
	title.Printf(" %s %s ", parsed.Amount.StringFixed(2), parsed.Currency)
	fmt.Printf(" %s  %s\n", kind, parsed.Description)
	return nil
}

func runCategorize(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 2, "categorize <user> <text>"); err != nil {
		return err
	}
	res, err := a.Ledger.Categorize(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if res == nil {
		faint.Println("no category")
		return nil
	}
	title.Printf(" %s ", res.CategoryName)
	fmt.Printf(" %.2f via %s auto=%v\n", res.Confidence, res.Source, res.AutoApply)
	return nil
}

func runRecord(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 2, "record <user> <text>"); err != nil {
		return err
	}
	rec, err := a.Ledger.Record(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	tx := rec.Transaction
	title.Printf(" %s %s ", tx.SignedAmount().StringFixed(2), tx.Currency)
	fmt.Printf(" %s  %s\n", tx.Description, faint.Sprint(tx.ID))
	switch {
	case tx.CategoryName != "":
		fmt.Printf("Category: %s (%s)\n", tx.CategoryName, tx.CategorySource)
	case rec.Suggestion != nil:
		fmt.Printf("Suggested: %s (%.2f), confirm with: cli confirm %s <category-id> %s\n",
			rec.Suggestion.CategoryName, rec.Suggestion.Confidence, args[0], tx.Description)
	}
	for _, w := range rec.Warnings {
		printLimit(w)
	}
	return nil
}

func runConfirm(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 3, "confirm <user> <category-id> <description>"); err != nil {
		return err
	}
	if err := a.Ledger.Confirm(ctx, args[0], strings.Join(args[2:], " "), args[1]); err != nil {
		return err
	}
	fmt.Println("Remembered.")
	return nil
}

func runSuggest(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 2, "suggest <user> <description>"); err != nil {
		return err
	}
	s, err := a.Matcher.Suggest(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if s == nil {
		faint.Println("no suggestion")
		return nil
	}
	title.Printf(" %s ", s.CategoryID)
	fmt.Printf(" score %.3f auto=%v pattern %q\n", s.Score, s.AutoApply, s.Pattern)
	return nil
}

func runExplain(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 2, "explain <user> <description>"); err != nil {
		return err
	}
	userID, desc := args[0], strings.Join(args[1:], " ")
	recs, err := a.Matcher.Patterns(ctx, userID)
	if err != nil {
		return err
	}

	fmt.Printf("Chain: %s\n", strings.Join(a.Chain.Strategies(), " -> "))
	fmt.Printf("Normalized: %q\n", a.Matcher.Normalizer().Normalize(desc))

	sort.Slice(recs, func(i, j int) bool { return a.Matcher.Score(desc, recs[i]) > a.Matcher.Score(desc, recs[j]) })
	params := a.Config.Tuning.MatcherParams()
	for _, r := range recs {
		score := a.Matcher.Score(desc, r)
		line := fmt.Sprintf("  %.3f  %-30s %s", score, r.Pattern, r.CategoryID)
		switch {
		case score >= params.AutoApplyThreshold:
			color.Green("%s", line)
		case score > params.MinConfidence:
			color.Yellow("%s", line)
		default:
			faint.Println(line)
		}
	}
	return nil
}

func runRemember(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 3, "remember <user> <category-id> <description>"); err != nil {
		return err
	}
	if err := a.Matcher.Remember(ctx, args[0], strings.Join(args[2:], " "), args[1], 1.0); err != nil {
		return err
	}
	fmt.Println("Remembered.")
	return nil
}

func runPatterns(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 1, "patterns <user>"); err != nil {
		return err
	}
	recs, err := a.Matcher.Patterns(ctx, args[0])
	if err != nil {
		return err
	}
	title.Printf(" %d patterns ", len(recs))
	fmt.Println()
	for _, r := range recs {
		fmt.Printf("  %-30s %-20s conf %.2f  used %d  %s\n",
			r.Pattern, r.CategoryID, r.Confidence, r.UsageCount, faint.Sprint(r.LastUsed.Format(time.DateOnly)))
	}
	return nil
}

func runCleanup(ctx context.Context, a *app.App, args []string) error {
	var (
		n   int64
		err error
	)
	if len(args) > 0 {
		n, err = a.Matcher.Cleanup(ctx, args[0])
	} else {
		n, err = a.Matcher.CleanupAll(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d stale records.\n", n)
	return nil
}

// dateRange reads optional [from] [to] arguments. The default is the last
// 30 days; to is inclusive.
func dateRange(args []string) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from, to := now.AddDate(0, 0, -30), now
	var err error
	if len(args) > 0 {
		if from, err = time.Parse(time.DateOnly, args[0]); err != nil {
			return from, to, fmt.Errorf("invalid from date %q: %w", args[0], err)
		}
	}
	if len(args) > 1 {
		if to, err = time.Parse(time.DateOnly, args[1]); err != nil {
			return from, to, fmt.Errorf("invalid to date %q: %w", args[1], err)
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("to date is before from date")
	}
	return from, to, nil
}

func runList(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 1, "list <user> [from] [to]"); err != nil {
		return err
	}
	from, to, err := dateRange(args[1:])
	if err != nil {
		return err
	}
	txs, err := a.Ledger.List(ctx, args[0], from, to)
	if err != nil {
		return err
	}
	title.Printf(" %d transactions ", len(txs))
	fmt.Println()
	for _, tx := range txs {
		amount := color.RedString("%10s", tx.SignedAmount().StringFixed(2))
		if tx.IsIncome {
			amount = color.GreenString("%10s", tx.SignedAmount().StringFixed(2))
		}
		fmt.Printf("  %s %s %s  %-30s %s\n",
			tx.Date.Format(time.DateOnly), amount, tx.Currency, tx.Description, faint.Sprint(tx.CategoryName))
	}
	return nil
}

func runSummary(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 1, "summary <user> [from] [to]"); err != nil {
		return err
	}
	from, to, err := dateRange(args[1:])
	if err != nil {
		return err
	}
	sum, err := a.Ledger.Summary(ctx, args[0], from, to)
	if err != nil {
		return err
	}
	for _, c := range sum.Currencies {
		title.Printf(" %s ", c.Currency)
		balance := color.GreenString("%s", c.Balance.StringFixed(2))
		if c.Balance.IsNegative() {
			balance = color.RedString("%s", c.Balance.StringFixed(2))
		}
		fmt.Printf(" income %s  expense %s  balance %s  %s\n",
			c.Income.StringFixed(2), c.Expense.StringFixed(2), balance, faint.Sprintf("%d transactions", c.Count))
	}
	for _, c := range sum.Categories {
		fmt.Printf("  %-20s %10s %s  %s\n", c.CategoryName, c.Expense.StringFixed(2), c.Currency, faint.Sprintf("+%s", c.Income.StringFixed(2)))
	}
	return nil
}

func runLimit(ctx context.Context, a *app.App, args []string) error {
	const usage = "limit <user> [set <category-id> <amount> [period] | delete <id>]"
	if err := need(args, 1, usage); err != nil {
		return err
	}
	user := args[0]

	if len(args) == 1 || args[1] == "list" {
		limits, err := a.Ledger.Limits(ctx, user)
		if err != nil {
			return err
		}
		title.Printf(" %d limits ", len(limits))
		fmt.Println()
		for _, st := range limits {
			printLimit(st)
		}
		return nil
	}

	switch args[1] {
	case "set":
		if err := need(args, 4, usage); err != nil {
			return err
		}
		text := args[3:]
		period := ""
		if last := strings.ToLower(text[len(text)-1]); len(text) > 1 && domain.ValidPeriod(last) {
			period = last
			text = text[:len(text)-1]
		}
		st, err := a.Ledger.SetLimit(ctx, user, args[2], strings.Join(text, " "), period)
		if err != nil {
			return err
		}
		printLimit(*st)
		return nil
	case "delete":
		if err := need(args, 3, usage); err != nil {
			return err
		}
		if err := a.Ledger.DeleteLimit(ctx, user, args[2]); err != nil {
			return err
		}
		fmt.Printf("Deleted limit %s\n", args[2])
		return nil
	}
	return fmt.Errorf("usage: cli %s", usage)
}

func printLimit(st ledger.LimitStatus) {
	line := fmt.Sprintf("%-20s %s / %s %s %-8s %5.1f%%", st.CategoryName,
		st.Spent.StringFixed(2), st.Limit.Amount.StringFixed(2), st.Limit.Currency, st.Limit.Period, st.Percent)
	switch st.State {
	case ledger.LimitExceeded:
		color.Red("  %s  %s", line, faint.Sprint(st.Limit.ID))
	case ledger.LimitWarning:
		color.Yellow("  %s  %s", line, faint.Sprint(st.Limit.ID))
	default:
		fmt.Printf("  %s  %s\n", line, faint.Sprint(st.Limit.ID))
	}
}

func runUploadReceipt(ctx context.Context, a *app.App, args []string) error {
	if err := need(args, 2, "upload-receipt <user> <file>"); err != nil {
		return err
	}
	deps := a.PipelineDeps()
	if deps == nil {
		return fmt.Errorf("receipt processing needs -bucket and a reachable Gemini model")
	}
	userID, path := args[0], args[1]

	head := make([]byte, 512)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	n, _ := f.Read(head)
	f.Close()
	contentType := http.DetectContentType(head[:n])

	object := gcsuploader.ReceiptObjectName(userID, time.Now(), contentType)
	uri, err := a.Storage.UploadFile(ctx, object, path, contentType)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s\n", faint.Sprint(uri))

	state, err := pipeline.ProcessReceipt(ctx, deps, userID, uri)
	if err != nil {
		return err
	}
	title.Printf(" %d transactions ", len(state.Transactions))
	fmt.Printf(" %d remembered\n", state.Remembered)
	for _, tx := range state.Transactions {
		fmt.Printf("  %10s %s  %-30s %s\n", tx.Amount.StringFixed(2), tx.Currency, tx.Description, faint.Sprint(tx.CategoryName))
	}
	return nil
}

func runExportNotion(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("export-notion", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "Count pages without creating them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	args = fs.Args()
	if err := need(args, 1, "export-notion [-- -dry-run] <user> [from] [to]"); err != nil {
		return err
	}
	if a.Config.NotionToken == "" || a.Config.NotionDBID == "" {
		return fmt.Errorf("-notion-token and -notion-db are required")
	}
	from, to, err := dateRange(args[1:])
	if err != nil {
		return err
	}

	notion := notionsync.NewNotionClient(a.Config.NotionToken)
	stats, err := notionsync.ExportTransactions(ctx, a.Repo, notion, a.Config.NotionDBID, args[0], from, to, *dryRun)
	if err != nil {
		return err
	}
	title.Printf(" exported %d/%d ", stats.Created, stats.Total)
	fmt.Printf(" skipped %d, failed %d\n", stats.Skipped, stats.Failed)
	if stats.Failed > 0 {
		return fmt.Errorf("%d pages failed", stats.Failed)
	}
	return nil
}
