package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-assistant/internal/app"
	"github.com/dvloznov/finance-assistant/internal/apperr"
	"github.com/dvloznov/finance-assistant/internal/config"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	case "submit", "list", "ask", "search", "reindex", "backup", "restore":
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		boot := logger.New()
		boot.Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize assistant")
	}
	defer a.Close()

	args := os.Args[2:]
	switch cmd {
	case "submit":
		err = runSubmit(ctx, a, args)
	case "list":
		err = runList(ctx, a, args)
	case "ask":
		err = runAsk(ctx, a, args)
	case "search":
		err = runSearch(ctx, a, args)
	case "reindex":
		err = runReindex(ctx, a, args)
	case "backup":
		err = runBackup(ctx, a, args, log)
	case "restore":
		err = runRestore(ctx, a, args, log)
	}
	if err != nil {
		log.Error().Err(err).Str("command", cmd).Msg("Command failed")
		a.Close()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Finance Assistant CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  submit    Record a transaction and index it")
	fmt.Println("  list      List a user's transactions")
	fmt.Println("  ask       Ask the assistant a question")
	fmt.Println("  search    Find the transactions most similar to a query")
	fmt.Println("  reindex   Index ledger transactions missing from the user's index")
	fmt.Println("  backup    Back up a user's data to GCS")
	fmt.Println("  restore   Restore a user's data from a GCS backup")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nConfiguration is read from .env and the environment.")
	fmt.Println("Run 'cli <command> -h' for more information on a command.")
}

func runSubmit(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	amount := fs.String("amount", "", "Amount, e.g. 12.50")
	txType := fs.String("type", "", "Transaction type, e.g. expense")
	category := fs.String("category", "", "Category, e.g. groceries")
	description := fs.String("description", "", "Free-text description")
	wait := fs.Duration("wait", 30*time.Second, "How long to wait for a background index retry")
	fs.Parse(args)

	in := domain.TransactionInput{UserID: *user}
	if *amount != "" {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return fmt.Errorf("invalid -amount %q: %w", *amount, err)
		}
		in.Amount = &d
	}
	in.TransactionType = flagValue(fs, "type", *txType)
	in.Category = flagValue(fs, "category", *category)
	in.Description = flagValue(fs, "description", *description)

	if err := a.StartWorkers(ctx); err != nil {
		return err
	}

	receipt, err := a.Service.SubmitTransaction(ctx, in)
	if err != nil {
		return errors.New(apperr.Detail(err))
	}

	fmt.Printf("Recorded transaction %s\n", receipt.Transaction.ID)
	if receipt.Indexed {
		return nil
	}

	fmt.Printf("Not indexed: %s\n", receipt.IndexError)
	if receipt.RetryJobID != "" {
		waitCtx, cancel := context.WithTimeout(ctx, *wait)
		defer cancel()
		retried, err := a.WaitForJobs(waitCtx, receipt.RetryJobID)
		if err == nil && len(retried) == 1 && retried[0].Status == jobs.JobStatusCompleted {
			fmt.Println("Indexed on retry")
			return nil
		}
	}
	fmt.Printf("Run 'cli reindex -user %s' to index it later.\n", receipt.Transaction.UserID)
	return nil
}

func runReindex(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	wait := fs.Duration("wait", 2*time.Minute, "How long to wait for the index jobs")
	fs.Parse(args)

	if err := a.StartWorkers(ctx); err != nil {
		return err
	}

	scheduled, err := a.Service.ReindexMissing(ctx, *user)
	if err != nil {
		return err
	}
	if len(scheduled) == 0 {
		fmt.Printf("Index for %s is up to date\n", *user)
		return nil
	}

	ids := make([]string, len(scheduled))
	for i, job := range scheduled {
		ids[i] = job.JobID
	}
	waitCtx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()
	finished, err := a.WaitForJobs(waitCtx, ids...)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var indexed, failed int
	for _, job := range finished {
		switch job.Status {
		case jobs.JobStatusCompleted:
			indexed++
		case jobs.JobStatusFailed:
			failed++
			fmt.Printf("  %s: %s\n", job.TransactionID, job.Error)
		}
	}
	fmt.Printf("Indexed %d of %d missing transactions", indexed, len(scheduled))
	if pending := len(scheduled) - indexed - failed; pending > 0 {
		fmt.Printf(" (%d still pending)", pending)
	}
	fmt.Println()
	return nil
}

// flagValue returns nil for a flag that was never set, so that a missing
// field is reported as missing rather than empty.
func flagValue(fs *flag.FlagSet, name, value string) *string {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	if !set {
		return nil
	}
	return &value
}

func runList(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	fs.Parse(args)

	txs, err := a.Service.ListTransactions(ctx, *user)
	if err != nil {
		return err
	}

	fmt.Printf("\n=== Transactions for %s (%d) ===\n", *user, len(txs))
	for _, tx := range txs {
		fmt.Printf("%s  %-10s %-10s %-15s %s\n",
			tx.RecordedAt.Format(time.RFC3339), tx.Amount.String(), tx.TransactionType, tx.Category, tx.Description)
	}
	return nil
}

func runAsk(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	question := fs.String("question", "", "Question to ask")
	historyFile := fs.String("history", "", "Optional JSON file with earlier messages [{role, content}]")
	fs.Parse(args)

	var conv domain.Conversation
	if *historyFile != "" {
		data, err := os.ReadFile(*historyFile)
		if err != nil {
			return fmt.Errorf("read history: %w", err)
		}
		if err := json.Unmarshal(data, &conv); err != nil {
			return fmt.Errorf("parse history: %w", err)
		}
	}
	if *question != "" {
		conv = append(conv, domain.Message{Role: domain.RoleUser, Content: *question})
	}

	result := a.Service.HandleQuery(ctx, *user, conv)
	if !result.OK() {
		return errors.New(result.Detail)
	}

	fmt.Printf("Q (%s): %s\n\n%s\n", result.Intent, result.Question, result.Answer)
	return nil
}

func runSearch(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	query := fs.String("query", "", "Text to search for")
	k := fs.Int("k", 5, "Number of results")
	fs.Parse(args)

	matches, err := a.Index.Search(ctx, *user, *query, *k)
	if err != nil {
		return err
	}

	for i, m := range matches {
		fmt.Printf("%d. %.3f  %s\n", i+1, m.Score, m.Text)
	}
	if len(matches) == 0 {
		fmt.Println("No indexed transactions.")
	}
	return nil
}

func runBackup(ctx context.Context, a *app.App, args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	fs.Parse(args)

	if a.Backup == nil {
		return errors.New("BACKUP_BUCKET is not configured")
	}

	log.Info().Str("user_id", *user).Msg("Starting backup")
	snapshot, files, err := a.Backup.Backup(ctx, *user)
	if err != nil {
		return err
	}

	fmt.Printf("Backed up %d files as snapshot %s\n", files, snapshot)
	return nil
}

func runRestore(ctx context.Context, a *app.App, args []string, log zerolog.Logger) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	user := fs.String("user", "", "User ID")
	snapshot := fs.String("snapshot", "", "Snapshot to restore (defaults to the latest)")
	list := fs.Bool("list", false, "List snapshots instead of restoring")
	fs.Parse(args)

	if a.Backup == nil {
		return errors.New("BACKUP_BUCKET is not configured")
	}

	if *list {
		snapshots, err := a.Backup.Snapshots(ctx, *user)
		if err != nil {
			return err
		}
		for _, s := range snapshots {
			fmt.Println(s)
		}
		return nil
	}

	log.Info().Str("user_id", *user).Str("snapshot", *snapshot).Msg("Starting restore")
	files, err := a.Backup.Restore(ctx, *user, *snapshot)
	if err != nil {
		return err
	}

	fmt.Printf("Restored %d files\n", files)
	return nil
}
