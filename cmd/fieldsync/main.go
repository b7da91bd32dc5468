// fieldsync ingests work-order dispatch emails from an IMAP mailbox
// into a local SQLite database.
//
// Subcommands:
//
//	poll        run one import cycle, or keep polling with --watch
//	reconcile   apply status-label emails to existing work orders
//	import      import a single work order by number, --wo required
//	inspect     show mailbox folders and recent dispatch messages
//	runs        show recent import-run summaries
//	credential  store or delete the mailbox password in the OS keyring
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/emfcontracting/fieldsync/internal/credential"
	"github.com/emfcontracting/fieldsync/internal/ingest"
	"github.com/emfcontracting/fieldsync/internal/mail"
	"github.com/emfcontracting/fieldsync/internal/model"
	"github.com/emfcontracting/fieldsync/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		watch      bool
		woNumber   string
		limit      int
	)

	flagSet := pflag.NewFlagSet("fieldsync", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", model.DefaultConfigPath(), "path to config file")
	flagSet.BoolVar(&watch, "watch", false, "poll: keep running on the configured interval")
	flagSet.StringVar(&woNumber, "wo", "", "import: work-order number to import")
	flagSet.IntVar(&limit, "limit", 20, "runs: how many recent runs to show")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	command := args[0]

	// Credential management needs no config or database.
	if command == "credential" {
		return runCredential(args[1:])
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	password, err := resolvePassword(cfg)
	if err != nil {
		return err
	}

	client := mail.NewClient(cfg.Mail, password, cfg.Timeouts, cfg.Import.SinceDays, log)
	importer := ingest.NewImporter(client, st, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One-shot commands get the same bound a scheduled cycle gets, so a
	// hung server cannot wedge a cron invocation. The watch loop applies
	// the bound per cycle itself.
	cycleBudget := time.Duration(cfg.Timeouts.CycleSec) * time.Second
	if cycleBudget <= 0 {
		cycleBudget = 120 * time.Second
	}
	bounded := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, cycleBudget)
	}

	switch command {
	case "poll":
		if watch {
			return runWatch(ctx, importer, cfg, log)
		}
		cctx, cancel := bounded()
		defer cancel()
		summary, err := importer.RunCycle(cctx)
		printJSON(summary)
		return err
	case "reconcile":
		cctx, cancel := bounded()
		defer cancel()
		summary, err := importer.Reconcile(cctx)
		printJSON(summary)
		return err
	case "import":
		if woNumber == "" {
			return errors.New("import requires --wo <number>")
		}
		cctx, cancel := bounded()
		defer cancel()
		wo, err := importer.ManualImport(cctx, woNumber)
		if err != nil {
			return err
		}
		printJSON(wo)
		return nil
	case "inspect":
		cctx, cancel := bounded()
		defer cancel()
		report, err := importer.Inspect(cctx)
		if report != nil {
			printJSON(report)
		}
		return err
	case "runs":
		runs, err := st.RecentImportRuns(ctx, limit)
		if err != nil {
			return err
		}
		printJSON(runs)
		return nil
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// runWatch runs the poller until the context is cancelled, reporting
// each cycle summary to stdout as it completes.
func runWatch(
	ctx context.Context,
	importer *ingest.Importer,
	cfg *model.AppConfig,
	log *slog.Logger,
) error {
	poller := ingest.NewPoller(importer, cfg.Import, cfg.Timeouts, log)
	poller.Start()
	defer poller.Stop()

	log.Info("polling started",
		"interval_sec", cfg.Import.PollIntervalSec,
		"folder", cfg.Mail.DispatchFolder,
	)

	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case summary := <-poller.Results():
			if summary != nil {
				printJSON(summary)
			}
		}
	}
}

// runCredential handles the credential subcommands: set reads the
// password from stdin, delete removes the keyring entry.
func runCredential(args []string) error {
	if len(args) == 0 {
		return errors.New("credential requires 'set' or 'delete'")
	}

	switch args[0] {
	case "set":
		fmt.Fprint(os.Stderr, "mail password: ")
		var password string
		if _, err := fmt.Scanln(&password); err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		return credential.SetMailPassword(password)
	case "delete":
		return credential.DeleteMailPassword()
	default:
		return fmt.Errorf("unknown credential command %q", args[0])
	}
}

// resolvePassword prefers the OS keyring, falling back to the config
// file's plain-text entry for headless deployments.
func resolvePassword(cfg *model.AppConfig) (string, error) {
	if password, err := credential.MailPassword(); err == nil && password != "" {
		return password, nil
	}
	if cfg.Mail.Password != "" {
		return cfg.Mail.Password, nil
	}
	return "", errors.New(
		"no mail password found; run 'fieldsync credential set' or set mail.password in the config",
	)
}

// openStore opens the SQLite database, creating its directory first.
func openStore(cfg *model.AppConfig) (store.Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	return store.NewSQLiteStore(cfg.DBPath)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprint(os.Stderr, `fieldsync - work-order email ingestion.

Usage:
  fieldsync [flags] <command>

Commands:
  poll              run one import cycle (--watch to keep polling)
  reconcile         apply status-label emails to existing work orders
  import --wo N     import a single work order by number
  inspect           show mailbox folders and recent dispatch messages
  runs              show recent import-run summaries
  credential set    store the mailbox password in the OS keyring
  credential delete remove the stored password

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
