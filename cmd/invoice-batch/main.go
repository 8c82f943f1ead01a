package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/export"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/ingest"
	repo "github.com/yashgoyal264-hub/airline-invoice-extractor/internal/repository"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of invoice PDFs (required)")
		out     = flag.String("out", "", "output directory (defaults to the parent of --dir)")
		format  = flag.String("format", "xlsx", "export format: csv or xlsx")
		email   = flag.String("email", "", "user email recorded on the session")
		inmem   = flag.Bool("inmem", false, "record sessions in an in-memory SQLite database")
		persist = flag.Bool("db", false, "record sessions in the database configured by DB_DRIVER/DB_URL")
		rules   = flag.String("rules", "", "TOML file overriding extraction rules")
		bom     = flag.Bool("bom", false, "prefix CSV output with a UTF-8 byte order mark")
		watch   = flag.Bool("watch", false, "keep running and process PDFs added to --dir")
		hidden  = flag.Bool("hidden", false, "include hidden files and directories")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	fmtOut, err := export.ParseFormat(*format)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Dir(filepath.Clean(*dir))
	}

	cfg := common.LoadConfig()
	if *rules != "" {
		cfg.Extraction.RulesFile = *rules
	}
	if err := cfg.Extraction.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []core.Option
	if *inmem || *persist {
		dbCfg := cfg.Database
		if *inmem {
			dbCfg.Driver, dbCfg.DSN = repo.DriverSQLite, ""
		}
		db, err := server.ConnectDB(ctx, dbCfg, logger)
		if err != nil {
			logger.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		opts = append(opts, core.WithStore(repo.NewSessionRepository(db, logger), repo.NewInvoiceRepository(db, logger)))
	}

	proc, err := core.NewFromConfig(cfg, logger, opts...)
	if err != nil {
		logger.Error("failed to configure processor", "error", err)
		os.Exit(1)
	}
	var exportOpts []export.Option
	if *bom {
		exportOpts = append(exportOpts, export.WithBOM())
	}
	b := &batch{
		proc:     proc,
		exporter: export.NewService(logger, exportOpts...),
		format:   fmtOut,
		outDir:   *out,
		email:    *email,
		logger:   logger,
	}

	logger.Info("starting ingestion", "dir", *dir)
	inputs, _, stats, err := ingest.ReadDirectory(ctx, *dir, !*hidden, logger)
	if err != nil {
		logger.Error("failed to read directory", "error", err)
		os.Exit(1)
	}
	logger.Info("ingestion complete",
		"matched", stats.Matched,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	if len(inputs) > 0 {
		if err := b.run(ctx, inputs); err != nil {
			logger.Error("batch failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no PDF files found", "dir", *dir)
	}

	if !*watch {
		return
	}
	events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:      []string{*dir},
		SkipHidden: !*hidden,
		Debounce:   2 * time.Second,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}
	logger.Info("watching for new invoices", "dir", *dir)
	for {
		select {
		case paths, ok := <-events:
			if !ok {
				return
			}
			var batchInputs []entity.FileInput
			for _, p := range paths {
				in, err := ingest.ReadFile(p)
				if err != nil {
					logger.Warn("skipping file", "path", p, "error", err)
					continue
				}
				batchInputs = append(batchInputs, in)
			}
			if len(batchInputs) == 0 {
				continue
			}
			if err := b.run(ctx, batchInputs); err != nil {
				logger.Error("batch failed", "error", err)
			}
		case err, ok := <-errs:
			if ok {
				logger.Warn("watcher error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("stopping watcher")
			return
		}
	}
}

type batch struct {
	proc     *core.Processor
	exporter *export.Service
	format   export.Format
	outDir   string
	email    string
	logger   *slog.Logger
}

// run processes inputs, writes the export file and prints the session
// summary as JSON on stdout.
func (b *batch) run(ctx context.Context, inputs []entity.FileInput) error {
	res, err := b.proc.ProcessBatch(ctx, b.email, inputs)
	if res == nil {
		return err
	}
	if err != nil {
		b.logger.Warn("batch interrupted", "error", err)
	}

	data, err := b.exporter.Export(b.format, res.Invoices)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	path := filepath.Join(b.outDir, export.FileName(b.format, time.Now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	b.logger.Info("export written", "path", path, "invoices", len(res.Invoices))

	for _, issue := range res.Report.Errors {
		b.logger.Warn("validation error", "row", issue.Row, "file_name", issue.File, "message", issue.Message)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Output  string                `json:"output"`
		Summary entity.SessionSummary `json:"summary"`
		Stats   any                   `json:"stats"`
	}{path, res.Summary, res.Stats})
}
