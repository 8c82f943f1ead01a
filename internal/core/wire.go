package core

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/extract"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/pdftext"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/schema"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/usage"
)

// NewFromConfig wires a Processor from application configuration: rules
// file, PDF renderer, output contract, batch limits and the usage client.
// Extra options (a store, a clock) are applied last.
func NewFromConfig(cfg *common.Config, logger *slog.Logger, opts ...Option) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rules, err := extract.LoadRules(cfg.Extraction.RulesFile)
	if err != nil {
		return nil, err
	}
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("invoice schema: %w", err)
	}
	maxSize, err := cfg.Extraction.MaxFileSizeBytes()
	if err != nil {
		return nil, fmt.Errorf("max file size: %w", err)
	}

	renderOpts := []pdftext.Option{pdftext.WithMaxPages(cfg.PDF.MaxPages)}
	if cfg.PDF.Pdftotext != "" {
		renderOpts = append(renderOpts, pdftext.WithPdftotext(cfg.PDF.Pdftotext))
	}
	renderer := pdftext.NewRenderer(logger, renderOpts...)

	base := []Option{
		WithValidator(validator),
		WithLimits(cfg.Extraction.MaxFiles, maxSize),
		WithFileTimeout(cfg.Extraction.FileTimeout),
		WithToolVersion(cfg.Usage.ToolVersion),
	}
	if cfg.Usage.URL != "" {
		client := usage.NewClient(cfg.Usage.URL, logger,
			usage.WithRetries(cfg.Usage.Retries, cfg.Usage.RetryDelay),
			usage.WithToolVersion(cfg.Usage.ToolVersion),
			usage.WithHTTPClient(newHTTPClient(cfg.Usage.Timeout)),
		)
		base = append(base, WithUsage(client))
	}

	logger.Info("processor configured",
		"rules_file", cfg.Extraction.RulesFile,
		"max_files", cfg.Extraction.MaxFiles,
		"max_file_size", cfg.Extraction.MaxFileSize,
		"pdftotext", cfg.PDF.Pdftotext,
		"usage_enabled", cfg.Usage.URL != "",
	)
	return NewProcessor(logger, renderer, extract.NewExtractor(rules, logger), append(base, opts...)...), nil
}

// Extractor returns the field extractor in use.
func (p *Processor) Extractor() *extract.Extractor {
	return p.extractor
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
