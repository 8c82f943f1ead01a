package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/go-units"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/extract"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/schema"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/session"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/tabulate"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/repository"
)

// Renderer turns PDF bytes into text. Failures are reported in the result.
type Renderer interface {
	Render(ctx context.Context, data []byte) entity.RenderResult
}

// UsageReporter receives best-effort usage events.
type UsageReporter interface {
	SessionStart(ctx context.Context, s entity.ProcessingSession) bool
	SessionEnd(ctx context.Context, sum entity.SessionSummary) bool
	Error(ctx context.Context, s entity.ProcessingSession, errType string, fe entity.FileError) bool
}

// BatchResult is everything a caller needs after a batch: the final session,
// the successful invoices in input order, their totals and the advisory
// validation report.
type BatchResult struct {
	Session  entity.ProcessingSession
	Invoices []entity.ExtractedInvoice
	Stats    tabulate.SummaryStats
	Report   tabulate.Report
	Summary  entity.SessionSummary
}

// Processor coordinates render, extract and session bookkeeping for a batch.
type Processor struct {
	logger      *slog.Logger
	renderer    Renderer
	extractor   *extract.Extractor
	validator   *schema.Validator
	sessions    repository.SessionRepository
	invoices    repository.InvoiceRepository
	usage       UsageReporter
	maxFiles    int
	maxFileSize int64
	fileTimeout time.Duration
	toolVersion string
	now         func() time.Time
}

type Option func(*Processor)

// WithStore persists sessions, file records and invoices as the batch runs.
func WithStore(sessions repository.SessionRepository, invoices repository.InvoiceRepository) Option {
	return func(p *Processor) {
		p.sessions = sessions
		p.invoices = invoices
	}
}

func WithUsage(u UsageReporter) Option {
	return func(p *Processor) { p.usage = u }
}

// WithValidator checks every extracted invoice against the JSON contract.
func WithValidator(v *schema.Validator) Option {
	return func(p *Processor) { p.validator = v }
}

// WithLimits sets the maximum number of files per batch and bytes per file.
// Non-positive values keep the defaults.
func WithLimits(maxFiles int, maxFileSize int64) Option {
	return func(p *Processor) {
		if maxFiles > 0 {
			p.maxFiles = maxFiles
		}
		if maxFileSize > 0 {
			p.maxFileSize = maxFileSize
		}
	}
}

// WithFileTimeout bounds the render of a single file; 0 disables it.
func WithFileTimeout(d time.Duration) Option {
	return func(p *Processor) { p.fileTimeout = d }
}

func WithToolVersion(v string) Option {
	return func(p *Processor) {
		if v != "" {
			p.toolVersion = v
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(logger *slog.Logger, renderer Renderer, extractor *extract.Extractor, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = extract.NewExtractor(nil, logger)
	}
	defaultSize, _ := units.RAMInBytes(constants.DefaultMaxFileSize)
	p := &Processor{
		logger:      logger,
		renderer:    renderer,
		extractor:   extractor,
		maxFiles:    constants.DefaultMaxFiles,
		maxFileSize: defaultSize,
		fileTimeout: constants.DefaultFileTimeoutSec * time.Second,
		toolVersion: constants.ToolVersion,
		now:         time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// NewSession starts an empty session stamped with the processor's clock and
// tool version.
func (p *Processor) NewSession(userEmail string) entity.ProcessingSession {
	return session.New(userEmail, p.toolVersion, p.now())
}

// ProcessBatch runs inputs through a fresh session.
func (p *Processor) ProcessBatch(ctx context.Context, userEmail string, inputs []entity.FileInput) (*BatchResult, error) {
	return p.Run(ctx, p.NewSession(userEmail), inputs)
}

// Run processes inputs sequentially in order on s. Per-file failures become
// error records and the batch continues. When ctx is cancelled the remaining
// files stay pending, the session is finalized and the partial result is
// returned together with ctx.Err().
func (p *Processor) Run(ctx context.Context, s entity.ProcessingSession, inputs []entity.FileInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no files", common.ErrInvalidInput)
	}
	if len(inputs) > p.maxFiles {
		return nil, fmt.Errorf("%w: %d files, maximum is %d", common.ErrLimitExceeded, len(inputs), p.maxFiles)
	}

	var err error
	for _, in := range inputs {
		if s, err = session.AddFile(s, in.Name, sizeOf(in)); err != nil {
			return nil, err
		}
	}

	log := p.logger.With("session_id", s.SessionID.String())
	ctx = common.WithSessionID(ctx, s.SessionID.String())
	log.Info("processor.batch.start", "files", len(inputs), "user_email", s.UserEmail)

	if p.sessions != nil {
		if err := p.sessions.Create(ctx, s); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		for i, f := range s.Files {
			p.persistFile(ctx, log, s, i, f)
		}
	}
	if p.usage != nil {
		p.usage.SessionStart(ctx, s)
	}

	var cancelled error
	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			log.Warn("processor.batch.cancelled", "processed", i, "remaining", len(inputs)-i, "error", err)
			cancelled = err
			break
		}
		s = p.processFile(ctx, log, s, i, in)
	}

	end := p.now()
	s = session.Finalize(s, end)
	sum := session.Summary(s, end)

	// the caller's context may already be done; bookkeeping still runs
	tail := context.WithoutCancel(ctx)
	if p.sessions != nil {
		if err := p.sessions.Update(tail, s); err != nil {
			log.Error("processor.persist.failed", "stage", "session", "error", err)
		}
	}
	if p.usage != nil {
		p.usage.SessionEnd(tail, sum)
	}

	invoices := session.SuccessfulResults(s)
	res := &BatchResult{
		Session:  s,
		Invoices: invoices,
		Stats:    tabulate.Summarize(invoices),
		Report:   tabulate.Validate(invoices),
		Summary:  sum,
	}
	log.Info("processor.batch.done",
		"files", sum.NumberOfFiles,
		"success_rate", sum.SuccessRate,
		"errors", sum.ErrorCount,
		"total_amount", sum.TotalAmount,
		"processing_time_s", sum.ProcessingTime,
	)
	return res, cancelled
}

// processFile moves one file through Processing to Completed or Error.
func (p *Processor) processFile(ctx context.Context, log *slog.Logger, s entity.ProcessingSession, idx int, in entity.FileInput) entity.ProcessingSession {
	log = log.With("file_name", in.Name)

	var (
		inv     entity.ExtractedInvoice
		errType string
		err     error
	)
	if size := sizeOf(in); size > p.maxFileSize {
		// rejected while still pending
		errType = "limit"
		err = fmt.Errorf("%w: file is %s, maximum is %s",
			common.ErrLimitExceeded, units.BytesSize(float64(size)), units.BytesSize(float64(p.maxFileSize)))
	} else {
		next, aerr := session.Apply(s, session.Event{Index: idx, Status: constants.FileStatusProcessing, At: p.now()})
		if aerr != nil {
			log.Error("processor.transition.failed", "error", aerr)
			return s
		}
		s = next
		p.persistFile(ctx, log, s, idx, s.Files[idx])
		inv, errType, err = p.extractFile(ctx, in)
	}

	ev := session.Event{Index: idx, At: p.now()}
	if err != nil {
		log.Warn("processor.file.failed", "type", errType, "error", err)
		ev.Status, ev.Error = constants.FileStatusError, err.Error()
	} else {
		ev.Status, ev.Result = constants.FileStatusCompleted, &inv
	}

	next, err := session.Apply(s, ev)
	if err != nil {
		log.Error("processor.transition.failed", "error", err)
		return s
	}
	s = next

	if ev.Status == constants.FileStatusError {
		if p.usage != nil {
			p.usage.Error(ctx, s, errType, entity.FileError{File: in.Name, Error: ev.Error})
		}
	} else {
		if p.invoices != nil {
			if _, err := p.invoices.Insert(ctx, s.SessionID, inv); err != nil {
				log.Error("processor.persist.failed", "stage", "invoice", "error", err)
			}
		}
		log.Debug("processor.file.ok", "grand_total", inv.GrandTotal)
	}
	p.persistFile(ctx, log, s, idx, s.Files[idx])
	return s
}

// extractFile renders and extracts one file. The returned error type names
// the failing stage for usage reporting.
func (p *Processor) extractFile(ctx context.Context, in entity.FileInput) (entity.ExtractedInvoice, string, error) {
	if p.renderer == nil {
		return entity.ExtractedInvoice{}, "render", errors.New("no PDF renderer configured")
	}

	rctx := ctx
	if p.fileTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, p.fileTimeout)
		defer cancel()
	}
	doc := p.renderer.Render(rctx, in.Data)
	if !doc.Success {
		msg := doc.Error
		if msg == "" {
			msg = "Failed to parse PDF"
		}
		return entity.ExtractedInvoice{}, "render", errors.New(msg)
	}

	inv, err := p.extractor.ExtractDocument(doc, in.Name)
	if err != nil {
		return entity.ExtractedInvoice{}, "extract", err
	}
	if p.validator != nil {
		if err := p.validator.ValidateInvoice(inv); err != nil {
			return entity.ExtractedInvoice{}, "validate", fmt.Errorf("%w: %w", common.ErrValidation, err)
		}
	}
	return inv, "", nil
}

func (p *Processor) persistFile(ctx context.Context, log *slog.Logger, s entity.ProcessingSession, idx int, f entity.FileRecord) {
	if p.sessions == nil {
		return
	}
	if err := p.sessions.UpsertFile(ctx, s.SessionID, idx, f); err != nil {
		log.Error("processor.persist.failed", "stage", "file", "status", f.Status, "error", err)
	}
}

func sizeOf(in entity.FileInput) int64 {
	if in.Size > 0 {
		return in.Size
	}
	return int64(len(in.Data))
}
