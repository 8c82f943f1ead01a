// Package pdftext renders PDF bytes into the text and structured lines that
// field extraction reads.
package pdftext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

const (
	MethodNative    = "native"
	MethodPdftotext = "pdftotext"
)

// errNoText marks a PDF that parsed but carried no extractable text.
var errNoText = errors.New("no extractable text")

var disableConfigDir sync.Once

// Renderer turns PDF bytes into a RenderResult. It never returns an error:
// every failure is reported as Success=false with a message.
type Renderer struct {
	logger    *slog.Logger
	runner    Runner
	pdftotext string
	maxPages  int
}

type Option func(*Renderer)

// WithPdftotext enables the poppler fallback for PDFs whose text the native
// reader cannot recover.
func WithPdftotext(path string) Option {
	return func(r *Renderer) { r.pdftotext = path }
}

// WithRunner replaces the command runner (tests).
func WithRunner(run Runner) Option {
	return func(r *Renderer) {
		if run != nil {
			r.runner = run
		}
	}
}

// WithMaxPages limits how many pages are read; 0 reads all.
func WithMaxPages(n int) Option {
	return func(r *Renderer) { r.maxPages = n }
}

func NewRenderer(logger *slog.Logger, opts ...Option) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	disableConfigDir.Do(api.DisableConfigDir)
	r := &Renderer{logger: logger, runner: execRunner{logger: logger}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render validates data, reads every page natively and falls back to
// pdftotext when the native pass finds no text. Cancellation of ctx stops
// waiting on the render and reports failure.
func (r *Renderer) Render(ctx context.Context, data []byte) entity.RenderResult {
	start := time.Now()
	if len(data) == 0 {
		return failed(errors.New("empty file"))
	}

	count, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		r.logger.Warn("pdftext.validate.failed", "error", err)
		return failed(err)
	}

	type outcome struct {
		pages []entity.Page
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		pages, err := r.native(data)
		done <- outcome{pages, err}
	}()

	var pages []entity.Page
	select {
	case <-ctx.Done():
		return failed(ctx.Err())
	case o := <-done:
		pages, err = o.pages, o.err
	}

	method := MethodNative
	if err == nil && blank(pages) {
		err = errNoText
	}
	if err != nil && r.pdftotext != "" {
		r.logger.Info("pdftext.native.fallback", "reason", err)
		pages, err = r.poppler(ctx, data)
		method = MethodPdftotext
	}
	if err == nil && blank(pages) {
		err = errNoText
	}
	if err != nil {
		r.logger.Warn("pdftext.render.failed", "method", method, "error", err)
		return failed(err)
	}

	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	r.logger.Debug("pdftext.render.ok",
		"method", method,
		"pages", len(pages),
		"page_count", count,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return entity.RenderResult{
		Success: true,
		Text:    strings.Join(texts, "\n\n"),
		Pages:   pages,
		Method:  method,
	}
}

// native reads glyph positions with ledongthuc/pdf. The reader panics on
// some malformed inputs; that is reported as an error.
func (r *Renderer) native(data []byte) (pages []entity.Page, err error) {
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("pdf reader: %v", p)
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := rd.NumPage()
	if r.maxPages > 0 && n > r.maxPages {
		n = r.maxPages
	}
	for i := 1; i <= n; i++ {
		page := rd.Page(i)
		if page.V.IsNull() {
			pages = append(pages, entity.Page{PageNumber: i, Structured: []entity.StructuredLine{}})
			continue
		}
		content := page.Content()
		glyphs := make([]glyph, 0, len(content.Text))
		for _, t := range content.Text {
			glyphs = append(glyphs, glyph{S: t.S, X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize})
		}
		text, lines := layout(glyphs)
		for j := range lines {
			lines[j].Text = Normalize(lines[j].Text)
		}
		if lines == nil {
			lines = []entity.StructuredLine{}
		}
		pages = append(pages, entity.Page{PageNumber: i, Text: Normalize(text), Structured: lines})
	}
	return pages, nil
}

// poppler runs pdftotext -layout over a temporary copy of data. Pages are
// split on form feeds; line Y values count down from the top.
func (r *Renderer) poppler(ctx context.Context, data []byte) ([]entity.Page, error) {
	tmp, err := os.CreateTemp("", "invoice-*.pdf")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	out, err := r.runner.Run(ctx, r.pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", tmp.Name(), "-")
	if err != nil {
		return nil, err
	}

	raw := strings.Split(strings.TrimRight(string(out), "\f\n"), "\f")
	pages := make([]entity.Page, 0, len(raw))
	for i, p := range raw {
		rows := strings.Split(Normalize(p), "\n")
		lines := []entity.StructuredLine{}
		for j, row := range rows {
			if row = squeezeLine(row); row != "" {
				lines = append(lines, entity.StructuredLine{Text: row, Y: float64(len(rows) - j)})
			}
		}
		pages = append(pages, entity.Page{PageNumber: i + 1, Text: collapse(Normalize(p)), Structured: lines})
	}
	return pages, nil
}

func blank(pages []entity.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

func failed(err error) entity.RenderResult {
	return entity.RenderResult{
		Success: false,
		Pages:   []entity.Page{},
		Error:   "Failed to parse PDF: " + err.Error(),
	}
}
