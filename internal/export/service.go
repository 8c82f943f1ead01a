package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/tabulate"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ParseFormat accepts "csv" or "xlsx" (case-insensitive); empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", common.ErrInvalidInput, s)
	}
}

// FileName builds invoice_data_<timestamp>.<ext> from a UTC timestamp.
func FileName(f Format, now time.Time) string {
	return fmt.Sprintf("invoice_data_%s.%s", now.UTC().Format("2006-01-02T15-04-05"), f)
}

const utf8BOM = "\ufeff"

// Service renders extracted invoices as CSV or XLSX bytes.
type Service struct {
	logger *slog.Logger
	bom    bool
}

// Option configures a Service.
type Option func(*Service)

// WithBOM prefixes CSV output with a UTF-8 byte order mark so that
// spreadsheet applications detect the encoding.
func WithBOM() Option {
	return func(s *Service) { s.bom = true }
}

func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Export dispatches on format.
func (s *Service) Export(f Format, invoices []entity.ExtractedInvoice) ([]byte, error) {
	switch f {
	case FormatXLSX:
		return s.XLSX(invoices)
	case FormatCSV:
		return s.CSV(invoices)
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", common.ErrInvalidInput, f)
	}
}

// CSV writes the header row and one row per invoice with CRLF line endings.
// No invoices yields the header line alone.
func (s *Service) CSV(invoices []entity.ExtractedInvoice) ([]byte, error) {
	var buf bytes.Buffer
	if s.bom {
		buf.WriteString(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	w.UseCRLF = true
	if err := w.Write(tabulate.Header()); err != nil {
		return nil, fmt.Errorf("csv header: %w", err)
	}
	if err := w.WriteAll(tabulate.Rows(invoices)); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}

	s.logger.Info("export.csv.ok", "rows", len(invoices), "bytes", buf.Len())
	return buf.Bytes(), nil
}

// XLSX builds a workbook with an Invoices sheet (the CSV columns), a Summary
// sheet and a Validation sheet.
func (s *Service) XLSX(invoices []entity.ExtractedInvoice) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Invoices"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	writeRow(f, sheet, 1, toAny(tabulate.Header()))
	for i, inv := range invoices {
		writeRow(f, sheet, i+2, invoiceCells(inv))
	}
	_ = f.SetColWidth(sheet, "A", "L", 18)
	_ = f.SetColWidth(sheet, "L", "L", 40) // customer name
	_ = f.SetColWidth(sheet, "M", "AB", 14)
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("xlsx panes: %w", err)
	}

	if err := summarySheet(f, tabulate.Summarize(invoices)); err != nil {
		return nil, err
	}
	if err := validationSheet(f, tabulate.Validate(invoices)); err != nil {
		return nil, err
	}

	idx, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(invoices),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func summarySheet(f *excelize.File, st tabulate.SummaryStats) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	rows := [][]any{
		{"Metric", "Value"},
		{"Total Invoices", st.TotalInvoices},
		{"Total Amount", st.TotalAmount},
		{"Total Tax", st.TotalTax},
		{"Average Invoice Amount", st.AvgInvoiceAmount},
		{"Flights", st.FlightCount},
		{"Meals", st.MealCount},
	}
	for i, r := range rows {
		writeRow(f, sheet, i+1, r)
	}
	_ = f.SetColWidth(sheet, "A", "A", 26)
	_ = f.SetColWidth(sheet, "B", "B", 16)
	return nil
}

func validationSheet(f *excelize.File, r tabulate.Report) error {
	const sheet = "Validation"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}
	writeRow(f, sheet, 1, []any{"Severity", "Row", "File", "Message"})
	row := 2
	for _, is := range r.Errors {
		writeRow(f, sheet, row, []any{"error", is.Row, is.File, is.Message})
		row++
	}
	for _, is := range r.Warnings {
		writeRow(f, sheet, row, []any{"warning", is.Row, is.File, is.Message})
		row++
	}
	_ = f.SetColWidth(sheet, "C", "C", 30)
	_ = f.SetColWidth(sheet, "D", "D", 60)
	return nil
}

// invoiceCells keeps numbers numeric so spreadsheet formulas work on them.
func invoiceCells(inv entity.ExtractedInvoice) []any {
	row := tabulate.Row(inv)
	cells := toAny(row[:12])
	return append(cells,
		inv.TaxableValue, inv.NonTaxableValue,
		inv.CGSTAmount, inv.CGSTPercent,
		inv.SGSTAmount, inv.SGSTPercent,
		inv.IGSTAmount, inv.IGSTPercent,
		inv.Meal,
		inv.MealCGSTAmount, inv.MealCGSTPercent,
		inv.MealSGSTAmount, inv.MealSGSTPercent,
		inv.MealIGSTAmount, inv.MealIGSTPercent,
		inv.GrandTotal,
	)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
