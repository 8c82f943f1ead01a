// Package tabulate summarizes and checks extracted invoices and lays them out
// as rows of the fixed export header set.
package tabulate

import (
	"fmt"
	"math"
	"strconv"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/extract"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// igstTolerance is the accepted difference, in rupees, between the printed
// IGST amount and taxable value × IGST%.
const igstTolerance = 1.0

// SummaryStats are batch-level totals.
type SummaryStats struct {
	TotalInvoices    int     `json:"totalInvoices"`
	TotalAmount      float64 `json:"totalAmount"`
	TotalTax         float64 `json:"totalTax"`
	AvgInvoiceAmount float64 `json:"avgInvoiceAmount"`
	FlightCount      int     `json:"flightCount"`
	MealCount        int     `json:"mealCount"`
}

// Issue is one validation finding. Row is the 1-based position in the input.
type Issue struct {
	Row     int    `json:"row"`
	File    string `json:"file,omitempty"`
	Message string `json:"message"`
}

// Report is advisory: warnings never block export.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Summarize totals the invoices. Sums are rounded once, at the end.
func Summarize(invoices []entity.ExtractedInvoice) SummaryStats {
	var st SummaryStats
	var amount, tax float64
	for _, inv := range invoices {
		amount += inv.GrandTotal
		tax += inv.TotalTax()
		if inv.FlightNo != "" {
			st.FlightCount++
		}
		if inv.Meal > 0 {
			st.MealCount++
		}
	}
	st.TotalInvoices = len(invoices)
	st.TotalAmount = extract.Round2(amount)
	st.TotalTax = extract.Round2(tax)
	if st.TotalInvoices > 0 {
		st.AvgInvoiceAmount = extract.Round2(amount / float64(st.TotalInvoices))
	}
	return st
}

// Validate flags rows that look wrong.
func Validate(invoices []entity.ExtractedInvoice) Report {
	r := Report{Errors: []Issue{}, Warnings: []Issue{}}
	for i, inv := range invoices {
		row := i + 1
		issue := func(format string, args ...any) Issue {
			return Issue{Row: row, File: inv.FileName, Message: fmt.Sprintf(format, args...)}
		}

		if inv.AirlineInvoiceNo == "" && inv.PNR == "" {
			r.Errors = append(r.Errors, issue("missing both invoice number and PNR"))
		}
		if inv.FlightNo == "" {
			r.Warnings = append(r.Warnings, issue("missing flight number"))
		}
		if inv.GrandTotal == 0 {
			r.Warnings = append(r.Warnings, issue("grand total is zero"))
		}
		if inv.AirlineGSTNo != "" && !extract.IsValidGST(inv.AirlineGSTNo) {
			r.Warnings = append(r.Warnings, issue("malformed airline GSTIN %q", inv.AirlineGSTNo))
		}
		if inv.ClientGSTNo != "" && !extract.IsValidGST(inv.ClientGSTNo) {
			r.Warnings = append(r.Warnings, issue("malformed client GSTIN %q", inv.ClientGSTNo))
		}
		if inv.TaxableValue > 0 && inv.IGSTPercent > 0 {
			expected := extract.Round2(inv.TaxableValue * inv.IGSTPercent / 100)
			if math.Abs(expected-inv.IGSTAmount) > igstTolerance {
				r.Warnings = append(r.Warnings, issue("IGST amount %.2f differs from expected %.2f", inv.IGSTAmount, expected))
			}
		}
	}
	r.Valid = len(r.Errors) == 0
	return r
}

// Header returns a copy of the export header row.
func Header() []string {
	return append([]string(nil), constants.CSVHeaders...)
}

// Rows renders each invoice in header order. Amounts carry two decimals;
// percentages use their shortest form.
func Rows(invoices []entity.ExtractedInvoice) [][]string {
	rows := make([][]string, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, Row(inv))
	}
	return rows
}

// Row renders one invoice. An empty document type is written as "Invoice".
func Row(inv entity.ExtractedInvoice) []string {
	docType := inv.DocumentType
	if docType == "" {
		docType = constants.DocumentTypeInvoice
	}
	return []string{
		docType,
		inv.AirlineInvoiceNo,
		inv.AirlineInvoiceDate,
		inv.AirlineGSTNo,
		inv.PassengerName,
		inv.PNR,
		inv.FlightNo,
		inv.From,
		inv.To,
		inv.PlaceOfSupply,
		inv.ClientGSTNo,
		inv.GSTINCustomerName,
		money(inv.TaxableValue),
		money(inv.NonTaxableValue),
		money(inv.CGSTAmount),
		pct(inv.CGSTPercent),
		money(inv.SGSTAmount),
		pct(inv.SGSTPercent),
		money(inv.IGSTAmount),
		pct(inv.IGSTPercent),
		money(inv.Meal),
		money(inv.MealCGSTAmount),
		pct(inv.MealCGSTPercent),
		money(inv.MealSGSTAmount),
		pct(inv.MealSGSTPercent),
		money(inv.MealIGSTAmount),
		pct(inv.MealIGSTPercent),
		money(inv.GrandTotal),
	}
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
