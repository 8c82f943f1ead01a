package tabulate

import (
	"strings"
	"testing"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

func sample() entity.ExtractedInvoice {
	return entity.ExtractedInvoice{
		DocumentType:       "Invoice",
		AirlineInvoiceNo:   "DL1252605AJ43633",
		AirlineInvoiceDate: "01-May-2025",
		AirlineGSTNo:       "07AABCI2726B1Z4",
		PNR:                "CZFDFS",
		FlightNo:           "6E-5269",
		From:               "DEL",
		To:                 "BLR",
		PlaceOfSupply:      "Maharashtra",
		ClientGSTNo:        "27AAICK4821A1ZV",
		GSTINCustomerName:  "KiranaKart Technologies Private Limited",
		TaxableValue:       11598,
		NonTaxableValue:    388,
		IGSTAmount:         580,
		IGSTPercent:        5,
		GrandTotal:         12566,
		FileName:           "a.pdf",
	}
}

func TestSummarize(t *testing.T) {
	a := sample()
	b := sample()
	b.FlightNo = ""
	b.Meal = 200
	b.MealIGSTAmount = 36
	b.GrandTotal = 0.1
	c := sample()
	c.GrandTotal = 0.2

	got := Summarize([]entity.ExtractedInvoice{a, b, c})
	want := SummaryStats{
		TotalInvoices:    3,
		TotalAmount:      12566.3,
		TotalTax:         1776,
		AvgInvoiceAmount: 4188.77,
		FlightCount:      2,
		MealCount:        1,
	}
	if got != want {
		t.Errorf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestSummarize_Empty(t *testing.T) {
	if got := Summarize(nil); got != (SummaryStats{}) {
		t.Errorf("Summarize(nil) = %+v, want zero", got)
	}
}

func TestValidate(t *testing.T) {
	ok := sample()

	noIDs := sample()
	noIDs.AirlineInvoiceNo = ""
	noIDs.PNR = ""

	warn := sample()
	warn.FlightNo = ""
	warn.GrandTotal = 0
	warn.ClientGSTNo = "27AAICK4821A1Z"
	warn.IGSTAmount = 500

	tests := []struct {
		name         string
		in           entity.ExtractedInvoice
		wantValid    bool
		wantErrors   int
		wantWarnings int
	}{
		{"clean row", ok, true, 0, 0},
		{"missing identifiers", noIDs, false, 1, 0},
		{"warnings only", warn, true, 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate([]entity.ExtractedInvoice{tt.in})
			if r.Valid != tt.wantValid || len(r.Errors) != tt.wantErrors || len(r.Warnings) != tt.wantWarnings {
				t.Errorf("Validate() = %+v, want valid=%v errors=%d warnings=%d", r, tt.wantValid, tt.wantErrors, tt.wantWarnings)
			}
		})
	}
}

func TestValidate_IGSTTolerance(t *testing.T) {
	inv := sample()
	inv.IGSTAmount = 580.5

	if r := Validate([]entity.ExtractedInvoice{inv}); len(r.Warnings) != 0 {
		t.Errorf("Warnings = %+v, want none within tolerance", r.Warnings)
	}
}

func TestRows(t *testing.T) {
	inv := sample()
	inv.MealIGSTPercent = 18
	inv.CGSTPercent = 2.5

	rows := Rows([]entity.ExtractedInvoice{inv})
	if len(rows) != 1 {
		t.Fatalf("len(Rows()) = %d, want 1", len(rows))
	}
	row := rows[0]
	if len(row) != len(constants.CSVHeaders) {
		t.Fatalf("len(row) = %d, want %d", len(row), len(constants.CSVHeaders))
	}

	cell := func(header string) string {
		for i, h := range constants.CSVHeaders {
			if h == header {
				return row[i]
			}
		}
		t.Fatalf("no column %q", header)
		return ""
	}

	checks := map[string]string{
		"Airline Invoice no.": "DL1252605AJ43633",
		"Taxable Value":       "11598.00",
		"IGST %":              "5",
		"CGST %":              "2.5",
		"Meal IGST %":         "18",
		"Meal":                "0.00",
		"Grand Total":         "12566.00",
	}
	for header, want := range checks {
		if got := cell(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestHeaderIsACopy(t *testing.T) {
	h := Header()
	h[0] = "changed"
	if strings.EqualFold(constants.CSVHeaders[0], "changed") {
		t.Error("Header() returned the shared slice")
	}
}
