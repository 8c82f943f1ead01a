package constants

// ToolVersion is reported in session summaries and usage events.
const ToolVersion = "1.0.0"

// Document types.
const (
	DocumentTypeInvoice    = "Invoice"
	DocumentTypeCreditNote = "Credit Note"
)

// SAC codes printed on IndiGo tax invoices.
const (
	SACAirTravel = "996425"
	SACMeal      = "996335"
)

// Default GST rates in percent.
const (
	FlightGSTRate   = 5.0
	MealGSTRate     = 18.0
	DefaultCGSTRate = 2.5
	DefaultSGSTRate = 2.5
	DefaultIGSTRate = 5.0
)

// CSVHeaders is the fixed column set of the tabular export, in order.
var CSVHeaders = []string{
	"Document Type",
	"Airline Invoice no.",
	"Airline Invoice Date",
	"Airline GST No.",
	"Passenger Name",
	"PNR",
	"Flight No.",
	"From",
	"To",
	"Place of Supply",
	"Client GST No.",
	"GSTIN Customer Name",
	"Taxable Value",
	"Non Taxable Value",
	"CGST Amount",
	"CGST %",
	"SGST Amount",
	"SGST %",
	"IGST Amount",
	"IGST %",
	"Meal",
	"Meal CGST Amount",
	"Meal CGST %",
	"Meal SGST Amount",
	"Meal SGST %",
	"Meal IGST Amount",
	"Meal IGST %",
	"Grand Total",
}
