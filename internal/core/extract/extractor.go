package extract

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// Extractor turns rendered invoice text into an ExtractedInvoice. It holds no
// mutable state after construction and is safe for concurrent use.
type Extractor struct {
	cfg    *Config
	logger *slog.Logger

	invoiceNo     Cascade[string]
	invoiceDate   Cascade[string]
	airlineGST    Cascade[string]
	passengerName Cascade[string]
	pnr           Cascade[string]
	flightNo      Cascade[string]
	from          Cascade[string]
	to            Cascade[string]
	placeOfSupply Cascade[string]
	clientGST     Cascade[string]
	customerName  Cascade[string]

	airTravel       Cascade[float64]
	nonTaxable      Cascade[float64]
	cgstAmount      Cascade[float64]
	cgstPercent     Cascade[float64]
	sgstAmount      Cascade[float64]
	sgstPercent     Cascade[float64]
	igstAmount      Cascade[float64]
	meal            Cascade[float64]
	mealCGSTAmount  Cascade[float64]
	mealCGSTPercent Cascade[float64]
	mealSGSTAmount  Cascade[float64]
	mealSGSTPercent Cascade[float64]
	mealIGSTAmount  Cascade[float64]
	grandTotal      Cascade[float64]
}

// NewExtractor builds an extractor over cfg; nil means DefaultConfig.
func NewExtractor(cfg *Config, logger *slog.Logger) *Extractor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{cfg: cfg, logger: logger}
	e.buildCascades()
	return e
}

// Config returns the rule set in use.
func (e *Extractor) Config() *Config {
	return e.cfg
}

// ExtractDocument validates the renderer output and extracts fields from it.
// It fails only when the renderer reported failure or produced no text.
func (e *Extractor) ExtractDocument(doc entity.RenderResult, fileName string) (entity.ExtractedInvoice, error) {
	if !doc.Success || strings.TrimSpace(doc.Text) == "" {
		reason := doc.Error
		if reason == "" {
			reason = "invalid PDF data"
		}
		e.logger.Warn("extract.input.invalid", "file_name", fileName, "reason", reason)
		return entity.ExtractedInvoice{}, fmt.Errorf("%w: %w: %s", common.ErrExtractionFailed, common.ErrInvalidInput, reason)
	}
	return e.Extract(entity.InvoiceTextFrom(doc), fileName), nil
}

// Extract runs every field cascade. Misses fall back to "" or 0.
func (e *Extractor) Extract(text entity.InvoiceText, fileName string) entity.ExtractedInvoice {
	doc := &Document{Text: text.FullText, Lines: text.Lines}

	meal := e.meal.Run(doc)
	inv := entity.ExtractedInvoice{
		DocumentType:       e.documentType(doc),
		AirlineInvoiceNo:   e.invoiceNo.Run(doc),
		AirlineInvoiceDate: e.invoiceDate.Run(doc),
		AirlineGSTNo:       e.airlineGST.Run(doc),
		PassengerName:      e.passengerName.Run(doc),
		PNR:                e.pnr.Run(doc),
		FlightNo:           e.flightNo.Run(doc),
		From:               e.from.Run(doc),
		To:                 e.to.Run(doc),
		PlaceOfSupply:      e.placeOfSupply.Run(doc),
		ClientGSTNo:        e.clientGST.Run(doc),
		GSTINCustomerName:  e.customerName.Run(doc),
		TaxableValue:       e.airTravel.Run(doc) + meal,
		NonTaxableValue:    e.nonTaxable.Run(doc),
		CGSTAmount:         e.cgstAmount.Run(doc),
		CGSTPercent:        e.cgstPercent.Run(doc),
		SGSTAmount:         e.sgstAmount.Run(doc),
		SGSTPercent:        e.sgstPercent.Run(doc),
		IGSTAmount:         e.igstAmount.Run(doc),
		IGSTPercent:        e.cfg.TaxRates.FlightGST,
		Meal:               meal,
		MealCGSTAmount:     e.mealCGSTAmount.Run(doc),
		MealCGSTPercent:    e.mealCGSTPercent.Run(doc),
		MealSGSTAmount:     e.mealSGSTAmount.Run(doc),
		MealSGSTPercent:    e.mealSGSTPercent.Run(doc),
		MealIGSTAmount:     e.mealIGSTAmount.Run(doc),
		MealIGSTPercent:    e.mealIGSTPercent(doc),
		GrandTotal:         e.grandTotal.Run(doc),
		FileName:           fileName,
	}
	inv = Clean(inv)

	if inv.PNR == "" && inv.AirlineInvoiceNo == "" {
		e.logger.Warn("extract.identifiers.missing", "file_name", fileName)
	}
	e.logger.Debug("extract.done",
		"file_name", fileName,
		"invoice_no", inv.AirlineInvoiceNo,
		"pnr", inv.PNR,
		"grand_total", inv.GrandTotal,
	)
	return inv
}

// Clean trims every string field and rounds every number to 2 decimals,
// clamping negatives to 0.
func Clean(inv entity.ExtractedInvoice) entity.ExtractedInvoice {
	for _, p := range []*string{
		&inv.DocumentType, &inv.AirlineInvoiceNo, &inv.AirlineInvoiceDate, &inv.AirlineGSTNo,
		&inv.PassengerName, &inv.PNR, &inv.FlightNo, &inv.From, &inv.To, &inv.PlaceOfSupply,
		&inv.ClientGSTNo, &inv.GSTINCustomerName, &inv.FileName,
	} {
		*p = strings.TrimSpace(*p)
	}
	for _, p := range []*float64{
		&inv.TaxableValue, &inv.NonTaxableValue, &inv.CGSTAmount, &inv.CGSTPercent,
		&inv.SGSTAmount, &inv.SGSTPercent, &inv.IGSTAmount, &inv.IGSTPercent,
		&inv.Meal, &inv.MealCGSTAmount, &inv.MealCGSTPercent, &inv.MealSGSTAmount,
		&inv.MealSGSTPercent, &inv.MealIGSTAmount, &inv.MealIGSTPercent, &inv.GrandTotal,
	} {
		*p = max(0, Round2(*p))
	}
	return inv
}
