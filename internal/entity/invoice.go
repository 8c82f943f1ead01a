package entity

// ExtractedInvoice is the flat record produced for one airline tax invoice.
// Every key is always present: strings default to "" and numbers to 0.
type ExtractedInvoice struct {
	DocumentType       string  `json:"documentType"`
	AirlineInvoiceNo   string  `json:"airlineInvoiceNo"`
	AirlineInvoiceDate string  `json:"airlineInvoiceDate"`
	AirlineGSTNo       string  `json:"airlineGSTNo"`
	PassengerName      string  `json:"passengerName"`
	PNR                string  `json:"pnr"`
	FlightNo           string  `json:"flightNo"`
	From               string  `json:"from"`
	To                 string  `json:"to"`
	PlaceOfSupply      string  `json:"placeOfSupply"`
	ClientGSTNo        string  `json:"clientGSTNo"`
	GSTINCustomerName  string  `json:"gstinCustomerName"`
	TaxableValue       float64 `json:"taxableValue"`
	NonTaxableValue    float64 `json:"nonTaxableValue"`
	CGSTAmount         float64 `json:"cgstAmount"`
	CGSTPercent        float64 `json:"cgstPercent"`
	SGSTAmount         float64 `json:"sgstAmount"`
	SGSTPercent        float64 `json:"sgstPercent"`
	IGSTAmount         float64 `json:"igstAmount"`
	IGSTPercent        float64 `json:"igstPercent"`
	Meal               float64 `json:"meal"`
	MealCGSTAmount     float64 `json:"mealCGSTAmount"`
	MealCGSTPercent    float64 `json:"mealCGSTPercent"`
	MealSGSTAmount     float64 `json:"mealSGSTAmount"`
	MealSGSTPercent    float64 `json:"mealSGSTPercent"`
	MealIGSTAmount     float64 `json:"mealIGSTAmount"`
	MealIGSTPercent    float64 `json:"mealIGSTPercent"`
	GrandTotal         float64 `json:"grandTotal"`
	FileName           string  `json:"fileName"`
}

// TotalTax sums the six tax amount fields.
func (inv ExtractedInvoice) TotalTax() float64 {
	return inv.CGSTAmount + inv.SGSTAmount + inv.IGSTAmount +
		inv.MealCGSTAmount + inv.MealSGSTAmount + inv.MealIGSTAmount
}
