package extract

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
)

// Field names a pattern list in the rules configuration.
type Field string

const (
	FieldDocumentType       Field = "document_type"
	FieldInvoiceNo          Field = "invoice_no"
	FieldInvoiceDate        Field = "invoice_date"
	FieldAirlineGST         Field = "airline_gst"
	FieldPassengerName      Field = "passenger_name"
	FieldPNR                Field = "pnr"
	FieldFlightNo           Field = "flight_no"
	FieldFrom               Field = "from"
	FieldTo                 Field = "to"
	FieldPlaceOfSupply      Field = "place_of_supply"
	FieldClientGST          Field = "client_gst"
	FieldCustomerName       Field = "customer_name"
	FieldCustomerNearGST    Field = "customer_name_near_gst"
	FieldCustomerBillTo     Field = "customer_name_bill_to"
	FieldAirTravelTaxable   Field = "air_travel_taxable"
	FieldNonTaxableValue    Field = "non_taxable_value"
	FieldCGSTAmount         Field = "cgst_amount"
	FieldCGSTPercent        Field = "cgst_percent"
	FieldSGSTAmount         Field = "sgst_amount"
	FieldSGSTPercent        Field = "sgst_percent"
	FieldIGSTFlight         Field = "igst_flight"
	FieldIGSTMeal           Field = "igst_meal"
	FieldIGSTGrandTotalRow  Field = "igst_grand_total_row"
	FieldMeal               Field = "meal"
	FieldMealPresent        Field = "meal_present"
	FieldMealSection        Field = "meal_section"
	FieldMealIGSTAmount     Field = "meal_igst_amount"
	FieldGrandTotal         Field = "grand_total"
	FieldGrandTotalFallback Field = "grand_total_fallback"
)

// TaxRates are GST percentages used both as table anchors and as output values.
type TaxRates struct {
	FlightGST   float64 `toml:"flight_gst"`
	MealGST     float64 `toml:"meal_gst"`
	DefaultCGST float64 `toml:"default_cgst"`
	DefaultSGST float64 `toml:"default_sgst"`
	DefaultIGST float64 `toml:"default_igst"`
}

// DefaultTaxRates returns the rates printed on IndiGo invoices.
func DefaultTaxRates() TaxRates {
	return TaxRates{
		FlightGST:   constants.FlightGSTRate,
		MealGST:     constants.MealGSTRate,
		DefaultCGST: constants.DefaultCGSTRate,
		DefaultSGST: constants.DefaultSGSTRate,
		DefaultIGST: constants.DefaultIGSTRate,
	}
}

// Config is the immutable rule set injected into an Extractor. Treat every
// field as read-only once built.
type Config struct {
	Patterns     map[Field][]*regexp.Regexp
	AirportCodes []constants.CityCode
	TaxRates     TaxRates

	fromCity []cityPattern
	toCity   []cityPattern
}

type cityPattern struct {
	code string
	re   *regexp.Regexp
}

const gstin = `\d{2}[A-Z]{5}\d{4}[A-Z]\d[A-Z0-9]{2}`

// rateToken renders a tax rate the way the invoice table prints it ("5.00").
func rateToken(rate float64) string {
	return regexp.QuoteMeta(strconv.FormatFloat(rate, 'f', 2, 64))
}

// DefaultPatterns returns the pattern lists for the IndiGo layout. The first
// entry of each list is the primary pattern.
func DefaultPatterns(rates TaxRates) map[Field][]string {
	flight := rateToken(rates.FlightGST)
	meal := rateToken(rates.MealGST)
	return map[Field][]string{
		FieldDocumentType: {
			`(?i)GST\s*Credit\s*Note`,
			`(?i)Credit\s*Note`,
		},
		FieldInvoiceNo: {
			`(?i)Number\s*:\s*([A-Z]{2}\d{7}[A-Z0-9]+)`,
			`(?i)Invoice\s*Number\s*[:#]?\s*([A-Z0-9]+)`,
			`(?i)Invoice\s*No\s*[:#]?\s*([A-Z0-9]+)`,
			`(?i)Tax\s*Invoice\s*No\s*[:#]?\s*([A-Z0-9]+)`,
			`(?i)Document\s*No\s*[:#]?\s*([A-Z0-9]+)`,
			`([A-Z]{2}\d{7}[A-Z0-9]+)`,
		},
		FieldInvoiceDate: {
			`(?i)Date\s*:\s*(\d{1,2}-[A-Za-z]{3}-\d{4})`,
			`(?i)Date\s*[:#]?\s*(\d{1,2}[-/]\w{3}[-/]\d{4})`,
			`(?i)Invoice\s*Date\s*[:#]?\s*(\d{1,2}[-/]\w{3}[-/]\d{4})`,
			`(\d{1,2}-\w{3}-\d{4})`,
			`(\d{1,2}/\d{1,2}/\d{4})`,
		},
		FieldAirlineGST: {
			`(?i)GSTIN\s*[:#]?\s*([A-Z0-9]{15})`,
			`(?i)GST\s*No\s*[:#]?\s*([A-Z0-9]{15})`,
			`(?i)GST\s*Registration\s*[:#]?\s*([A-Z0-9]{15})`,
			`(` + gstin + `)`,
		},
		FieldPassengerName: {
			`(?i)Passenger\s*Name\s*[:#]?\s*([A-Za-z\s]+)`,
			`(?i)Guest\s*Name\s*[:#]?\s*([A-Za-z\s]+)`,
			`(?i)Name\s*[:#]?\s*([A-Za-z\s]+?)\s*PNR`,
			`(?i)Traveller\s*[:#]?\s*([A-Za-z\s]+)`,
		},
		FieldPNR: {
			`(?i)PNR\s*:\s*([A-Z0-9]{6})`,
			`(?i)PNR\s*[:#]?\s*([A-Z0-9]{6})`,
			`(?i)Booking\s*Reference\s*[:#]?\s*([A-Z0-9]{6})`,
			`(?i)Record\s*Locator\s*[:#]?\s*([A-Z0-9]{6})`,
		},
		FieldFlightNo: {
			`(?i)Flight\s*No\s*:\s*(6E\s*-\s*\d{3,4})`,
			`(?i)Flight\s*No\s*[:#]?\s*(6E[-\s]?\d{3,4})`,
			`(?i)Flight\s*[:#]?\s*(6E[-\s]?\d{3,4})`,
			`(?i)(6E\s*-\s*\d{3,4})`,
		},
		FieldFrom: {
			`(?i)From\s*:\s*([A-Z]{3})`,
			`(?i)\bFrom\b\s*[:#]?\s*([A-Z]{3})\b`,
			`(?i)\bOrigin\b\s*[:#]?\s*([A-Z]{3})\b`,
			`(?i)\bDeparture\b\s*[:#]?\s*([A-Z]{3})\b`,
		},
		FieldTo: {
			`(?i)To\s*:\s*([A-Z]{3})`,
			`(?i)\bTo\b\s*[:#]?\s*([A-Z]{3})\b`,
			`(?i)\bDestination\b\s*[:#]?\s*([A-Z]{3})\b`,
			`(?i)\bArrival\b\s*[:#]?\s*([A-Z]{3})\b`,
		},
		FieldPlaceOfSupply: {
			`(?i)Place\s*of\s*Supply\s*:\s*([A-Za-z\s]+?)\s*(?:GSTIN|\n|$)`,
			`(?i)Place\s*of\s*Supply\s*[:#]?\s*([A-Za-z\s]+)`,
			`(?i)Supply\s*State\s*[:#]?\s*([A-Za-z\s]+)`,
		},
		FieldClientGST: {
			`(?i)GSTIN\s+of\s+Customer\s*:\s*(` + gstin + `)`,
			`(?i)GSTIN\s*of\s*Customer\s*[:#]\s*(` + gstin + `)`,
			`(?i)Customer\s*GSTIN?[:#]?\s*(` + gstin + `)`,
			`(?i)Client\s*GSTIN?[:#]?\s*(` + gstin + `)`,
		},
		FieldCustomerName: {
			`(?i)GSTIN\s+Customer\s+Name\s*:\s*([A-Z0-9\s&.,\-()]+?)\s*(?:Currency|\n\n|$)`,
			`(?i)GSTIN\s*Customer\s*Name\s*[:#]\s*([^\n]+)`,
			`(?is)Bill\s*To\s*[:#]?\s*([A-Za-z0-9\s&.,\-()]+?)\s*(?:GSTIN|GST|Address|Phone|Email|Tel|Fax|\n\n|\d{2}[A-Z]{5})`,
			`(?is)Billed\s*To\s*[:#]?\s*([A-Za-z0-9\s&.,\-()]+?)\s*(?:GSTIN|GST|Address|Phone|Email|Tel|Fax|\n\n|\d{2}[A-Z]{5})`,
			`(?is)Customer\s*Name\s*[:#]?\s*([A-Za-z0-9\s&.,\-()]+?)\s*(?:GSTIN|GST|Address|Phone|Email|Tel|Fax|\n\n|\d{2}[A-Z]{5})`,
			`(?is)Customer\s*[:#]?\s*([A-Za-z0-9\s&.,\-()]+?)\s*(?:GSTIN|GST|Address|Phone|Email|Tel|Fax|\n\n|\d{2}[A-Z]{5})`,
		},
		FieldCustomerNearGST: {
			`(?i)([A-Za-z0-9\s&.,\-()]+?)\s*(?:GSTIN|GST\s*No|GST\s*Number)[:#]?\s*(` + gstin + `)`,
		},
		FieldCustomerBillTo: {
			`(?i)(?:Bill\s*To|Billed\s*To|Customer|Sold\s*To)[:#]?\s*\n?\s*([^\n]{3,100})`,
		},
		FieldAirTravelTaxable: {
			`(?i)Air\s*Travel\s*and\s*related\s*charges\s+` + constants.SACAirTravel + `\s+([\d,]+\.?\d*)`,
		},
		FieldNonTaxableValue: {
			`(?i)Airport\s*Charges\s+[\d.]+\s+([\d,]+\.\d{2})\s+[\d,]+\.\d{2}`,
		},
		FieldCGSTAmount: {
			`(?i)CGST\s*[:#]?\s*₹?\s*([\d,]+\.?\d*)`,
			`(?i)Central\s*GST\s*[:#]?\s*₹?\s*([\d,]+\.?\d*)`,
		},
		FieldCGSTPercent: {
			`(?i)CGST\s*@?\s*(\d+\.?\d*)%`,
			`(?i)CGST.*?(\d+\.?\d*)%`,
		},
		FieldSGSTAmount: {
			`(?i)SGST\s*[:#]?\s*₹?\s*([\d,]+\.?\d*)`,
			`(?i)State\s*GST\s*[:#]?\s*₹?\s*([\d,]+\.?\d*)`,
		},
		FieldSGSTPercent: {
			`(?i)SGST\s*@?\s*(\d+\.?\d*)%`,
			`(?i)SGST.*?(\d+\.?\d*)%`,
		},
		FieldIGSTFlight: {
			flight + `\s+([\d,]+\.?\d*)`,
		},
		FieldIGSTMeal: {
			meal + `\s+([\d,]+\.?\d*)`,
		},
		FieldIGSTGrandTotalRow: {
			`(?s)Grand\s*Total.{0,100}?([\d,]+\.?\d*)\s+([\d,]+\.?\d*)\s+([\d,]+\.?\d*)\s+([\d,]+\.?\d*)`,
		},
		FieldMeal: {
			`(?i)Meal\s+` + constants.SACMeal + `\s+([\d,]+\.\d{2})\s+[\d.]+`,
		},
		FieldMealPresent: {
			`(?i)Meal\s+` + constants.SACMeal + `\s+[\d,]+\.?\d*`,
		},
		FieldMealSection: {
			`(?i)meal|food|refreshment`,
		},
		FieldMealIGSTAmount: {
			`(?i)Meal\s+` + constants.SACMeal + `\s+[\d,]+\.?\d*\s+[\d.]+\s+[\d,]+\.?\d*\s+` + meal + `\s+([\d,]+\.?\d*)`,
			`(?is)Meal.*?` + meal + `\s+([\d,]+\.?\d*)`,
		},
		FieldGrandTotal: {
			`(?is)Grand\s*Total.{0,150}`,
		},
		FieldGrandTotalFallback: {
			`(?i)Total\s*\(Incl\s*Taxes\)\s*[\d,]+\.?\d*\s*([\d,]+\.?\d*)`,
			`(?i)Grand\s*Total\s*[:#]?\s*₹?\s*([\d,]+\.?\d*)`,
			`(?i)Total\s*Amount\s*[:#]?\s*₹?\s*([\d,]+\.?\d*)`,
		},
	}
}

// DefaultConfig returns the built-in IndiGo rule set.
func DefaultConfig() *Config {
	cfg, err := NewConfig(Overrides{})
	if err != nil {
		panic(fmt.Sprintf("extract: default rules do not compile: %v", err))
	}
	return cfg
}

// Overrides changes parts of the default rule set. Pattern lists replace the
// default list of the same field; airport codes replace a city's code or are
// appended after the defaults.
type Overrides struct {
	TaxRates     *TaxRates            `toml:"tax_rates"`
	Patterns     map[string][]string  `toml:"patterns"`
	AirportCodes []constants.CityCode `toml:"airport_codes"`
}

// NewConfig compiles the default rule set with overrides applied.
func NewConfig(o Overrides) (*Config, error) {
	rates := DefaultTaxRates()
	if o.TaxRates != nil {
		rates = *o.TaxRates
	}
	if rates.FlightGST <= 0 || rates.MealGST <= 0 {
		return nil, fmt.Errorf("tax rates must be positive: flight=%v meal=%v", rates.FlightGST, rates.MealGST)
	}

	sources := DefaultPatterns(rates)
	for name, list := range o.Patterns {
		f := Field(name)
		if _, ok := sources[f]; !ok {
			return nil, fmt.Errorf("unknown pattern field %q", name)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("pattern field %q: empty list", name)
		}
		sources[f] = list
	}

	cfg := &Config{
		Patterns:     make(map[Field][]*regexp.Regexp, len(sources)),
		AirportCodes: mergeAirportCodes(constants.AirportCodes, o.AirportCodes),
		TaxRates:     rates,
	}
	for f, list := range sources {
		compiled := make([]*regexp.Regexp, 0, len(list))
		for i, src := range list {
			re, err := regexp.Compile(src)
			if err != nil {
				return nil, fmt.Errorf("pattern %s[%d]: %w", f, i, err)
			}
			compiled = append(compiled, re)
		}
		cfg.Patterns[f] = compiled
	}

	for _, cc := range cfg.AirportCodes {
		city := regexp.QuoteMeta(cc.City)
		from, err := regexp.Compile(`(?i)(?:From|Origin|Departure).*?` + city)
		if err != nil {
			return nil, fmt.Errorf("airport %s: %w", cc.City, err)
		}
		to, err := regexp.Compile(`(?i)(?:To|Destination|Arrival).*?` + city)
		if err != nil {
			return nil, fmt.Errorf("airport %s: %w", cc.City, err)
		}
		cfg.fromCity = append(cfg.fromCity, cityPattern{code: cc.Code, re: from})
		cfg.toCity = append(cfg.toCity, cityPattern{code: cc.Code, re: to})
	}
	return cfg, nil
}

func mergeAirportCodes(base, extra []constants.CityCode) []constants.CityCode {
	out := make([]constants.CityCode, len(base), len(base)+len(extra))
	copy(out, base)
	for _, e := range extra {
		e.City = strings.TrimSpace(e.City)
		e.Code = strings.ToUpper(strings.TrimSpace(e.Code))
		if e.City == "" || e.Code == "" {
			continue
		}
		replaced := false
		for i := range out {
			if strings.EqualFold(out[i].City, e.City) {
				out[i].Code = e.Code
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out
}

// ParseRules decodes a TOML rules document into a compiled Config.
func ParseRules(data []byte) (*Config, error) {
	var o Overrides
	if err := toml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return NewConfig(o)
}

// LoadRules reads a TOML rules file. An empty path yields DefaultConfig.
func LoadRules(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(data)
}

func (c *Config) patterns(f Field) []*regexp.Regexp {
	return c.Patterns[f]
}
