package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
)

var (
	reGSTToken       = regexp.MustCompile(gstin)
	reDecimal        = regexp.MustCompile(`[\d,]+\.\d{2}`)
	reSpaces         = regexp.MustCompile(`\s+`)
	reTrailingPunct  = regexp.MustCompile(`[,.]$`)
	reLongToken      = regexp.MustCompile(`([A-Z0-9]{10,})`)
	reNameLabels     = regexp.MustCompile(`(?is)\b(?:PNR|Flight\s*No|From|To|Place\s*of\s*Supply|GSTIN|Date|Number)\b.*$`)
	reClientKeyword  = regexp.MustCompile(`(?i)customer|client|bill to|buyer`)
	reCompanyPrefix  = regexp.MustCompile(`(?i)^(?:Bill\s*To|Customer|Company|Invoice\s*To)[:#]?\s*`)
	reLeadingMarks   = regexp.MustCompile(`^[:#\s]+`)
	reCutGSTIN       = regexp.MustCompile(`(?i)\s*GSTIN.*$`)
	reCutGST         = regexp.MustCompile(`(?i)\s*GST.*$`)
	reCutAddress     = regexp.MustCompile(`(?i)\s*Address.*$`)
	reContactHeading = regexp.MustCompile(`(?i)^(?:GSTIN|GST|Phone|Email|Tel|Fax|Address)`)
	reFlightSep      = regexp.MustCompile(`[\s-]+`)
)

var clientContextWords = []string{"customer", "client", "bill to", "billed to", "buyer", "sold to"}

const (
	gstContextRadius = 100
	mealSectionRunes = 200
	igstRowGroup     = 4
)

func (e *Extractor) buildCascades() {
	c := e.cfg

	e.invoiceNo = Cascade[string]{
		Field: FieldInvoiceNo,
		Strategies: []Strategy[string]{
			captureFirst(c.patterns(FieldInvoiceNo), trimmed),
			lineScan(func(s string) bool { return containsFold(s, "invoice") }, 0, 1, func(s string) (string, bool) {
				m := reLongToken.FindStringSubmatch(s)
				if m == nil {
					return "", false
				}
				return m[1], true
			}),
		},
	}

	e.invoiceDate = Cascade[string]{
		Field:      FieldInvoiceDate,
		Strategies: []Strategy[string]{captureFirst(c.patterns(FieldInvoiceDate), trimmed)},
	}

	e.airlineGST = Cascade[string]{
		Field:      FieldAirlineGST,
		Strategies: []Strategy[string]{captureAny(c.patterns(FieldAirlineGST), validGST)},
	}

	e.passengerName = Cascade[string]{
		Field:      FieldPassengerName,
		Strategies: []Strategy[string]{captureFirst(c.patterns(FieldPassengerName), passengerName)},
	}

	e.pnr = Cascade[string]{
		Field:      FieldPNR,
		Strategies: []Strategy[string]{captureFirst(c.patterns(FieldPNR), upper)},
	}

	e.flightNo = Cascade[string]{
		Field:      FieldFlightNo,
		Strategies: []Strategy[string]{captureFirst(c.patterns(FieldFlightNo), flightNumber)},
	}

	e.from = Cascade[string]{
		Field: FieldFrom,
		Strategies: []Strategy[string]{
			captureFirst(c.patterns(FieldFrom), upper),
			cityLookup(c.fromCity),
		},
	}
	e.to = Cascade[string]{
		Field: FieldTo,
		Strategies: []Strategy[string]{
			captureFirst(c.patterns(FieldTo), upper),
			cityLookup(c.toCity),
		},
	}

	e.placeOfSupply = Cascade[string]{
		Field:      FieldPlaceOfSupply,
		Strategies: primaryThenFallback(c.patterns(FieldPlaceOfSupply), trimmed, firstSegment),
	}

	e.clientGST = Cascade[string]{
		Field: FieldClientGST,
		Strategies: []Strategy[string]{
			captureFirst(c.patterns(FieldClientGST), validGST),
			clientGSTByContext,
			lineScan(reClientKeyword.MatchString, 0, 5, func(s string) (string, bool) {
				return validGST(reGSTToken.FindString(s))
			}),
		},
	}

	e.customerName = Cascade[string]{
		Field: FieldCustomerName,
		Strategies: append(
			primaryThenFallback(c.patterns(FieldCustomerName), labelledName, cleanName),
			captureFirst(c.patterns(FieldCustomerNearGST), nameBeforeGST),
			captureFirst(c.patterns(FieldCustomerBillTo), billToName),
			lineScan(func(s string) bool { return containsFold(s, "bill to", "customer", "sold to") }, 1, 3, companyLine),
		),
	}

	e.airTravel = Cascade[float64]{
		Field:      FieldAirTravelTaxable,
		Strategies: []Strategy[float64]{captureFirst(c.patterns(FieldAirTravelTaxable), amount)},
	}
	e.nonTaxable = Cascade[float64]{
		Field:      FieldNonTaxableValue,
		Strategies: []Strategy[float64]{captureFirst(c.patterns(FieldNonTaxableValue), amount)},
	}
	e.cgstAmount = Cascade[float64]{
		Field:      FieldCGSTAmount,
		Strategies: []Strategy[float64]{captureFirst(c.patterns(FieldCGSTAmount), amount)},
	}
	e.cgstPercent = Cascade[float64]{
		Field:      FieldCGSTPercent,
		Strategies: []Strategy[float64]{captureFirst(c.patterns(FieldCGSTPercent), percent)},
	}
	e.sgstAmount = Cascade[float64]{
		Field:      FieldSGSTAmount,
		Strategies: []Strategy[float64]{captureFirst(c.patterns(FieldSGSTAmount), amount)},
	}
	e.sgstPercent = Cascade[float64]{
		Field:      FieldSGSTPercent,
		Strategies: []Strategy[float64]{captureFirst(c.patterns(FieldSGSTPercent), percent)},
	}

	e.meal = Cascade[float64]{
		Field:      FieldMeal,
		Strategies: []Strategy[float64]{captureFirst(c.patterns(FieldMeal), amount)},
	}

	// Meal CGST/SGST reuse the primary CGST/SGST patterns inside the meal section.
	e.mealCGSTAmount = mealSectionCascade(c, FieldCGSTAmount, amount)
	e.mealCGSTPercent = mealSectionCascade(c, FieldCGSTPercent, percent)
	e.mealSGSTAmount = mealSectionCascade(c, FieldSGSTAmount, amount)
	e.mealSGSTPercent = mealSectionCascade(c, FieldSGSTPercent, percent)

	e.igstAmount = Cascade[float64]{
		Field: FieldIGSTFlight,
		Strategies: []Strategy[float64]{
			e.igstByRate,
			lastGroup(c.patterns(FieldIGSTGrandTotalRow), igstRowGroup),
		},
	}

	mealIGST := c.patterns(FieldMealIGSTAmount)
	e.mealIGSTAmount = Cascade[float64]{
		Field: FieldMealIGSTAmount,
		Strategies: []Strategy[float64]{
			captureFirst(head(mealIGST), amount),
			func(doc *Document) (float64, bool) {
				if e.meal.Run(doc) <= 0 {
					return 0, false
				}
				return captureFirst(tail(mealIGST), amount)(doc)
			},
		},
	}

	e.grandTotal = Cascade[float64]{
		Field: FieldGrandTotal,
		Strategies: []Strategy[float64]{
			lastDecimalInWindow(c.patterns(FieldGrandTotal)),
			maxOfMatches(c.patterns(FieldGrandTotalFallback)),
		},
	}
}

func (e *Extractor) documentType(doc *Document) string {
	for _, re := range e.cfg.patterns(FieldDocumentType) {
		if re.MatchString(doc.Text) {
			return constants.DocumentTypeCreditNote
		}
	}
	return constants.DocumentTypeInvoice
}

// igstByRate takes the number printed right after the flight rate token and
// adds the one after the meal rate token. Positional: a reordered tax table
// yields wrong values.
func (e *Extractor) igstByRate(doc *Document) (float64, bool) {
	flight, ok := captureFirst(e.cfg.patterns(FieldIGSTFlight), amount)(doc)
	if !ok {
		return 0, false
	}
	meal, _ := captureFirst(e.cfg.patterns(FieldIGSTMeal), amount)(doc)
	return flight + meal, true
}

func (e *Extractor) mealIGSTPercent(doc *Document) float64 {
	for _, re := range e.cfg.patterns(FieldMealPresent) {
		if re.MatchString(doc.Text) {
			return e.cfg.TaxRates.MealGST
		}
	}
	return 0
}

func mealSectionCascade(c *Config, f Field, accept func(string) (float64, bool)) Cascade[float64] {
	inner := captureFirst(head(c.patterns(f)), accept)
	return Cascade[float64]{
		Field: f,
		Strategies: []Strategy[float64]{
			func(doc *Document) (float64, bool) {
				section := ""
				for _, re := range c.patterns(FieldMealSection) {
					if loc := re.FindStringIndex(doc.Text); loc != nil {
						section = prefixRunes(doc.Text[loc[0]:], mealSectionRunes)
						break
					}
				}
				if section == "" {
					return 0, false
				}
				return inner(&Document{Text: section})
			},
		},
	}
}

// clientGSTByContext skips the first GSTIN (the airline's) and picks the first
// later one with a customer keyword nearby, else the second one.
func clientGSTByContext(doc *Document) (string, bool) {
	locs := reGSTToken.FindAllStringIndex(doc.Text, -1)
	if len(locs) < 2 {
		return "", false
	}
	for _, loc := range locs[1:] {
		if containsFold(runeWindow(doc.Text, loc[0], gstContextRadius), clientContextWords...) {
			return doc.Text[loc[0]:loc[1]], true
		}
	}
	return doc.Text[locs[1][0]:locs[1][1]], true
}

func cityLookup(cities []cityPattern) Strategy[string] {
	return func(doc *Document) (string, bool) {
		for _, cp := range cities {
			if cp.re.MatchString(doc.Text) {
				return cp.code, true
			}
		}
		return "", false
	}
}

// lastGroup returns capture group idx of the first matching pattern.
func lastGroup(patterns []*regexp.Regexp, idx int) Strategy[float64] {
	return func(doc *Document) (float64, bool) {
		for _, re := range patterns {
			m := re.FindStringSubmatch(doc.Text)
			if len(m) > idx {
				return ParseAmount(m[idx]), true
			}
		}
		return 0, false
	}
}

func lastDecimalInWindow(patterns []*regexp.Regexp) Strategy[float64] {
	return func(doc *Document) (float64, bool) {
		for _, re := range patterns {
			window := re.FindString(doc.Text)
			if window == "" {
				continue
			}
			nums := reDecimal.FindAllString(window, -1)
			if len(nums) > 0 {
				return ParseAmount(nums[len(nums)-1]), true
			}
		}
		return 0, false
	}
}

func maxOfMatches(patterns []*regexp.Regexp) Strategy[float64] {
	return func(doc *Document) (float64, bool) {
		best := 0.0
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(doc.Text, -1) {
				if len(m) < 2 {
					continue
				}
				if v := ParseAmount(m[1]); v > best {
					best = v
				}
			}
		}
		return best, best > 0
	}
}

func passengerName(s string) (string, bool) {
	s = reNameLabels.ReplaceAllString(s, "")
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if len(s) <= 2 || len(s) >= 50 || strings.ContainsFunc(s, unicode.IsDigit) {
		return "", false
	}
	return s, true
}

func flightNumber(s string) (string, bool) {
	s = strings.ToUpper(reFlightSep.ReplaceAllString(strings.TrimSpace(s), ""))
	if len(s) < 3 {
		return "", false
	}
	return s[:2] + "-" + s[2:], true
}

func firstSegment(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, ",\n"); i >= 0 {
		s = s[:i]
	}
	return trimmed(s)
}

func labelledName(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, len(s) > 3
}

func cleanName(s string) (string, bool) {
	s = strings.TrimSpace(reSpaces.ReplaceAllString(strings.TrimSpace(s), " "))
	s = strings.TrimSpace(reTrailingPunct.ReplaceAllString(s, ""))
	if len(s) <= 3 || len(s) >= 200 {
		return "", false
	}
	if i := strings.Index(s, ","); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s, plausibleName(s)
}

func nameBeforeGST(s string) (string, bool) {
	s = strings.TrimSpace(reCompanyPrefix.ReplaceAllString(strings.TrimSpace(s), ""))
	if len(s) <= 3 || len(s) >= 200 || allDigits(s) {
		return "", false
	}
	return s, true
}

func billToName(s string) (string, bool) {
	s = reLeadingMarks.ReplaceAllString(strings.TrimSpace(s), "")
	s = reCutGSTIN.ReplaceAllString(s, "")
	s = reCutGST.ReplaceAllString(s, "")
	s = strings.TrimSpace(reCutAddress.ReplaceAllString(s, ""))
	if len(s) <= 3 || len(s) >= 200 {
		return "", false
	}
	return s, plausibleName(s)
}

func companyLine(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) <= 3 || len(s) >= 200 || !plausibleName(s) || reContactHeading.MatchString(s) {
		return "", false
	}
	return firstSegment(s)
}

func plausibleName(s string) bool {
	return s != "" && !allDigits(s) && strings.ContainsFunc(s, isASCIILetter)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// runeWindow returns up to radius runes either side of byte offset at.
func runeWindow(s string, at, radius int) string {
	start := at
	for i := 0; i < radius && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:start])
		start -= size
	}
	return s[start:at] + prefixRunes(s[at:], radius)
}

func prefixRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func head(res []*regexp.Regexp) []*regexp.Regexp {
	if len(res) == 0 {
		return nil
	}
	return res[:1]
}

func tail(res []*regexp.Regexp) []*regexp.Regexp {
	if len(res) < 2 {
		return nil
	}
	return res[1:]
}
