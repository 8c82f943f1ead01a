package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reNumberPrefix = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)`)
	reGSTIN        = regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z]\d[A-Z0-9]{2}$`)
	amountNoise    = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "INR", "")
)

// ParseAmount strips thousands separators and currency glyphs and parses the
// leading decimal number, rounded to 2 places. Anything unparseable is 0.
func ParseAmount(s string) float64 {
	s = strings.TrimSpace(amountNoise.Replace(s))
	num := reNumberPrefix.FindString(s)
	if num == "" {
		return 0
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return Round2(v)
}

// ParseAmountValue accepts the loosely typed grand totals found in stored or
// posted results: numbers, numeric strings with commas, json.Number.
func ParseAmountValue(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return Round2(x)
	case float32:
		return Round2(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		return ParseAmount(x.String())
	case string:
		return ParseAmount(x)
	default:
		return 0
	}
}

// ParsePercent parses a tax percentage such as "18.00" or "2.5%".
func ParsePercent(s string) float64 {
	return ParseAmount(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

// IsValidGST reports whether s is exactly one well-formed GSTIN.
func IsValidGST(s string) bool {
	return reGSTIN.MatchString(s)
}

// Round2 rounds half away from zero to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
