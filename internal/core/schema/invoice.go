// Package schema holds the JSON-Schema output contract of an extracted invoice.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

const gstinOrEmpty = `^(?:|\d{2}[A-Z]{5}\d{4}[A-Z]\d[A-Z0-9]{2})$`

var stringFields = []string{
	"documentType", "airlineInvoiceNo", "airlineInvoiceDate", "airlineGSTNo",
	"passengerName", "pnr", "flightNo", "from", "to", "placeOfSupply",
	"clientGSTNo", "gstinCustomerName", "fileName",
}

var numberFields = []string{
	"taxableValue", "nonTaxableValue", "cgstAmount", "cgstPercent", "sgstAmount",
	"sgstPercent", "igstAmount", "igstPercent", "meal", "mealCGSTAmount",
	"mealCGSTPercent", "mealSGSTAmount", "mealSGSTPercent", "mealIGSTAmount",
	"mealIGSTPercent", "grandTotal",
}

// BuildInvoiceJSONSchema returns the contract as a generic map: every key is
// required, strings are strings and numbers are non-negative numbers.
func BuildInvoiceJSONSchema() map[string]any {
	props := make(map[string]any, len(stringFields)+len(numberFields))
	for _, k := range stringFields {
		props[k] = map[string]any{"type": "string"}
	}
	for _, k := range numberFields {
		props[k] = map[string]any{"type": "number", "minimum": 0}
	}
	props["documentType"] = map[string]any{"type": "string", "enum": []string{"Invoice", "Credit Note"}}
	props["airlineGSTNo"] = map[string]any{"type": "string", "pattern": gstinOrEmpty}
	props["clientGSTNo"] = map[string]any{"type": "string", "pattern": gstinOrEmpty}

	required := make([]string, 0, len(props))
	required = append(required, stringFields...)
	required = append(required, numberFields...)

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             required,
	}
}

// Validator checks invoices against the compiled contract. Safe for
// concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the invoice contract.
func NewValidator() (*Validator, error) {
	b, err := json.Marshal(BuildInvoiceJSONSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("invoice.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("invoice.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// ValidateJSON validates raw JSON bytes.
func (v *Validator) ValidateJSON(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidateInvoice marshals inv and validates the result.
func (v *Validator) ValidateInvoice(inv entity.ExtractedInvoice) error {
	b, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("marshal invoice: %w", err)
	}
	return v.ValidateJSON(b)
}
