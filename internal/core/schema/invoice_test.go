package schema

import (
	"testing"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

func TestValidateInvoice(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	ok := entity.ExtractedInvoice{DocumentType: "Invoice", AirlineGSTNo: "07AABCI2726B1Z4", GrandTotal: 12566}
	if err := v.ValidateInvoice(ok); err != nil {
		t.Errorf("ValidateInvoice(valid) error = %v", err)
	}

	tests := []struct {
		name string
		inv  entity.ExtractedInvoice
	}{
		{"negative amount", entity.ExtractedInvoice{DocumentType: "Invoice", GrandTotal: -1}},
		{"bad gstin", entity.ExtractedInvoice{DocumentType: "Invoice", ClientGSTNo: "27AAICK"}},
		{"unknown document type", entity.ExtractedInvoice{DocumentType: "Receipt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.ValidateInvoice(tt.inv); err == nil {
				t.Error("ValidateInvoice() error = nil, want error")
			}
		})
	}
}

func TestValidateJSON(t *testing.T) {
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}

	tests := []struct {
		name string
		data string
	}{
		{"missing keys", `{"documentType":"Invoice"}`},
		{"not json", `{`},
		{"string amount", `{"grandTotal":"12,566.00"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.ValidateJSON([]byte(tt.data)); err == nil {
				t.Error("ValidateJSON() error = nil, want error")
			}
		})
	}
}
