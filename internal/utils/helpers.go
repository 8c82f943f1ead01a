// Package utils converts between domain entities and the structpb payloads
// carried by the gRPC API.
package utils

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// ToStruct converts any JSON-serialisable value into a structpb.Struct using
// its JSON field names.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	return structpb.NewStruct(m)
}

// FromStruct decodes s into out through its JSON form.
func FromStruct(s *structpb.Struct, out any) error {
	if s == nil {
		return fmt.Errorf("empty message")
	}
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func ToPBInvoice(inv entity.ExtractedInvoice) (*structpb.Struct, error) {
	return ToStruct(inv)
}

// ToPBInvoices wraps invoices as {"invoices": [...]}.
func ToPBInvoices(invs []entity.ExtractedInvoice) (*structpb.Struct, error) {
	if invs == nil {
		invs = []entity.ExtractedInvoice{}
	}
	return ToStruct(map[string]any{"invoices": invs})
}

// InvoicesFromPB reads the {"invoices": [...]} shape.
func InvoicesFromPB(s *structpb.Struct) ([]entity.ExtractedInvoice, error) {
	var in struct {
		Invoices []entity.ExtractedInvoice `json:"invoices"`
	}
	if err := FromStruct(s, &in); err != nil {
		return nil, err
	}
	return in.Invoices, nil
}

func ToPBSummary(sum entity.SessionSummary) (*structpb.Struct, error) {
	if sum.Errors == nil {
		sum.Errors = []entity.FileError{}
	}
	return ToStruct(sum)
}
