package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/extract"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/tabulate"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/utils"
)

type InvoiceService struct {
	extractor *extract.Extractor
	sessions  *Sessions
	logger    *slog.Logger
}

func NewInvoiceService(extractor *extract.Extractor, sessions *Sessions, logger *slog.Logger) *InvoiceService {
	if logger == nil {
		logger = slog.Default()
	}
	if extractor == nil {
		extractor = extract.NewExtractor(nil, logger)
	}
	return &InvoiceService{extractor: extractor, sessions: sessions, logger: logger}
}

type extractTextRequest struct {
	Text     string                  `json:"text"`
	Lines    []entity.StructuredLine `json:"lines"`
	FileName string                  `json:"fileName"`
}

// ExtractText runs field extraction over already rendered text.
func (s *InvoiceService) ExtractText(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in extractTextRequest
	if err := utils.FromStruct(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	v := common.NewValidator().
		Field("text", in.Text, common.Required).
		Field("fileName", in.FileName, common.FileName, common.MaxLen(255))
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Warn("invalid extract text request", "error", v.ErrorMessage())
		return nil, err
	}

	inv := s.extractor.Extract(entity.InvoiceText{FullText: in.Text, Lines: in.Lines}, in.FileName)
	s.logger.Info("extracted invoice", "file_name", in.FileName, "pnr", inv.PNR, "grand_total", inv.GrandTotal)

	out, err := utils.ToPBInvoice(inv)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode invoice: %v", err)
	}
	return out, nil
}

// Summarize returns {"stats": ..., "report": ...} for {"invoices": [...]}.
func (s *InvoiceService) Summarize(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	invs, err := utils.InvoicesFromPB(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	out, err := utils.ToStruct(map[string]any{
		"stats":  tabulate.Summarize(invs),
		"report": tabulate.Validate(invs),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode summary: %v", err)
	}
	return out, nil
}

// GetSession returns the SessionView of {"sessionId": "..."}.
func (s *InvoiceService) GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	raw := strings.TrimSpace(req.GetFields()["sessionId"].GetStringValue())
	v := common.NewValidator().Field("sessionId", raw, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		s.logger.Error("invalid get session request", "session_id", raw, "error", v.ErrorMessage())
		return nil, err
	}
	id := uuid.MustParse(raw)
	if s.sessions == nil {
		return nil, status.Error(codes.Unavailable, "session lookup is not configured")
	}

	view, err := s.sessions.Lookup(ctx, id)
	if err != nil {
		s.logger.Warn("session lookup failed", "session_id", id, "error", err)
		return nil, common.ToStatus(err)
	}
	out, err := utils.ToStruct(view)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode session: %v", err)
	}
	return out, nil
}
