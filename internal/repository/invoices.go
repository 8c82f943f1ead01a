package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

const tableInvoices = "extracted_invoices"

type InvoiceRepository interface {
	Insert(ctx context.Context, sessionID uuid.UUID, inv entity.ExtractedInvoice) (uuid.UUID, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]entity.ExtractedInvoice, error)
}

type invoiceRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *DB, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepo{db: db, logger: logger}
}

func (r *invoiceRepo) Insert(ctx context.Context, sessionID uuid.UUID, inv entity.ExtractedInvoice) (uuid.UUID, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encode invoice: %w", err)
	}
	id := uuid.New()
	q, args := entsql.Dialect(r.db.Dialect()).Insert(tableInvoices).
		Columns("id", "session_id", "file_name", "airline_invoice_no", "pnr", "grand_total", "payload", "created_at").
		Values(id, sessionID, inv.FileName, inv.AirlineInvoiceNo, inv.PNR, inv.GrandTotal, string(payload), timeArg(r.db.Dialect(), time.Now())).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to insert invoice", "session_id", sessionID, "file_name", inv.FileName, "error", err)
		return uuid.Nil, fmt.Errorf("%w: insert invoice: %w", common.ErrDatabase, err)
	}
	r.logger.Debug("invoice stored", "invoice_id", id, "session_id", sessionID, "file_name", inv.FileName)
	return id, nil
}

func (r *invoiceRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]entity.ExtractedInvoice, error) {
	q, args := entsql.Dialect(r.db.Dialect()).Select("payload").
		From(entsql.Table(tableInvoices)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("created_at", "file_name").
		Query()

	out := []entity.ExtractedInvoice{}
	err := queryEach(ctx, r.db.Driver, q, args, func(rows *entsql.Rows) error {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		var inv entity.ExtractedInvoice
		if err := json.Unmarshal(payload, &inv); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		out = append(out, inv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list invoices: %w", common.ErrDatabase, err)
	}
	return out, nil
}
