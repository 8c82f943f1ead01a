package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/schema"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/repository"
)

const invoiceText = `Tax Invoice GSTIN : 07AABCI2726B1Z4 Number : DL1252605AJ43633 Date : 01-May-2025 ` +
	`PNR : CZFDFS Flight No : 6E - 5269 From : DEL To : BLR Place of Supply : Maharashtra ` +
	`Grand Total 11,598.00 388.00 11,986.00 580.00 0.00 0.00 0.00 12,566.00`

// fakeRenderer renders "pdf:<text>" payloads to <text> and fails on anything else.
type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	onRun func()
}

func (f *fakeRenderer) Render(_ context.Context, data []byte) entity.RenderResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.onRun != nil {
		f.onRun()
	}
	text, ok := strings.CutPrefix(string(data), "pdf:")
	if !ok {
		return entity.RenderResult{Error: "Failed to parse PDF: not a PDF"}
	}
	return entity.RenderResult{
		Success: true,
		Text:    text,
		Pages:   []entity.Page{{PageNumber: 1, Text: text}},
	}
}

type usageEvent struct {
	kind    string
	errType string
	file    string
	summary entity.SessionSummary
}

type recordingUsage struct {
	events []usageEvent
}

func (r *recordingUsage) SessionStart(_ context.Context, _ entity.ProcessingSession) bool {
	r.events = append(r.events, usageEvent{kind: "start"})
	return true
}

func (r *recordingUsage) SessionEnd(_ context.Context, sum entity.SessionSummary) bool {
	r.events = append(r.events, usageEvent{kind: "end", summary: sum})
	return true
}

func (r *recordingUsage) Error(_ context.Context, _ entity.ProcessingSession, errType string, fe entity.FileError) bool {
	r.events = append(r.events, usageEvent{kind: "error", errType: errType, file: fe.File})
	return true
}

func pdf(text string) entity.FileInput {
	return entity.FileInput{Data: []byte("pdf:" + text)}
}

func named(name string, in entity.FileInput) entity.FileInput {
	in.Name = name
	return in
}

func fixedClock() func() time.Time {
	t := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestProcessor_ProcessBatch(t *testing.T) {
	usage := &recordingUsage{}
	v, err := schema.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	p := NewProcessor(nil, &fakeRenderer{}, nil, WithUsage(usage), WithValidator(v), WithClock(fixedClock()))

	inputs := []entity.FileInput{
		named("a.pdf", pdf(invoiceText)),
		named("broken.pdf", entity.FileInput{Data: []byte("garbage")}),
		named("c.pdf", pdf(strings.Replace(invoiceText, "12,566.00", "1,000.00", 1))),
	}
	res, err := p.ProcessBatch(context.Background(), "ops@example.com", inputs)
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	s := res.Session
	if s.FilesProcessed != 3 || s.SuccessCount != 2 || s.ErrorCount != 1 {
		t.Errorf("counters = %d/%d/%d, want 3/2/1", s.FilesProcessed, s.SuccessCount, s.ErrorCount)
	}
	if s.EndTime == nil {
		t.Error("session not finalized")
	}
	if len(res.Invoices) != 2 || res.Invoices[0].FileName != "a.pdf" || res.Invoices[1].FileName != "c.pdf" {
		t.Fatalf("invoices = %+v", res.Invoices)
	}
	if res.Invoices[0].PNR != "CZFDFS" {
		t.Errorf("PNR = %q, want CZFDFS", res.Invoices[0].PNR)
	}
	if res.Summary.TotalAmount != 13566 {
		t.Errorf("TotalAmount = %v, want 13566", res.Summary.TotalAmount)
	}
	if res.Summary.SuccessRate != 67 {
		t.Errorf("SuccessRate = %d, want 67", res.Summary.SuccessRate)
	}
	if res.Stats.TotalInvoices != 2 {
		t.Errorf("Stats.TotalInvoices = %d, want 2", res.Stats.TotalInvoices)
	}
	if len(s.Errors) != 1 || s.Errors[0].File != "broken.pdf" || !strings.HasPrefix(s.Errors[0].Error, "Failed to parse PDF") {
		t.Errorf("Errors = %+v", s.Errors)
	}
	if got := s.Files[1].Status; got != constants.FileStatusError {
		t.Errorf("broken.pdf status = %s, want error", got)
	}

	kinds := make([]string, 0, len(usage.events))
	for _, ev := range usage.events {
		kinds = append(kinds, ev.kind)
	}
	if strings.Join(kinds, ",") != "start,error,end" {
		t.Errorf("usage events = %v", kinds)
	}
	if usage.events[1].errType != "render" || usage.events[1].file != "broken.pdf" {
		t.Errorf("error event = %+v", usage.events[1])
	}
	if usage.events[2].summary.NumberOfFiles != 3 {
		t.Errorf("end summary = %+v", usage.events[2].summary)
	}
}

func TestProcessor_Limits(t *testing.T) {
	p := NewProcessor(nil, &fakeRenderer{}, nil, WithLimits(2, 32))

	tests := []struct {
		name    string
		inputs  []entity.FileInput
		wantErr error
	}{
		{"no files", nil, common.ErrInvalidInput},
		{"too many files", []entity.FileInput{named("a", pdf("x")), named("b", pdf("x")), named("c", pdf("x"))}, common.ErrLimitExceeded},
		{"empty name", []entity.FileInput{pdf("x")}, common.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.ProcessBatch(context.Background(), "", tt.inputs)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ProcessBatch() error = %v, want %v", err, tt.wantErr)
			}
			if res != nil {
				t.Errorf("ProcessBatch() result = %+v, want nil", res)
			}
		})
	}
}

func TestProcessor_OversizeFileRejected(t *testing.T) {
	r := &fakeRenderer{}
	p := NewProcessor(nil, r, nil, WithLimits(10, 64))

	big := named("big.pdf", pdf(strings.Repeat("x", 100)))
	res, err := p.ProcessBatch(context.Background(), "", []entity.FileInput{big, named("ok.pdf", pdf(invoiceText[:40]))})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if r.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", r.calls)
	}
	f := res.Session.Files[0]
	if f.Status != constants.FileStatusError || f.StartTime != nil {
		t.Errorf("big.pdf = %+v, want error without start time", f)
	}
	if !strings.Contains(f.Error, "maximum is 64B") {
		t.Errorf("Error = %q", f.Error)
	}
	if res.Session.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", res.Session.SuccessCount)
	}
}

func TestProcessor_CancelStopsBetweenFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeRenderer{onRun: cancel}
	usage := &recordingUsage{}
	p := NewProcessor(nil, r, nil, WithUsage(usage))

	inputs := []entity.FileInput{named("a.pdf", pdf(invoiceText)), named("b.pdf", pdf(invoiceText)), named("c.pdf", pdf(invoiceText))}
	res, err := p.ProcessBatch(ctx, "", inputs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ProcessBatch() error = %v, want context.Canceled", err)
	}
	if res == nil {
		t.Fatal("ProcessBatch() result = nil, want partial result")
	}
	if r.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", r.calls)
	}
	if res.Session.FilesProcessed != 1 || res.Session.Files[2].Status != constants.FileStatusPending {
		t.Errorf("session = %+v", res.Session)
	}
	if res.Session.EndTime == nil {
		t.Error("cancelled session not finalized")
	}
	if last := usage.events[len(usage.events)-1]; last.kind != "end" {
		t.Errorf("last usage event = %q, want end", last.kind)
	}
}

func TestProcessor_PersistsToStore(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	sessions := repository.NewSessionRepository(db, nil)
	invoices := repository.NewInvoiceRepository(db, nil)

	p := NewProcessor(nil, &fakeRenderer{}, nil, WithStore(sessions, invoices), WithClock(fixedClock()))
	res, err := p.ProcessBatch(ctx, "ops@example.com", []entity.FileInput{
		named("a.pdf", pdf(invoiceText)),
		named("b.pdf", entity.FileInput{Data: []byte("nope")}),
	})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}

	got, err := sessions.Get(ctx, res.Session.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.SuccessCount != 1 || got.ErrorCount != 1 || got.EndTime == nil {
		t.Errorf("stored session = %+v", got)
	}
	if len(got.Files) != 2 || got.Files[0].Status != constants.FileStatusCompleted || got.Files[1].Status != constants.FileStatusError {
		t.Fatalf("stored files = %+v", got.Files)
	}
	if got.Files[0].Result == nil || got.Files[0].Result.GrandTotal != 12566 {
		t.Errorf("stored result = %+v", got.Files[0].Result)
	}

	stored, err := invoices.ListBySession(ctx, res.Session.SessionID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(stored) != 1 || stored[0].PNR != "CZFDFS" {
		t.Errorf("stored invoices = %+v", stored)
	}
}

func TestProcessor_RepeatedFileNames(t *testing.T) {
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{Driver: repository.DriverSQLite}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	sessions := repository.NewSessionRepository(db, nil)
	invoices := repository.NewInvoiceRepository(db, nil)

	p := NewProcessor(nil, &fakeRenderer{}, nil, WithStore(sessions, invoices))
	res, err := p.ProcessBatch(ctx, "a@b.com", []entity.FileInput{
		named("invoice.pdf", pdf(invoiceText)),
		named("invoice.pdf", pdf(invoiceText)),
	})
	if err != nil {
		t.Fatalf("ProcessBatch() error = %v", err)
	}
	if res.Session.SuccessCount != 2 || len(res.Invoices) != 2 {
		t.Errorf("SuccessCount = %d, invoices = %d, want 2/2", res.Session.SuccessCount, len(res.Invoices))
	}
	if res.Summary.TotalAmount != 25132 {
		t.Errorf("TotalAmount = %v, want 25132", res.Summary.TotalAmount)
	}

	got, err := sessions.Get(ctx, res.Session.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(got.Files) != 2 {
		t.Fatalf("stored files = %d, want 2", len(got.Files))
	}
	for i, f := range got.Files {
		if f.Name != "invoice.pdf" || f.Status != constants.FileStatusCompleted || f.Result == nil {
			t.Errorf("stored file %d = %+v", i, f)
		}
	}
}
