package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, Config{Driver: DriverSQLite}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
	if err := db.HealthCheck(context.Background(), time.Second); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	sessions := NewSessionRepository(db, nil)
	invoices := NewInvoiceRepository(db, nil)

	start := time.Date(2025, 5, 1, 10, 0, 0, 123, time.UTC)
	s := entity.ProcessingSession{
		SessionID:   uuid.New(),
		UserEmail:   "ops@example.com",
		StartTime:   start,
		ToolVersion: constants.ToolVersion,
	}
	if err := sessions.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	fileStart := start.Add(time.Second)
	a := entity.FileRecord{Name: "a.pdf", Size: 10, Status: constants.FileStatusProcessing, StartTime: &fileStart}
	if err := sessions.UpsertFile(ctx, s.SessionID, 0, a); err != nil {
		t.Fatalf("UpsertFile() error = %v", err)
	}
	fileEnd := start.Add(2 * time.Second)
	a.Status = constants.FileStatusCompleted
	a.EndTime = &fileEnd
	if err := sessions.UpsertFile(ctx, s.SessionID, 0, a); err != nil {
		t.Fatalf("UpsertFile() second call error = %v", err)
	}
	b := entity.FileRecord{Name: "b.pdf", Size: 20, Status: constants.FileStatusError, Error: "Failed to parse PDF"}
	if err := sessions.UpsertFile(ctx, s.SessionID, 1, b); err != nil {
		t.Fatalf("UpsertFile() error = %v", err)
	}

	inv := entity.ExtractedInvoice{DocumentType: "Invoice", PNR: "CZFDFS", GrandTotal: 12566, FileName: "a.pdf"}
	if _, err := invoices.Insert(ctx, s.SessionID, inv); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	end := start.Add(time.Minute)
	s.EndTime = &end
	s.FilesProcessed, s.SuccessCount, s.ErrorCount, s.TotalAmount = 2, 1, 1, 12566
	s.Errors = []entity.FileError{{File: "b.pdf", Error: "Failed to parse PDF"}}
	if err := sessions.Update(ctx, s); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := sessions.Get(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserEmail != s.UserEmail || !got.StartTime.Equal(start) {
		t.Errorf("Get() identity = %q %v", got.UserEmail, got.StartTime)
	}
	if got.EndTime == nil || !got.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, end)
	}
	if got.SuccessCount != 1 || got.ErrorCount != 1 || got.TotalAmount != 12566 {
		t.Errorf("counters = %+v", got)
	}
	if len(got.Errors) != 1 || got.Errors[0].File != "b.pdf" {
		t.Errorf("Errors = %+v", got.Errors)
	}
	if len(got.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(got.Files))
	}
	if f := got.Files[0]; f.Name != "a.pdf" || f.Status != constants.FileStatusCompleted || f.Result == nil || f.Result.PNR != "CZFDFS" {
		t.Errorf("Files[0] = %+v", f)
	}
	if f := got.Files[0]; f.EndTime == nil || !f.EndTime.Equal(fileEnd) {
		t.Errorf("Files[0].EndTime = %v, want %v", f.EndTime, fileEnd)
	}
	if f := got.Files[1]; f.Result != nil || f.Error != "Failed to parse PDF" || f.StartTime != nil {
		t.Errorf("Files[1] = %+v", f)
	}

	list, err := invoices.ListBySession(ctx, s.SessionID)
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(list) != 1 || list[0] != inv {
		t.Errorf("ListBySession() = %+v", list)
	}
}

func TestSessionRepository_GetMissing(t *testing.T) {
	sessions := NewSessionRepository(openTestDB(t), nil)
	_, err := sessions.Get(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSessionRepository_ListRecent(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessionRepository(openTestDB(t), nil)

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		s := entity.ProcessingSession{SessionID: uuid.New(), StartTime: base.Add(time.Duration(i) * time.Hour)}
		if err := sessions.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, s.SessionID)
	}

	got, err := sessions.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(got) != 2 || got[0].SessionID != ids[2] || got[1].SessionID != ids[1] {
		t.Errorf("ListRecent() = %v, want newest two", got)
	}
}

func TestUpsertFile_RequiresSession(t *testing.T) {
	sessions := NewSessionRepository(openTestDB(t), nil)
	err := sessions.UpsertFile(context.Background(), uuid.New(), 0, entity.FileRecord{Name: "a.pdf", Status: constants.FileStatusPending})
	if !errors.Is(err, common.ErrDatabase) {
		t.Errorf("UpsertFile() error = %v, want ErrDatabase", err)
	}
}
