package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

const (
	tableSessions = "processing_sessions"
	tableFiles    = "session_files"
)

var sessionColumns = []string{
	"id", "user_email", "tool_version", "started_at", "ended_at",
	"files_processed", "success_count", "error_count", "total_amount", "errors",
}

type SessionRepository interface {
	Create(ctx context.Context, s entity.ProcessingSession) error
	Update(ctx context.Context, s entity.ProcessingSession) error
	UpsertFile(ctx context.Context, sessionID uuid.UUID, seq int, f entity.FileRecord) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ProcessingSession, error)
	ListRecent(ctx context.Context, limit int) ([]entity.ProcessingSession, error)
}

type sessionRepo struct {
	db       *DB
	invoices InvoiceRepository
	logger   *slog.Logger
}

func NewSessionRepository(db *DB, logger *slog.Logger) SessionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionRepo{db: db, invoices: NewInvoiceRepository(db, logger), logger: logger}
}

func (r *sessionRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect())
}

func (r *sessionRepo) Create(ctx context.Context, s entity.ProcessingSession) error {
	errs, err := marshalErrors(s.Errors)
	if err != nil {
		return err
	}
	d := r.db.Dialect()
	q, args := r.builder().Insert(tableSessions).
		Columns(sessionColumns...).
		Values(
			s.SessionID, s.UserEmail, s.ToolVersion, timeArg(d, s.StartTime), nullTimeArg(d, s.EndTime),
			s.FilesProcessed, s.SuccessCount, s.ErrorCount, s.TotalAmount, errs,
		).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to create session", "session_id", s.SessionID, "error", err)
		return fmt.Errorf("%w: create session: %w", common.ErrDatabase, err)
	}
	return nil
}

func (r *sessionRepo) Update(ctx context.Context, s entity.ProcessingSession) error {
	errs, err := marshalErrors(s.Errors)
	if err != nil {
		return err
	}
	d := r.db.Dialect()
	q, args := r.builder().Update(tableSessions).
		Set("ended_at", nullTimeArg(d, s.EndTime)).
		Set("files_processed", s.FilesProcessed).
		Set("success_count", s.SuccessCount).
		Set("error_count", s.ErrorCount).
		Set("total_amount", s.TotalAmount).
		Set("errors", errs).
		Where(entsql.EQ("id", s.SessionID)).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to update session", "session_id", s.SessionID, "error", err)
		return fmt.Errorf("%w: update session: %w", common.ErrDatabase, err)
	}
	return nil
}

func (r *sessionRepo) UpsertFile(ctx context.Context, sessionID uuid.UUID, seq int, f entity.FileRecord) error {
	d := r.db.Dialect()
	q, args := r.builder().Insert(tableFiles).
		Columns("session_id", "seq", "name", "size", "status", "started_at", "ended_at", "error").
		Values(sessionID, seq, f.Name, f.Size, string(f.Status), nullTimeArg(d, f.StartTime), nullTimeArg(d, f.EndTime), f.Error).
		OnConflict(entsql.ConflictColumns("session_id", "seq"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to upsert session file", "session_id", sessionID, "file_name", f.Name, "error", err)
		return fmt.Errorf("%w: upsert file: %w", common.ErrDatabase, err)
	}
	return nil
}

// Get loads a session with its files; completed files carry their stored
// invoice as Result.
func (r *sessionRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ProcessingSession, error) {
	q, args := r.builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id)).
		Query()

	var found []entity.ProcessingSession
	if err := queryEach(ctx, r.db.Driver, q, args, func(rows *entsql.Rows) error {
		s, err := scanSession(rows)
		if err == nil {
			found = append(found, s)
		}
		return err
	}); err != nil {
		return nil, fmt.Errorf("%w: get session: %w", common.ErrDatabase, err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: session %s", common.ErrNotFound, id)
	}
	s := found[0]

	files, err := r.listFiles(ctx, id)
	if err != nil {
		return nil, err
	}
	invoices, err := r.invoices.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	// invoices come back in insert order, which is file order within a name
	byName := make(map[string][]entity.ExtractedInvoice, len(invoices))
	for _, inv := range invoices {
		byName[inv.FileName] = append(byName[inv.FileName], inv)
	}
	for i := range files {
		queue := byName[files[i].Name]
		if len(queue) == 0 || files[i].Status != constants.FileStatusCompleted {
			continue
		}
		inv := queue[0]
		byName[files[i].Name] = queue[1:]
		files[i].Result = &inv
	}
	s.Files = files
	return &s, nil
}

func (r *sessionRepo) listFiles(ctx context.Context, id uuid.UUID) ([]entity.FileRecord, error) {
	q, args := r.builder().Select("name", "size", "status", "started_at", "ended_at", "error").
		From(entsql.Table(tableFiles)).
		Where(entsql.EQ("session_id", id)).
		OrderBy("seq").
		Query()

	files := []entity.FileRecord{}
	err := queryEach(ctx, r.db.Driver, q, args, func(rows *entsql.Rows) error {
		var (
			f          entity.FileRecord
			status     string
			start, end dbTime
		)
		if err := rows.Scan(&f.Name, &f.Size, &status, &start, &end, &f.Error); err != nil {
			return err
		}
		f.Status = constants.FileStatus(status)
		f.StartTime, f.EndTime = start.ptr(), end.ptr()
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list files: %w", common.ErrDatabase, err)
	}
	return files, nil
}

// ListRecent returns the newest sessions first, without files.
func (r *sessionRepo) ListRecent(ctx context.Context, limit int) ([]entity.ProcessingSession, error) {
	if limit <= 0 {
		limit = 20
	}
	q, args := r.builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		OrderBy(entsql.Desc("started_at")).
		Limit(limit).
		Query()

	out := []entity.ProcessingSession{}
	err := queryEach(ctx, r.db.Driver, q, args, func(rows *entsql.Rows) error {
		s, err := scanSession(rows)
		if err == nil {
			out = append(out, s)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %w", common.ErrDatabase, err)
	}
	return out, nil
}

func scanSession(rows *entsql.Rows) (entity.ProcessingSession, error) {
	var (
		s          entity.ProcessingSession
		start, end dbTime
		errs       string
	)
	if err := rows.Scan(
		&s.SessionID, &s.UserEmail, &s.ToolVersion, &start, &end,
		&s.FilesProcessed, &s.SuccessCount, &s.ErrorCount, &s.TotalAmount, &errs,
	); err != nil {
		return s, err
	}
	s.StartTime = start.Time
	s.EndTime = end.ptr()
	s.Errors = []entity.FileError{}
	if errs != "" {
		if err := json.Unmarshal([]byte(errs), &s.Errors); err != nil {
			return s, fmt.Errorf("decode errors: %w", err)
		}
	}
	s.Files = []entity.FileRecord{}
	return s, nil
}

func marshalErrors(errs []entity.FileError) (string, error) {
	if errs == nil {
		errs = []entity.FileError{}
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return "", fmt.Errorf("encode errors: %w", err)
	}
	return string(b), nil
}
