// Package session aggregates per-file outcomes of a batch into a
// ProcessingSession. Every function is a pure transformation: the session
// passed in is never modified.
package session

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/constants"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/extract"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// Event moves the file at Index to a new status.
type Event struct {
	Index  int
	Status constants.FileStatus
	At     time.Time
	Result *entity.ExtractedInvoice // Completed only
	Error  string                   // Error only
}

// New starts an empty session.
func New(userEmail, toolVersion string, now time.Time) entity.ProcessingSession {
	if toolVersion == "" {
		toolVersion = constants.ToolVersion
	}
	return entity.ProcessingSession{
		SessionID:   uuid.New(),
		UserEmail:   userEmail,
		StartTime:   now,
		Errors:      []entity.FileError{},
		Files:       []entity.FileRecord{},
		ToolVersion: toolVersion,
	}
}

// Reset discards all files and counters, keeping the user and tool version.
func Reset(s entity.ProcessingSession, now time.Time) entity.ProcessingSession {
	return New(s.UserEmail, s.ToolVersion, now)
}

// AddFile registers a pending file at the next index. Names may repeat;
// files are addressed by position.
func AddFile(s entity.ProcessingSession, name string, size int64) (entity.ProcessingSession, error) {
	if name == "" {
		return s, fmt.Errorf("%w: empty file name", common.ErrInvalidInput)
	}
	out := clone(s)
	out.Files = append(out.Files, entity.FileRecord{
		Name:   name,
		Size:   size,
		Status: constants.FileStatusPending,
	})
	return out, nil
}

// Apply performs one file transition and, for terminal statuses, the
// matching counter update. Allowed: Pending→Processing, Pending→Error
// (rejected before rendering), Processing→Completed, Processing→Error.
func Apply(s entity.ProcessingSession, ev Event) (entity.ProcessingSession, error) {
	i := ev.Index
	if i < 0 || i >= len(s.Files) {
		return s, fmt.Errorf("%w: no file at index %d", common.ErrNotFound, i)
	}
	name := s.Files[i].Name
	from := s.Files[i].Status
	if !allowed(from, ev.Status) {
		return s, fmt.Errorf("%w: %s %s -> %s", common.ErrInvalidTransition, name, from, ev.Status)
	}
	if ev.Status == constants.FileStatusCompleted && ev.Result == nil {
		return s, fmt.Errorf("%w: %s completed without a result", common.ErrInvalidInput, name)
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	out := clone(s)
	f := &out.Files[i]
	f.Status = ev.Status

	switch ev.Status {
	case constants.FileStatusProcessing:
		f.StartTime = &at
	case constants.FileStatusCompleted:
		f.EndTime = &at
		res := *ev.Result
		f.Result = &res
		out.SuccessCount++
		out.FilesProcessed++
		out.TotalAmount += extract.ParseAmountValue(res.GrandTotal)
	case constants.FileStatusError:
		f.EndTime = &at
		f.Error = ev.Error
		out.ErrorCount++
		out.FilesProcessed++
		out.Errors = append(out.Errors, entity.FileError{File: name, Error: ev.Error})
	}
	return out, nil
}

func allowed(from, to constants.FileStatus) bool {
	switch from {
	case constants.FileStatusPending:
		return to == constants.FileStatusProcessing || to == constants.FileStatusError
	case constants.FileStatusProcessing:
		return to.IsTerminal()
	default:
		return false
	}
}

// Finalize stamps the end time. A finalized session keeps its first end time.
func Finalize(s entity.ProcessingSession, now time.Time) entity.ProcessingSession {
	if s.EndTime != nil {
		return s
	}
	out := clone(s)
	out.EndTime = &now
	return out
}

// ProcessingTime is the session duration in whole seconds, measured to now
// while the session is still open.
func ProcessingTime(s entity.ProcessingSession, now time.Time) int64 {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	d := end.Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return int64(math.Round(d.Seconds()))
}

// SuccessRate is the rounded percentage of processed files that completed.
func SuccessRate(s entity.ProcessingSession) int {
	if s.FilesProcessed == 0 {
		return 0
	}
	return int(math.Round(float64(s.SuccessCount) / float64(s.FilesProcessed) * 100))
}

// Summary builds the reporting view.
func Summary(s entity.ProcessingSession, now time.Time) entity.SessionSummary {
	return entity.SessionSummary{
		SessionID:      s.SessionID.String(),
		UserEmail:      s.UserEmail,
		NumberOfFiles:  s.FilesProcessed,
		ProcessingTime: ProcessingTime(s, now),
		SuccessRate:    SuccessRate(s),
		ErrorCount:     s.ErrorCount,
		TotalAmount:    extract.Round2(s.TotalAmount),
		Errors:         Errors(s),
		ToolVersion:    s.ToolVersion,
	}
}

// Progress counts files by outcome.
func Progress(s entity.ProcessingSession) entity.Progress {
	p := entity.Progress{
		Total:     len(s.Files),
		Processed: s.FilesProcessed,
		Success:   s.SuccessCount,
		Errors:    s.ErrorCount,
	}
	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Processed) / float64(p.Total) * 100))
	}
	return p
}

// SuccessfulResults returns the invoices of completed files in file order.
func SuccessfulResults(s entity.ProcessingSession) []entity.ExtractedInvoice {
	out := make([]entity.ExtractedInvoice, 0, s.SuccessCount)
	for _, f := range s.Files {
		if f.Status == constants.FileStatusCompleted && f.Result != nil {
			out = append(out, *f.Result)
		}
	}
	return out
}

// Errors returns a copy of the recorded file errors.
func Errors(s entity.ProcessingSession) []entity.FileError {
	out := make([]entity.FileError, len(s.Errors))
	copy(out, s.Errors)
	return out
}

func clone(s entity.ProcessingSession) entity.ProcessingSession {
	out := s
	out.Files = make([]entity.FileRecord, len(s.Files))
	copy(out.Files, s.Files)
	out.Errors = make([]entity.FileError, len(s.Errors))
	copy(out.Errors, s.Errors)
	return out
}
