package async

import (
	"context"
	"time"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
)

// Job is one batch waiting for the worker. Session already carries the id
// handed back to the submitter.
type Job struct {
	Session     entity.ProcessingSession
	Inputs      []entity.FileInput
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
