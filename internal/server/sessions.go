package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/common"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/async"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/core/session"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/entity"
	"github.com/yashgoyal264-hub/airline-invoice-extractor/internal/repository"
)

// SessionView is the reporting shape of a submitted or stored session.
type SessionView struct {
	State    async.State            `json:"state"`
	Summary  *entity.SessionSummary `json:"summary,omitempty"`
	Progress *entity.Progress       `json:"progress,omitempty"`
	Files    []entity.FileRecord    `json:"files,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// Sessions finds sessions in the batch queue first and then in the store.
// Either source may be nil.
type Sessions struct {
	repo  repository.SessionRepository
	queue *async.BatchQueue
	now   func() time.Time
}

func NewSessions(repo repository.SessionRepository, queue *async.BatchQueue) *Sessions {
	return &Sessions{repo: repo, queue: queue, now: time.Now}
}

func (s *Sessions) Lookup(ctx context.Context, id uuid.UUID) (SessionView, error) {
	if s.queue != nil {
		if st, ok := s.queue.Status(id); ok {
			view := SessionView{State: st.State}
			if st.Err != nil {
				view.Error = st.Err.Error()
			}
			if st.Result != nil {
				s.fill(&view, st.Result.Session)
				return view, nil
			}
			if stored, err := s.stored(ctx, id); err == nil {
				s.fill(&view, *stored)
			}
			return view, nil
		}
	}

	stored, err := s.stored(ctx, id)
	if err != nil {
		return SessionView{}, err
	}
	view := SessionView{State: async.StateRunning}
	if stored.EndTime != nil {
		view.State = async.StateDone
	}
	s.fill(&view, *stored)
	return view, nil
}

func (s *Sessions) stored(ctx context.Context, id uuid.UUID) (*entity.ProcessingSession, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: session %s", common.ErrNotFound, id)
	}
	got, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: session %s", common.ErrNotFound, id)
		}
		return nil, err
	}
	return got, nil
}

func (s *Sessions) fill(view *SessionView, ps entity.ProcessingSession) {
	sum := session.Summary(ps, s.now())
	prog := session.Progress(ps)
	view.Summary = &sum
	view.Progress = &prog
	view.Files = ps.Files
}
