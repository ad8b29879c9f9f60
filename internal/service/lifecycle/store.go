package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/logger"
	repo "github.com/oshokin/alarm-coordinator/internal/repository/state"
)

// store holds the session and the pending slot. Writers are serialised by
// the service lock; mu only protects readers against a concurrent commit.
type store struct {
	// repo persists every committed change, may be nil.
	repo repo.Repository
	// session is the single tracked alarm.
	session *domain.Session
	// pending is the uncommitted alarm awaiting confirmation.
	pending *domain.PendingContext
	// subscribers are notified after every commit.
	subscribers []func(*domain.Session)
	// mu guards the fields above.
	mu sync.RWMutex
}

// newStore restores the last persisted snapshot, if any.
func newStore(ctx context.Context, repository repo.Repository) (*store, error) {
	s := &store{
		repo:    repository,
		session: domain.NewSession(),
	}

	if repository == nil {
		return s, nil
	}

	snapshot, err := repository.Load(ctx)

	switch {
	case err == nil:
		s.restore(ctx, snapshot)
	case errors.Is(err, repo.ErrNotFound):
		// Keep the idle session.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return s, nil
}

// restore adopts a persisted snapshot unless it breaks the invariants, in
// which case the installation starts idle.
func (s *store) restore(ctx context.Context, snapshot *Snapshot) {
	if snapshot == nil || snapshot.Session == nil {
		return
	}

	session := snapshot.Session
	pending := snapshot.Pending

	consistent := session.Consistent() && (session.Status == domain.StatusPending) == (pending != nil)
	if !consistent {
		logger.WarnKV(ctx, "Ignoring inconsistent persisted session",
			"status", session.Status, "alarm_id", session.AlarmID, "has_pending", pending != nil)

		return
	}

	s.session = session
	s.pending = pending

	logger.InfoKV(ctx, "Restored alarm session", "status", session.Status, "alarm_id", session.AlarmID)
}

// Snapshot is the persisted form of the store.
type Snapshot = repo.Snapshot

// snapshot returns copies of the session and pending slot.
func (s *store) snapshot() (*domain.Session, *domain.PendingContext) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.session.Clone(), s.pending.Clone()
}

// commit replaces the session and pending slot, persists them and notifies
// subscribers. Persistence is best effort: the in-memory state is the
// source of truth for the running process.
func (s *store) commit(ctx context.Context, session *domain.Session, pending *domain.PendingContext) {
	s.mu.Lock()
	s.session = session.Clone()
	s.pending = pending.Clone()
	subscribers := append([]func(*domain.Session){}, s.subscribers...)
	s.mu.Unlock()

	if s.repo != nil {
		err := s.repo.Save(ctx, &Snapshot{Session: session.Clone(), Pending: pending.Clone()})
		if err != nil {
			logger.ErrorKV(ctx, "Failed to persist alarm session", "error", err)
		}
	}

	for _, fn := range subscribers {
		fn(session.Clone())
	}
}

// subscribe registers fn to be called with every committed session.
func (s *store) subscribe(fn func(*domain.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = append(s.subscribers, fn)
}
