package lifecycle

import (
	"context"
	"fmt"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

// ticketLock admits one holder at a time. Waiters blocked on the channel
// send are woken in the order they started waiting, and a waiter whose
// context ends gives up its place.
type ticketLock struct {
	ch chan struct{}
}

func newTicketLock() *ticketLock {
	return &ticketLock{ch: make(chan struct{}, 1)}
}

func (l *ticketLock) acquire(ctx context.Context) error {
	// A context that is already done never takes the lock.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBusy, err)
	}

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrBusy, ctx.Err())
	}
}

func (l *ticketLock) release() {
	<-l.ch
}
