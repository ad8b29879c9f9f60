package lifecycle

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/require"
)

// TestTicketLock_ServesWaitersInArrivalOrder queues waiters one by one behind
// a holder and checks they take the lock in the order they arrived.
func TestTicketLock_ServesWaitersInArrivalOrder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		const waiters = 5

		lock := newTicketLock()
		require.NoError(t, lock.acquire(context.Background()))

		var (
			mu    sync.Mutex
			order []int
			wg    sync.WaitGroup
		)

		for i := range waiters {
			wg.Go(func() {
				if err := lock.acquire(context.Background()); err != nil {
					return
				}

				mu.Lock()
				order = append(order, i)
				mu.Unlock()

				lock.release()
			})

			// The waiter is parked on the lock before the next one starts.
			synctest.Wait()
		}

		mu.Lock()
		require.Empty(t, order)
		mu.Unlock()

		lock.release()
		wg.Wait()

		require.Equal(t, []int{0, 1, 2, 3, 4}, order)
	})
}
