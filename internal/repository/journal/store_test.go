package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

func openTemp(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// TestStore_AppendList checks ordering, limits and field round trip.
func TestStore_AppendList(t *testing.T) {
	t.Parallel()

	store := openTemp(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.Append(ctx, &domain.Transition{
		From: domain.StatusNone, To: domain.StatusPending, Kind: "security", Event: domain.EventPending, Actor: "u@h", At: at,
	}))
	require.NoError(t, store.Append(ctx, &domain.Transition{
		From: domain.StatusPending, To: domain.StatusActive, AlarmID: "A1", Kind: "security", Event: domain.EventCreated, At: at.Add(time.Second),
	}))

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, domain.StatusActive, all[0].To)
	require.Equal(t, "A1", all[0].AlarmID)
	require.Equal(t, at.Add(time.Second), all[0].At)
	require.Equal(t, "u@h", all[1].Actor)
	require.Greater(t, all[0].ID, all[1].ID)

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

// TestOpen_Reopen ensures the schema migration is idempotent.
func TestOpen_Reopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, &domain.Transition{From: domain.StatusNone, To: domain.StatusPending}))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)

	defer func() {
		_ = store.Close()
	}()

	all, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

// TestStore_CloseNil tolerates a nil store.
func TestStore_CloseNil(t *testing.T) {
	t.Parallel()

	require.NoError(t, (*Store)(nil).Close())
}
