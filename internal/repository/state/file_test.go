package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for missing file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "missing.json"))
	s, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, s)
}

// TestFileRepository_ActiveSession ensures an active session with its context survives a restart.
func TestFileRepository_ActiveSession(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "state.json")
	repo := NewFileRepository(file)

	ts := time.Now().UTC().Truncate(time.Millisecond)
	want := &Snapshot{
		Session: &domain.Session{
			AlarmID:       "A1",
			Status:        domain.StatusActive,
			Kind:          domain.Security{},
			OwnerID:       "U1",
			Message:       "created",
			LastEventType: domain.EventCreated,
			RemoteStatus:  "ACTIVE",
			UpdatedAt:     ts,
			CreatedContext: &domain.PendingContext{
				ID:                "p-1",
				Kind:              domain.Security{},
				Sensors:           []domain.Sensor{{EntityID: "binary_sensor.frontdoor", DeviceClass: "door", Name: "Front Door"}},
				SensorDeviceClass: "door",
				SensorDeviceName:  "Front Door",
				CreatedAt:         ts,
			},
		},
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, want.Session, got.Session)
	require.Nil(t, got.Pending)

	_, err = os.Stat(file)
	require.NoError(t, err)
}

// TestFileRepository_PendingSlot ensures the pending slot is persisted.
func TestFileRepository_PendingSlot(t *testing.T) {
	t.Parallel()
	repo := NewFileRepository(filepath.Join(t.TempDir(), "state.json"))

	pending := &domain.PendingContext{
		ID:      "p-2",
		Kind:    domain.MedicalAlert{},
		Sensors: []domain.Sensor{{EntityID: "button.pendant"}},
	}
	want := &Snapshot{
		Session: &domain.Session{Status: domain.StatusPending, Kind: domain.MedicalAlert{}, LastEventType: domain.EventPending},
		Pending: pending,
	}

	require.NoError(t, repo.Save(context.Background(), want))

	got, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, got.Session.Status)
	require.Empty(t, got.Session.AlarmID)
	require.Equal(t, pending, got.Pending)
}

// TestFileRepository_Corrupted reports decode errors.
func TestFileRepository_Corrupted(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o600))

	_, err := NewFileRepository(file).Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}
