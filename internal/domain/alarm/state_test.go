package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestActorClone verifies that Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{
		Hostname: "hub",
		Username: "automation",
	}

	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
	require.Equal(t, "automation@hub", a.String())
}

// TestSessionClone verifies that Clone deep-copies the created context.
func TestSessionClone(t *testing.T) {
	t.Parallel()

	s := &Session{
		AlarmID: "A1",
		Status:  StatusActive,
		Kind:    Security{},
		CreatedContext: &PendingContext{
			ID:      "p-1",
			Kind:    Security{},
			Sensors: []Sensor{{EntityID: "binary_sensor.frontdoor"}},
		},
		UpdatedAt: time.Now(),
	}

	c := s.Clone()
	require.Equal(t, s, c)
	require.NotSame(t, s.CreatedContext, c.CreatedContext)

	c.CreatedContext.Sensors[0].EntityID = "changed"
	require.Equal(t, "binary_sensor.frontdoor", s.CreatedContext.Sensors[0].EntityID)
	require.Nil(t, (*Session)(nil).Clone())
}

// TestSessionConsistent covers the alarm id / status invariant.
func TestSessionConsistent(t *testing.T) {
	t.Parallel()

	require.True(t, NewSession().Consistent())
	require.True(t, (&Session{Status: StatusPending}).Consistent())
	require.True(t, (&Session{Status: StatusActive, AlarmID: "A1"}).Consistent())
	require.False(t, (&Session{Status: StatusActive}).Consistent())
	require.False(t, (&Session{Status: StatusPending, AlarmID: "pending"}).Consistent())
	require.False(t, (&Session{Status: StatusClosed, AlarmID: "A1"}).Consistent())
}

// TestPendingSensorIDs checks the sensor id projection.
func TestPendingSensorIDs(t *testing.T) {
	t.Parallel()

	p := &PendingContext{Sensors: []Sensor{{EntityID: "a"}, {EntityID: "b"}}}
	require.Equal(t, []string{"a", "b"}, p.SensorIDs())
	require.Nil(t, (*PendingContext)(nil).SensorIDs())
}
