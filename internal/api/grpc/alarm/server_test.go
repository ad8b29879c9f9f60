package alarm

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/service/lifecycle"
	"github.com/oshokin/alarm-coordinator/internal/service/panel"
)

// fakeLifecycle implements Lifecycle for unit testing the transport.
type fakeLifecycle struct {
	session *domain.Session
	err     error

	sensors []domain.Sensor
	kind    domain.Kind
	alert   domain.Alert
	actor   *domain.Actor
}

func (f *fakeLifecycle) TriggerSensorEvent(
	ctx context.Context,
	sensors []domain.Sensor,
	kind domain.Kind,
) (*domain.Session, error) {
	f.actor = lifecycle.ActorFromContext(ctx)
	f.sensors = sensors
	f.kind = kind

	if f.err != nil {
		return nil, f.err
	}

	f.session = &domain.Session{Status: domain.StatusPending, Kind: kind, LastEventType: domain.EventPending}

	return f.session, nil
}

func (f *fakeLifecycle) ConfirmPending(context.Context) (*domain.Session, error) {
	if f.err != nil {
		return nil, f.err
	}

	f.session = &domain.Session{AlarmID: "A1", Status: domain.StatusActive, Kind: f.kind, OwnerID: "U1"}

	return f.session, nil
}

func (f *fakeLifecycle) Cancel(ctx context.Context) (*domain.Session, error) {
	f.actor = lifecycle.ActorFromContext(ctx)

	if f.err != nil {
		return nil, f.err
	}

	f.session = domain.NewSession()

	return f.session, nil
}

func (f *fakeLifecycle) GetStatus(context.Context) (*domain.Session, error) {
	return f.session, f.err
}

func (f *fakeLifecycle) CreateEvent(context.Context, domain.Sensor) error { return f.err }

func (f *fakeLifecycle) CreateAlert(_ context.Context, alert domain.Alert) error {
	f.alert = alert

	return f.err
}

func (f *fakeLifecycle) Session(context.Context) *domain.Session {
	if f.session == nil {
		return domain.NewSession()
	}

	return f.session
}

type fakePanel struct {
	commands []panel.Command
}

func (f *fakePanel) Execute(_ context.Context, cmd panel.Command) (*panel.State, error) {
	f.commands = append(f.commands, cmd)

	return &panel.State{Mode: panel.ModeArmedAway, Session: domain.NewSession()}, nil
}

type fakeJournal struct {
	limit int
}

func (f *fakeJournal) List(_ context.Context, limit int) ([]*domain.Transition, error) {
	f.limit = limit

	return []*domain.Transition{{
		ID:      7,
		From:    domain.StatusActive,
		To:      domain.StatusNone,
		AlarmID: "A1",
		Kind:    "security",
		Event:   "CANCELED",
		Actor:   "o.shokin@desk",
		At:      time.Unix(100, 0),
	}}, nil
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()

	st, err := NewStruct(m)
	require.NoError(t, err)

	return st
}

func TestServer_TriggerSensorEvent(t *testing.T) {
	t.Parallel()

	lc := new(fakeLifecycle)
	s := NewServer(lc, new(fakePanel), nil)

	req := mustStruct(t, map[string]any{
		FieldKind:    "monitoring",
		FieldSensors: SensorsToValue([]domain.Sensor{{EntityID: "binary_sensor.pendant"}}),
		FieldActor:   ActorToValue(&domain.Actor{Hostname: "hub", Username: "automation"}),
	})

	resp, err := s.TriggerSensorEvent(context.Background(), req)
	require.NoError(t, err)

	session := SessionFromStruct(resp.GetFields()[FieldSession].GetStructValue())
	require.Equal(t, domain.StatusPending, session.Status)
	require.Equal(t, domain.Monitoring{}, session.Kind)
	require.Equal(t, []domain.Sensor{{EntityID: "binary_sensor.pendant"}}, lc.sensors)
	require.Equal(t, &domain.Actor{Hostname: "hub", Username: "automation"}, lc.actor)

	_, err = s.TriggerSensorEvent(context.Background(), mustStruct(t, map[string]any{FieldKind: "fire"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_CreateEventValidation(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeLifecycle), new(fakePanel), nil)

	_, err := s.CreateEvent(context.Background(), new(structpb.Struct))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.CreateEvent(context.Background(), mustStruct(t, map[string]any{
		FieldSensor: map[string]any{FieldName: "Front Door"},
	}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.CreateEvent(context.Background(), mustStruct(t, map[string]any{
		FieldSensor: SensorToValue(domain.Sensor{EntityID: "binary_sensor.frontdoor"}),
	}))
	require.NoError(t, err)
}

func TestServer_CreateAlert(t *testing.T) {
	t.Parallel()

	lc := new(fakeLifecycle)
	s := NewServer(lc, new(fakePanel), nil)

	_, err := s.CreateAlert(context.Background(), mustStruct(t, map[string]any{
		FieldAlertType:        "water",
		FieldAlertDescription: "leak under sink",
		FieldStatus:           "open",
	}))
	require.NoError(t, err)
	require.Equal(t, domain.Alert{Type: "water", Description: "leak under sink", Status: "open"}, lc.alert)
}

func TestServer_PanelCommand(t *testing.T) {
	t.Parallel()

	p := new(fakePanel)
	s := NewServer(new(fakeLifecycle), p, nil)

	resp, err := s.PanelCommand(context.Background(), mustStruct(t, map[string]any{FieldCommand: "arm-away"}))
	require.NoError(t, err)
	require.Equal(t, "armed_away", resp.GetFields()[FieldMode].GetStringValue())
	require.Equal(t, []panel.Command{panel.CommandArmAway}, p.commands)

	_, err = s.PanelCommand(context.Background(), mustStruct(t, map[string]any{FieldCommand: "arm_night"}))
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_ListTransitions(t *testing.T) {
	t.Parallel()

	s := NewServer(new(fakeLifecycle), new(fakePanel), nil)

	resp, err := s.ListTransitions(context.Background(), new(structpb.Struct))
	require.NoError(t, err)
	require.Empty(t, TransitionsFromStruct(resp))

	journal := new(fakeJournal)
	s = NewServer(new(fakeLifecycle), new(fakePanel), journal)

	resp, err = s.ListTransitions(context.Background(), mustStruct(t, map[string]any{FieldLimit: 5}))
	require.NoError(t, err)
	require.Equal(t, 5, journal.limit)

	transitions := TransitionsFromStruct(resp)
	require.Len(t, transitions, 1)
	require.Equal(t, int64(7), transitions[0].ID)
	require.Equal(t, domain.StatusActive, transitions[0].From)
	require.Equal(t, "o.shokin@desk", transitions[0].Actor)
	require.True(t, time.Unix(100, 0).Equal(transitions[0].At))
}

func TestListLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want int
	}{
		{in: 0, want: 0},
		{in: -3, want: 0},
		{in: math.NaN(), want: 0},
		{in: math.Inf(-1), want: 0},
		{in: 2.7, want: 2},
		{in: 20, want: 20},
		{in: MaxListLimit, want: MaxListLimit},
		{in: 1e300, want: MaxListLimit},
		{in: math.Inf(1), want: MaxListLimit},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, listLimit(tt.in), tt.in)
	}

	journal := new(fakeJournal)
	s := NewServer(new(fakeLifecycle), new(fakePanel), journal)

	_, err := s.ListTransitions(context.Background(), mustStruct(t, map[string]any{FieldLimit: 1e18}))
	require.NoError(t, err)
	require.Equal(t, MaxListLimit, journal.limit)
}

func TestToStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want codes.Code
	}{
		{err: domain.ErrValidation, want: codes.InvalidArgument},
		{err: domain.ErrUnknownKind, want: codes.InvalidArgument},
		{err: domain.ErrAuth, want: codes.Unauthenticated},
		{err: domain.ErrNetwork, want: codes.Unavailable},
		{err: domain.ErrServer, want: codes.Internal},
		{err: errors.Join(domain.ErrBusy, context.DeadlineExceeded), want: codes.DeadlineExceeded},
		{err: errors.Join(domain.ErrBusy, context.Canceled), want: codes.Canceled},
		{err: domain.ErrBusy, want: codes.Aborted},
		{err: errors.New("boom"), want: codes.Unknown},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}

// TestServer_Roundtrip exercises the hand-declared service descriptor over a real connection.
func TestServer_Roundtrip(t *testing.T) {
	t.Parallel()

	listener := bufconn.Listen(1 << 20)
	grpcServer := grpc.NewServer()
	lc := new(fakeLifecycle)
	RegisterAlarmLifecycleServer(grpcServer, NewServer(lc, new(fakePanel), new(fakeJournal)))

	go func() {
		_ = grpcServer.Serve(listener)
	}()

	t.Cleanup(grpcServer.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
	})

	client := NewAlarmLifecycleClient(conn)
	ctx := context.Background()

	_, err = client.Call(ctx, MethodTriggerSensorEvent, mustStruct(t, map[string]any{FieldKind: "security"}))
	require.NoError(t, err)

	resp, err := client.Call(ctx, MethodConfirmPendingAlarm, nil)
	require.NoError(t, err)

	session := SessionFromStruct(resp.GetFields()[FieldSession].GetStructValue())
	require.Equal(t, "A1", session.AlarmID)
	require.Equal(t, domain.StatusActive, session.Status)

	lc.err = domain.ErrNetwork

	_, err = client.Call(ctx, MethodCancelAlarm, nil)
	require.Equal(t, codes.Unavailable, status.Code(err))

	_, err = client.Call(ctx, "NoSuchMethod", nil)
	require.Equal(t, codes.Unimplemented, status.Code(err))
}
