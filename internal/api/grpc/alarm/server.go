package alarm

import (
	"context"
	"errors"
	"math"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
	"github.com/oshokin/alarm-coordinator/internal/logger"
	"github.com/oshokin/alarm-coordinator/internal/service/lifecycle"
	"github.com/oshokin/alarm-coordinator/internal/service/panel"
)

// Lifecycle abstracts the lifecycle operations the transport layer depends on.
type Lifecycle interface {
	TriggerSensorEvent(ctx context.Context, sensors []domain.Sensor, kind domain.Kind) (*domain.Session, error)
	ConfirmPending(ctx context.Context) (*domain.Session, error)
	Cancel(ctx context.Context) (*domain.Session, error)
	GetStatus(ctx context.Context) (*domain.Session, error)
	CreateEvent(ctx context.Context, sensor domain.Sensor) error
	CreateAlert(ctx context.Context, alert domain.Alert) error
	Session(ctx context.Context) *domain.Session
}

// Panel executes alarm panel commands.
type Panel interface {
	Execute(ctx context.Context, cmd panel.Command) (*panel.State, error)
}

// Journal lists recorded transitions, newest first.
type Journal interface {
	List(ctx context.Context, limit int) ([]*domain.Transition, error)
}

// Server implements the AlarmLifecycle gRPC API.
type Server struct {
	// lifecycle provides the alarm lifecycle operations.
	lifecycle Lifecycle
	// panel executes panel commands.
	panel Panel
	// journal serves the transition history, may be nil.
	journal Journal
}

var _ AlarmLifecycleServer = (*Server)(nil)

// NewServer wires the provided implementations into a gRPC handler.
func NewServer(lc Lifecycle, p Panel, journal Journal) *Server {
	return &Server{
		lifecycle: lc,
		panel:     p,
		journal:   journal,
	}
}

// CreateEvent reports another sensor event on the active alarm.
func (s *Server) CreateEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	sensorValue := req.GetFields()[FieldSensor].GetStructValue()
	if sensorValue == nil {
		return nil, status.Error(codes.InvalidArgument, "sensor is required")
	}

	sensor := SensorFromStruct(sensorValue)
	if sensor.EntityID == "" {
		return nil, status.Error(codes.InvalidArgument, "sensor entity_id is required")
	}

	if err := s.lifecycle.CreateEvent(ctx, sensor); err != nil {
		return nil, toStatus(err)
	}

	return sessionResponse(s.lifecycle.Session(ctx))
}

// CancelAlarm discards the pending alarm or cancels the active one.
func (s *Server) CancelAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	session, err := s.lifecycle.Cancel(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return sessionResponse(session)
}

// GetAlarmStatus refreshes the remote status of the active alarm.
func (s *Server) GetAlarmStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	session, err := s.lifecycle.GetStatus(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return sessionResponse(session)
}

// ConfirmPendingAlarm escalates the pending alarm to the remote service.
func (s *Server) ConfirmPendingAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	session, err := s.lifecycle.ConfirmPending(ctx)
	if err != nil {
		return nil, toStatus(err)
	}

	return sessionResponse(session)
}

// CreateAlert posts a standalone alert.
func (s *Server) CreateAlert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	alert := domain.Alert{
		Type:        stringField(req, FieldAlertType),
		Description: stringField(req, FieldAlertDescription),
		Status:      stringField(req, FieldStatus),
	}

	if err := s.lifecycle.CreateAlert(ctx, alert); err != nil {
		return nil, toStatus(err)
	}

	return NewStruct(map[string]any{})
}

// TriggerSensorEvent records a pending alarm raised by sensors.
func (s *Server) TriggerSensorEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	kind, err := domain.ParseKind(stringField(req, FieldKind))
	if err != nil {
		return nil, toStatus(err)
	}

	session, err := s.lifecycle.TriggerSensorEvent(ctx, SensorsFromStruct(req), kind)
	if err != nil {
		return nil, toStatus(err)
	}

	return sessionResponse(session)
}

// PanelCommand executes an alarm panel command.
func (s *Server) PanelCommand(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ctx = withActor(ctx, req)

	cmd, err := panel.ParseCommand(stringField(req, FieldCommand))
	if err != nil {
		return nil, toStatus(err)
	}

	state, err := s.panel.Execute(ctx, cmd)
	if err != nil {
		return nil, toStatus(err)
	}

	return NewStruct(map[string]any{
		FieldMode:    string(state.Mode),
		FieldSession: SessionToValue(state.Session),
	})
}

// GetSession returns the tracked session without contacting the remote service.
func (s *Server) GetSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return sessionResponse(s.lifecycle.Session(ctx))
}

// ListTransitions returns the most recent lifecycle transitions.
func (s *Server) ListTransitions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	list := make([]any, 0)

	if s.journal != nil {
		limit := listLimit(req.GetFields()[FieldLimit].GetNumberValue())

		transitions, err := s.journal.List(ctx, limit)
		if err != nil {
			logger.ErrorKV(ctx, "Failed to list transitions", "error", err)

			return nil, status.Error(codes.Internal, "unable to read journal")
		}

		for _, t := range transitions {
			list = append(list, TransitionToValue(t))
		}
	}

	return NewStruct(map[string]any{FieldTransitions: list})
}

// MaxListLimit caps the number of transitions one ListTransitions call returns.
const MaxListLimit = 1000

// listLimit turns a requested limit into a journal limit. Missing, negative
// and NaN values yield 0, which lets the journal apply its default.
func listLimit(v float64) int {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= MaxListLimit:
		return MaxListLimit
	default:
		return int(v)
	}
}

func sessionResponse(session *domain.Session) (*structpb.Struct, error) {
	response, err := NewStruct(map[string]any{FieldSession: SessionToValue(session)})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return response, nil
}

// withActor attaches the request actor for the audit trail.
func withActor(ctx context.Context, req *structpb.Struct) context.Context {
	actor := ActorFromStruct(req)
	if actor == nil {
		return ctx
	}

	ctx = logger.WithKV(ctx, "actor", actor.String())

	return lifecycle.WithActor(ctx, actor)
}

// toStatus maps lifecycle errors to gRPC status codes.
func toStatus(err error) error {
	code := codes.Unknown

	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownKind):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrAuth):
		code = codes.Unauthenticated
	case errors.Is(err, domain.ErrNetwork):
		code = codes.Unavailable
	case errors.Is(err, domain.ErrServer):
		code = codes.Internal
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, domain.ErrBusy):
		code = codes.Aborted
	}

	return status.Error(code, strings.TrimSpace(err.Error()))
}
