//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/alarm-coordinator/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-coordinator/internal/config"
	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

// Client wraps the gRPC AlarmLifecycle client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the coordinator.
	conn *grpc.ClientConn
	// api invokes AlarmLifecycle methods.
	api *api.AlarmLifecycleClient

	// callTimeout is the default timeout for individual RPC calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// PanelState is the panel view returned by a panel command.
type PanelState struct {
	Mode    string
	Session *domain.Session
}

var (
	// errAddressRequired is returned when a required address value is missing.
	errAddressRequired = errors.New("address must be provided")
	// errActorRequired is returned when an actor is not provided but is required for the operation.
	errActorRequired = errors.New("actor must be provided")
)

// Dial establishes a gRPC connection to the coordinator.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alarm coordinator: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewAlarmLifecycleClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Trigger records a pending alarm of kind raised by sensors.
func (c *Client) Trigger(
	ctx context.Context,
	actor *domain.Actor,
	kind string,
	sensors []domain.Sensor,
) (*domain.Session, error) {
	return c.sessionCall(ctx, api.MethodTriggerSensorEvent, actor, map[string]any{
		api.FieldKind:    kind,
		api.FieldSensors: api.SensorsToValue(sensors),
	})
}

// Confirm escalates the pending alarm.
func (c *Client) Confirm(ctx context.Context, actor *domain.Actor) (*domain.Session, error) {
	return c.sessionCall(ctx, api.MethodConfirmPendingAlarm, actor, nil)
}

// Cancel discards the pending alarm or cancels the active one.
func (c *Client) Cancel(ctx context.Context, actor *domain.Actor) (*domain.Session, error) {
	return c.sessionCall(ctx, api.MethodCancelAlarm, actor, nil)
}

// Status refreshes the remote status of the active alarm.
func (c *Client) Status(ctx context.Context, actor *domain.Actor) (*domain.Session, error) {
	return c.sessionCall(ctx, api.MethodGetAlarmStatus, actor, nil)
}

// CreateEvent reports another sensor event on the active alarm.
func (c *Client) CreateEvent(ctx context.Context, actor *domain.Actor, sensor domain.Sensor) (*domain.Session, error) {
	return c.sessionCall(ctx, api.MethodCreateEvent, actor, map[string]any{
		api.FieldSensor: api.SensorToValue(sensor),
	})
}

// CreateAlert posts a standalone alert.
func (c *Client) CreateAlert(ctx context.Context, actor *domain.Actor, alert domain.Alert) error {
	if actor == nil {
		return errActorRequired
	}

	_, err := c.call(ctx, api.MethodCreateAlert, map[string]any{
		api.FieldActor:            api.ActorToValue(actor),
		api.FieldAlertType:        alert.Type,
		api.FieldAlertDescription: alert.Description,
		api.FieldStatus:           alert.Status,
	})

	return err
}

// Panel executes a panel command.
func (c *Client) Panel(ctx context.Context, actor *domain.Actor, command string) (*PanelState, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	resp, err := c.call(ctx, api.MethodPanelCommand, map[string]any{
		api.FieldActor:   api.ActorToValue(actor),
		api.FieldCommand: command,
	})
	if err != nil {
		return nil, err
	}

	return &PanelState{
		Mode:    resp.GetFields()[api.FieldMode].GetStringValue(),
		Session: api.SessionFromStruct(resp.GetFields()[api.FieldSession].GetStructValue()),
	}, nil
}

// Session returns the tracked session without contacting the remote service.
func (c *Client) Session(ctx context.Context) (*domain.Session, error) {
	resp, err := c.call(ctx, api.MethodGetSession, nil)
	if err != nil {
		return nil, err
	}

	return api.SessionFromStruct(resp.GetFields()[api.FieldSession].GetStructValue()), nil
}

// History returns up to limit recent transitions, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]*domain.Transition, error) {
	resp, err := c.call(ctx, api.MethodListTransitions, map[string]any{api.FieldLimit: limit})
	if err != nil {
		return nil, err
	}

	return api.TransitionsFromStruct(resp), nil
}

func (c *Client) sessionCall(
	ctx context.Context,
	method string,
	actor *domain.Actor,
	fields map[string]any,
) (*domain.Session, error) {
	if actor == nil {
		return nil, errActorRequired
	}

	if fields == nil {
		fields = make(map[string]any, 1)
	}

	fields[api.FieldActor] = api.ActorToValue(actor)

	resp, err := c.call(ctx, method, fields)
	if err != nil {
		return nil, err
	}

	return api.SessionFromStruct(resp.GetFields()[api.FieldSession].GetStructValue()), nil
}

func (c *Client) call(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	var (
		req *structpb.Struct
		err error
	)

	if fields != nil {
		if req, err = api.NewStruct(fields); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Call(callCtx, method, req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return resp, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
