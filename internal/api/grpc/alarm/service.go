package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "alarmcoordinator.v1.AlarmLifecycle"

// Method names of the AlarmLifecycle service.
const (
	MethodCreateEvent         = "CreateEvent"
	MethodCancelAlarm         = "CancelAlarm"
	MethodGetAlarmStatus      = "GetAlarmStatus"
	MethodConfirmPendingAlarm = "ConfirmPendingAlarm"
	MethodCreateAlert         = "CreateAlert"
	MethodTriggerSensorEvent  = "TriggerSensorEvent"
	MethodPanelCommand        = "PanelCommand"
	MethodGetSession          = "GetSession"
	MethodListTransitions     = "ListTransitions"
)

// FullMethod returns the invocation path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AlarmLifecycleServer is the server API of the AlarmLifecycle service.
// Requests and responses are protobuf structs keyed by the Field constants.
type AlarmLifecycleServer interface {
	CreateEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAlarmStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ConfirmPendingAlarm(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateAlert(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	TriggerSensorEvent(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	PanelCommand(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListTransitions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AlarmLifecycleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// ServiceDesc describes the AlarmLifecycle service for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlarmLifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCreateEvent, AlarmLifecycleServer.CreateEvent),
		unary(MethodCancelAlarm, AlarmLifecycleServer.CancelAlarm),
		unary(MethodGetAlarmStatus, AlarmLifecycleServer.GetAlarmStatus),
		unary(MethodConfirmPendingAlarm, AlarmLifecycleServer.ConfirmPendingAlarm),
		unary(MethodCreateAlert, AlarmLifecycleServer.CreateAlert),
		unary(MethodTriggerSensorEvent, AlarmLifecycleServer.TriggerSensorEvent),
		unary(MethodPanelCommand, AlarmLifecycleServer.PanelCommand),
		unary(MethodGetSession, AlarmLifecycleServer.GetSession),
		unary(MethodListTransitions, AlarmLifecycleServer.ListTransitions),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "alarmcoordinator/v1/alarm_lifecycle",
}

// RegisterAlarmLifecycleServer registers srv on s.
func RegisterAlarmLifecycleServer(s grpc.ServiceRegistrar, srv AlarmLifecycleServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(
			srv any,
			ctx context.Context,
			dec func(any) error,
			interceptor grpc.UnaryServerInterceptor,
		) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}

			server, _ := srv.(AlarmLifecycleServer)

			if interceptor == nil {
				return call(server, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(name),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				st, _ := req.(*structpb.Struct)

				return call(server, ctx, st)
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}
