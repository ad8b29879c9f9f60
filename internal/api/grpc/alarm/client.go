package alarm

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AlarmLifecycleClient is the client API of the AlarmLifecycle service.
type AlarmLifecycleClient struct {
	cc grpc.ClientConnInterface
}

// NewAlarmLifecycleClient creates a client on cc.
func NewAlarmLifecycleClient(cc grpc.ClientConnInterface) *AlarmLifecycleClient {
	return &AlarmLifecycleClient{cc: cc}
}

// Call invokes method with req and returns the response message.
func (c *AlarmLifecycleClient) Call(
	ctx context.Context,
	method string,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	if req == nil {
		req = new(structpb.Struct)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
