package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
)

const (
	// ServiceName is the fully qualified gRPC service of the inference engine.
	ServiceName = "datasentinel.v1.InferenceService"
	// EvaluateMethod is the full method path of the Evaluate RPC.
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
)

// #region codec

type wireMarshaler interface {
	MarshalWire() ([]byte, error)
}

type wireUnmarshaler interface {
	UnmarshalWire([]byte) error
}

// Codec is a gRPC codec for the hand-encoded datasentinel messages. It is
// named "proto" so the engine sees an ordinary application/grpc+proto call,
// and it falls back to the protobuf runtime for generated messages.
type Codec struct{}

// Name implements encoding.Codec.
func (Codec) Name() string { return "proto" }

// Marshal implements encoding.Codec.
func (Codec) Marshal(v any) ([]byte, error) {
	switch m := v.(type) {
	case wireMarshaler:
		return m.MarshalWire()
	case proto.Message:
		return proto.Marshal(m)
	}
	return nil, fmt.Errorf("codec: cannot marshal %T", v)
}

// Unmarshal implements encoding.Codec.
func (Codec) Unmarshal(data []byte, v any) error {
	switch m := v.(type) {
	case wireUnmarshaler:
		return m.UnmarshalWire(data)
	case proto.Message:
		return proto.Unmarshal(data, m)
	}
	return fmt.Errorf("codec: cannot unmarshal into %T", v)
}

// #endregion codec

// #region client-stub

// InferenceServiceClient is the client API of datasentinel.v1.InferenceService.
type InferenceServiceClient interface {
	Evaluate(ctx context.Context, in *EvaluateRequest, opts ...grpc.CallOption) (*EvaluateResponse, error)
}

type inferenceServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewInferenceServiceClient returns a stub that issues calls over cc.
func NewInferenceServiceClient(cc grpc.ClientConnInterface) InferenceServiceClient {
	return &inferenceServiceClient{cc: cc}
}

func (c *inferenceServiceClient) Evaluate(ctx context.Context, in *EvaluateRequest, opts ...grpc.CallOption) (*EvaluateResponse, error) {
	out := new(EvaluateResponse)
	opts = append([]grpc.CallOption{grpc.ForceCodec(Codec{})}, opts...)
	if err := c.cc.Invoke(ctx, EvaluateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion client-stub

// #region server-stub

// InferenceServiceServer is the server API of datasentinel.v1.InferenceService.
type InferenceServiceServer interface {
	Evaluate(ctx context.Context, in *EvaluateRequest) (*EvaluateResponse, error)
}

// ServerOption makes a grpc.Server decode requests with Codec. Servers passed
// to RegisterInferenceServiceServer must be built with it.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}

// RegisterInferenceServiceServer registers srv on s.
func RegisterInferenceServiceServer(s grpc.ServiceRegistrar, srv InferenceServiceServer) {
	s.RegisterService(&inferenceServiceDesc, srv)
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EvaluateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InferenceServiceServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InferenceServiceServer).Evaluate(ctx, req.(*EvaluateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var inferenceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InferenceServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "datasentinel/v1/inference.proto",
}

// #endregion server-stub
