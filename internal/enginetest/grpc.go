package enginetest

import (
	"context"
	"net"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
)

const bufSize = 1 << 20

// #region grpc-engine

// GRPCEngine serves datasentinel.v1.InferenceService on a bufconn listener.
type GRPCEngine struct {
	lis *bufconn.Listener
	srv *grpc.Server

	mu         sync.Mutex
	requests   [][]float64
	requestIDs []string
	// fail, when set, is returned instead of a verdict.
	fail error
	// hook, when set, runs before each verdict and may block.
	hook func(ctx context.Context) error
}

// StartGRPC starts a GRPCEngine and stops it when the test ends.
func StartGRPC(t testing.TB) *GRPCEngine {
	t.Helper()
	e := &GRPCEngine{
		lis: bufconn.Listen(bufSize),
		srv: grpc.NewServer(codec.ServerOption()),
	}
	codec.RegisterInferenceServiceServer(e.srv, &inferenceServer{engine: e})
	go func() { _ = e.srv.Serve(e.lis) }()
	t.Cleanup(e.Stop)
	return e
}

// Target is the dial target to pair with DialOptions.
func (e *GRPCEngine) Target() string { return "passthrough:///bufnet" }

// DialOptions route a client channel to the in-memory listener.
func (e *GRPCEngine) DialOptions() []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return e.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
}

// FailWith makes subsequent calls return err (nil restores normal answers).
func (e *GRPCEngine) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail = err
}

// OnEvaluate installs a hook that runs before each verdict.
func (e *GRPCEngine) OnEvaluate(hook func(ctx context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hook = hook
}

// Requests returns the value vectors received so far.
func (e *GRPCEngine) Requests() [][]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]float64(nil), e.requests...)
}

// RequestIDs returns the x-request-id metadata received so far.
func (e *GRPCEngine) RequestIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.requestIDs...)
}

// Stop closes the server and its listener.
func (e *GRPCEngine) Stop() {
	e.srv.Stop()
	_ = e.lis.Close()
}

// #endregion grpc-engine

// #region service

type inferenceServer struct {
	engine *GRPCEngine
}

func (s *inferenceServer) Evaluate(ctx context.Context, in *codec.EvaluateRequest) (*codec.EvaluateResponse, error) {
	e := s.engine
	e.mu.Lock()
	e.requests = append(e.requests, append([]float64(nil), in.Values...))
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 {
			e.requestIDs = append(e.requestIDs, ids[0])
		}
	}
	fail, hook := e.fail, e.hook
	e.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if fail != nil {
		return nil, fail
	}
	return Evaluate(in.Values), nil
}

// #endregion service
