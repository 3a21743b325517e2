package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
)

// RequestIDHeader carries Request.ID as outgoing gRPC metadata.
const RequestIDHeader = "x-request-id"

// #region structured-session

// StructuredSession calls the engine's Evaluate RPC over one long-lived channel.
type StructuredSession struct {
	target         string
	connectTimeout time.Duration
	requestTimeout time.Duration
	dialOpts       []grpc.DialOption

	conn   *grpc.ClientConn
	client *codec.InferenceClient
}

// NewStructuredSession creates a disconnected session for target. Extra dial
// options are applied after the defaults (insecure credentials, OTel handler).
func NewStructuredSession(target string, connectTimeout, requestTimeout time.Duration, opts ...grpc.DialOption) *StructuredSession {
	return &StructuredSession{
		target:         target,
		connectTimeout: connectTimeout,
		requestTimeout: requestTimeout,
		dialOpts:       opts,
	}
}

// Protocol implements Session.
func (s *StructuredSession) Protocol() config.Protocol { return config.ProtocolGRPC }

// Target implements Session.
func (s *StructuredSession) Target() string { return s.target }

// #endregion structured-session

// #region connect

// Connect opens the channel and waits until it reports READY, bounded by the
// connect timeout. The channel is closed again when it does not get there.
func (s *StructuredSession) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.target, opts...)
	if err != nil {
		return &Error{Kind: KindConnect, Op: "connect", Target: s.target, Err: fmt.Errorf("grpc dial %s: %w", s.target, err)}
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	if err := waitReady(waitCtx, conn); err != nil {
		_ = conn.Close()
		return &Error{Kind: KindConnect, Op: "connect", Target: s.target, Err: err}
	}

	s.conn = conn
	s.client = codec.NewInferenceClient(conn)
	return nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("channel shut down")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("channel not ready (last state %s): %w", state, ctx.Err())
		}
	}
}

// #endregion connect

// #region send-receive

// SendReceive performs one Evaluate call with its own deadline. An ERROR
// verdict from the engine is a successful result.
func (s *StructuredSession) SendReceive(ctx context.Context, req Request) (codec.Result, error) {
	if s.client == nil {
		return codec.Result{}, &Error{Kind: KindConnectionLost, Op: "evaluate", Target: s.target, Err: errors.New("session not connected")}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()
	if req.ID != "" {
		callCtx = metadata.AppendToOutgoingContext(callCtx, RequestIDHeader, req.ID)
	}

	res, err := s.client.Evaluate(callCtx, req.Values)
	if err != nil {
		return codec.Result{}, s.classify(err)
	}
	return res, nil
}

// classify maps a failed call onto a Kind. Remote failures stay protocol
// errors while the channel itself is still usable.
func (s *StructuredSession) classify(err error) error {
	st := status.Convert(err)
	e := &Error{Op: "evaluate", Target: s.target, Code: st.Code().String(), Detail: st.Message(), Err: err}
	switch st.Code() {
	case codes.DeadlineExceeded:
		e.Kind = KindTimeout
	case codes.Unavailable, codes.Canceled:
		e.Kind = KindConnectionLost
	default:
		e.Kind = KindProtocol
		if s.conn != nil {
			switch s.conn.GetState() {
			case connectivity.TransientFailure, connectivity.Shutdown:
				e.Kind = KindConnectionLost
			}
		}
	}
	return e
}

// #endregion send-receive

// #region close

// Close shuts the channel down. Calling it on a closed session returns nil.
func (s *StructuredSession) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.client = nil
	return err
}

// #endregion close
