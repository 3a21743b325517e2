// Package transport owns the connection to the inference engine. Two Session
// variants exist, one per wire protocol, and are picked once at startup.
package transport

import (
	"context"

	"google.golang.org/grpc"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
)

// #region session

// Request is one vector to evaluate. ID correlates logs with the engine.
type Request struct {
	ID     string
	Values []float64
}

// Session is one connection to the engine with strict request/response
// alternation. Implementations are not safe for concurrent use.
type Session interface {
	// Connect blocks until the connection is usable or fails with KindConnect.
	// It is a no-op on a connected session.
	Connect(ctx context.Context) error
	// SendReceive encodes req for the session's protocol and waits for the
	// decoded reply within the configured request timeout.
	SendReceive(ctx context.Context, req Request) (codec.Result, error)
	// Close releases the connection. It is idempotent.
	Close() error
	Protocol() config.Protocol
	Target() string
}

// #endregion session

// #region factory

// New returns the Session variant selected by cfg.Protocol. dialOpts only
// apply to the gRPC variant.
func New(cfg config.ProducerConfig, dialOpts ...grpc.DialOption) (Session, error) {
	p, err := config.ParseProtocol(string(cfg.Protocol))
	if err != nil {
		return nil, err
	}
	switch p {
	case config.ProtocolGRPC:
		return NewStructuredSession(cfg.Target(), cfg.ConnectTimeout, cfg.RequestTimeout, dialOpts...), nil
	default:
		return NewLineSession(cfg.Target(), cfg.ConnectTimeout, cfg.RequestTimeout), nil
	}
}

// #endregion factory
