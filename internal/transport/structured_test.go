package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
	"github.com/danielpatrickdp/datasentinel/producer/internal/enginetest"
)

func connectedStructured(t *testing.T, engine *enginetest.GRPCEngine, requestTimeout time.Duration) *StructuredSession {
	t.Helper()
	s := NewStructuredSession(engine.Target(), 3*time.Second, requestTimeout, engine.DialOptions()...)
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// #region connect-tests

func TestStructuredSession_ConnectNotReady(t *testing.T) {
	s := NewStructuredSession(closedAddr(t), 300*time.Millisecond, time.Second)
	start := time.Now()
	err := s.Connect(context.Background())
	requireKind(t, err, KindConnect)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Nil(t, s.conn)
	assert.Equal(t, config.ProtocolGRPC, s.Protocol())
}

func TestStructuredSession_ConnectReady(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	s := connectedStructured(t, engine, time.Second)
	assert.NotNil(t, s.client)
	// Second connect keeps the channel.
	conn := s.conn
	require.NoError(t, s.Connect(context.Background()))
	assert.Same(t, conn, s.conn)
}

// #endregion connect-tests

// #region send-receive-tests

func TestStructuredSession_SendReceive(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	s := connectedStructured(t, engine, time.Second)

	res, err := s.SendReceive(context.Background(), Request{ID: "req-1", Values: normalVector})
	require.NoError(t, err)
	assert.Equal(t, codec.StatusOK, res.Status)
	assert.True(t, res.ScoreValid())
	assert.InDelta(t, 0.255, res.Score, 1e-9)

	assert.Equal(t, [][]float64{normalVector}, engine.Requests())
	assert.Equal(t, []string{"req-1"}, engine.RequestIDs())
}

func TestStructuredSession_ErrorVerdictIsAResult(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	s := connectedStructured(t, engine, time.Second)

	invalid := []float64{12.5, 50, 99.9, 0}
	res, err := s.SendReceive(context.Background(), Request{Values: invalid})
	require.NoError(t, err)
	assert.Equal(t, codec.StatusError, res.Status)
	assert.False(t, res.ScoreValid())
	assert.Equal(t, "Invalid input size. Expected 8, got 4", res.Message)
	assert.Equal(t, [][]float64{invalid}, engine.Requests())
}

func TestStructuredSession_RemoteFailureIsProtocolError(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	s := connectedStructured(t, engine, time.Second)
	engine.FailWith(status.Error(codes.InvalidArgument, "values rejected"))

	_, err := s.SendReceive(context.Background(), Request{Values: normalVector})
	requireKind(t, err, KindProtocol)
	var te *Error
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "InvalidArgument", te.Code)
	assert.Contains(t, te.Detail, "values rejected")

	// The channel is still usable afterwards.
	engine.FailWith(nil)
	_, err = s.SendReceive(context.Background(), Request{Values: normalVector})
	require.NoError(t, err)
}

func TestStructuredSession_UnavailableIsConnectionLost(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	s := connectedStructured(t, engine, time.Second)
	engine.FailWith(status.Error(codes.Unavailable, "going away"))

	_, err := s.SendReceive(context.Background(), Request{Values: normalVector})
	requireKind(t, err, KindConnectionLost)
}

func TestStructuredSession_Timeout(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	s := connectedStructured(t, engine, 100*time.Millisecond)
	engine.OnEvaluate(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	_, err := s.SendReceive(context.Background(), Request{Values: normalVector})
	requireKind(t, err, KindTimeout)
}

func TestStructuredSession_EngineGone(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	s := connectedStructured(t, engine, time.Second)
	engine.Stop()

	_, err := s.SendReceive(context.Background(), Request{Values: normalVector})
	require.Error(t, err)
	assert.NotEqual(t, KindProtocol, KindOf(err))
}

func TestStructuredSession_CloseIsIdempotent(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	s := connectedStructured(t, engine, time.Second)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())

	_, err := s.SendReceive(context.Background(), Request{Values: normalVector})
	requireKind(t, err, KindConnectionLost)
}

// #endregion send-receive-tests
