package producer

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
	"github.com/danielpatrickdp/datasentinel/producer/internal/enginetest"
	"github.com/danielpatrickdp/datasentinel/producer/internal/generator"
	"github.com/danielpatrickdp/datasentinel/producer/internal/transport"
)

// #region fakes

// fakeSession scripts Connect and SendReceive outcomes.
type fakeSession struct {
	connectErrs []error
	sendErrs    []error
	result      func(req transport.Request) codec.Result

	connected bool
	connects  int
	closes    int
	sent      []transport.Request
}

func (f *fakeSession) Connect(context.Context) error {
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		if err != nil {
			return err
		}
	}
	f.connected = true
	return nil
}

func (f *fakeSession) SendReceive(_ context.Context, req transport.Request) (codec.Result, error) {
	f.sent = append(f.sent, req)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		if err != nil {
			return codec.Result{}, err
		}
	}
	if f.result != nil {
		return f.result(req), nil
	}
	return codec.Result{Status: codec.StatusOK, Score: 0.01, HasScore: true, Message: "OK"}, nil
}

func (f *fakeSession) Close() error {
	f.closes++
	f.connected = false
	return nil
}

func (f *fakeSession) Protocol() config.Protocol { return config.ProtocolTCP }
func (f *fakeSession) Target() string            { return "127.0.0.1:9000" }

// recorder captures every wait instead of sleeping.
type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func connectErr() error {
	return &transport.Error{Kind: transport.KindConnect, Op: "connect", Target: "127.0.0.1:9000", Err: errors.New("connection refused")}
}

func newTestLoop(t *testing.T, cfg config.ProducerConfig, s transport.Session, opts ...Option) *Loop {
	t.Helper()
	require.NoError(t, cfg.Validate())
	opts = append([]Option{WithGenerator(generator.New(cfg, rand.NewPCG(1, 2)))}, opts...)
	return NewLoop(cfg, s, opts...)
}

// #endregion fakes

// #region step-tests

func TestStep_ConnectFailureWaitsConnectCooldown(t *testing.T) {
	s := &fakeSession{connectErrs: []error{connectErr()}}
	l := newTestLoop(t, config.Default(), s)

	assert.Equal(t, StateDisconnected, l.State())
	assert.Equal(t, 3*time.Second, l.Step(context.Background()))
	assert.Equal(t, StateDisconnected, l.State())
	assert.Empty(t, s.sent)

	assert.Equal(t, time.Second, l.Step(context.Background()))
	assert.Equal(t, StateConnected, l.State())
	assert.Len(t, s.sent, 1)
	assert.Equal(t, uint64(1), l.Stats().Failures[transport.KindConnect])
}

func TestStep_IOFailureTearsDownAndReconnects(t *testing.T) {
	for _, kind := range []transport.Kind{transport.KindTimeout, transport.KindConnectionLost} {
		t.Run(kind.String(), func(t *testing.T) {
			s := &fakeSession{sendErrs: []error{&transport.Error{Kind: kind, Op: "receive"}}}
			l := newTestLoop(t, config.Default(), s)

			assert.Equal(t, time.Second, l.Step(context.Background()))
			assert.Equal(t, StateDisconnected, l.State())
			assert.Equal(t, 1, s.closes)

			assert.Equal(t, time.Second, l.Step(context.Background()))
			assert.Equal(t, StateConnected, l.State())
			assert.Equal(t, 2, s.connects)
			assert.Equal(t, uint64(1), l.Stats().Failures[kind])
		})
	}
}

func TestStep_UnclassifiedErrorReconnects(t *testing.T) {
	s := &fakeSession{sendErrs: []error{errors.New("boom")}}
	l := newTestLoop(t, config.Default(), s)

	l.Step(context.Background())
	assert.Equal(t, StateDisconnected, l.State())
	assert.Equal(t, 1, s.closes)
}

func TestStep_ProtocolErrorKeepsSession(t *testing.T) {
	s := &fakeSession{sendErrs: []error{&transport.Error{Kind: transport.KindProtocol, Code: "Internal", Detail: "bad frame"}}}
	l := newTestLoop(t, config.Default(), s)

	assert.Equal(t, time.Second, l.Step(context.Background()))
	assert.Equal(t, StateConnected, l.State())
	assert.Zero(t, s.closes)

	l.Step(context.Background())
	assert.Equal(t, 1, s.connects)
	assert.Len(t, s.sent, 2)
}

func TestStep_ErrorVerdictDoesNotReconnect(t *testing.T) {
	s := &fakeSession{result: func(req transport.Request) codec.Result {
		if len(req.Values) != generator.FeatureCount {
			return codec.Result{Status: codec.StatusError, Message: "Invalid input size"}
		}
		return codec.Result{Status: codec.StatusOK, HasScore: true, Score: 0.02}
	}}
	l := newTestLoop(t, config.Default(), s)

	for i := 0; i < 10; i++ {
		assert.Equal(t, time.Second, l.Step(context.Background()))
	}
	assert.Equal(t, 1, s.connects)
	assert.Zero(t, s.closes)
	stats := l.Stats()
	assert.Equal(t, uint64(1), stats.Results[codec.StatusError])
	assert.Equal(t, uint64(10), stats.Evaluated())
	assert.Empty(t, stats.Failures)
}

func TestStep_CycleCounterIsMonotonic(t *testing.T) {
	s := &fakeSession{}
	l := newTestLoop(t, config.Default(), s)

	for i := 0; i < 25; i++ {
		l.Step(context.Background())
	}
	assert.Equal(t, uint64(25), l.Cycle())
	for i, req := range s.sent {
		if generator.IsInvalidCycle(uint64(i)) {
			assert.Len(t, req.Values, generator.InvalidCount, "cycle %d", i)
		} else {
			assert.Len(t, req.Values, generator.FeatureCount, "cycle %d", i)
		}
	}
}

func TestStep_RequestIDs(t *testing.T) {
	s := &fakeSession{}
	l := newTestLoop(t, config.Default(), s)
	l.Step(context.Background())
	l.Step(context.Background())

	require.Len(t, s.sent, 2)
	_, err := uuid.Parse(s.sent[0].ID)
	require.NoError(t, err)
	assert.NotEqual(t, s.sent[0].ID, s.sent[1].ID)
}

func TestStep_CancelledConnectIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeSession{connectErrs: []error{connectErr()}}
	l := newTestLoop(t, config.Default(), s)

	assert.Zero(t, l.Step(ctx))
	assert.Empty(t, l.Stats().Failures)
}

// #endregion step-tests

// #region run-tests

func TestRun_ReconnectsAfterConnectFailure(t *testing.T) {
	cfg := config.Default()
	cfg.MaxCycles = 1
	s := &fakeSession{connectErrs: []error{connectErr()}}
	rec := &recorder{}
	l := newTestLoop(t, cfg, s, WithSleeper(rec.sleep))

	require.NoError(t, l.Run(context.Background()))

	assert.Equal(t, 2, s.connects)
	assert.Equal(t, []time.Duration{3 * time.Second}, rec.waits)
	stats := l.Stats()
	assert.GreaterOrEqual(t, stats.Evaluated(), uint64(1))
	assert.Equal(t, uint64(1), stats.Connects)
	assert.Equal(t, 1, s.closes)
	assert.Equal(t, StateDisconnected, l.State())
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &fakeSession{}
	waits := 0
	l := newTestLoop(t, config.Default(), s, WithSleeper(func(ctx context.Context, d time.Duration) error {
		waits++
		if waits == 3 {
			cancel()
		}
		return ctx.Err()
	}))

	require.NoError(t, l.Run(ctx))
	assert.Len(t, s.sent, 3)
	assert.Equal(t, 1, s.closes)
}

func TestRun_LogsFailureCategoryAndTarget(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := config.Default()
	cfg.MaxCycles = 1
	s := &fakeSession{connectErrs: []error{connectErr()}}
	rec := &recorder{}
	l := newTestLoop(t, cfg, s, WithSleeper(rec.sleep), WithLogger(zap.New(core)))

	require.NoError(t, l.Run(context.Background()))

	failures := logs.FilterMessage("engine connect failed").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.Equal(t, "connect", fields["category"])
	assert.Equal(t, "127.0.0.1:9000", fields["target"])
	assert.Contains(t, fields["error"], "connection refused")

	verdicts := logs.FilterMessage("received verdict").All()
	require.Len(t, verdicts, 1)
	assert.Equal(t, 0.01, verdicts[0].ContextMap()["score"])
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, sleepContext(ctx, 0), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
}

// #endregion run-tests

// #region engine-tests

func TestRun_StructuredEngineErrorVerdict(t *testing.T) {
	engine := enginetest.StartGRPC(t)
	cfg := config.Default()
	cfg.Protocol = config.ProtocolGRPC
	cfg.AnomalyRate = 0
	cfg.MaxCycles = 10

	session := transport.NewStructuredSession(engine.Target(), cfg.ConnectTimeout, cfg.RequestTimeout, engine.DialOptions()...)
	rec := &recorder{}
	l := newTestLoop(t, cfg, session, WithSleeper(rec.sleep))

	require.NoError(t, l.Run(context.Background()))

	reqs := engine.Requests()
	require.Len(t, reqs, 10)
	for i, values := range reqs[:9] {
		require.Len(t, values, generator.FeatureCount, "cycle %d", i)
		for _, v := range values {
			assert.True(t, v >= -1 && v <= 1)
		}
	}
	assert.Len(t, reqs[9], generator.InvalidCount)
	assert.Len(t, engine.RequestIDs(), 10)

	stats := l.Stats()
	assert.Equal(t, uint64(1), stats.Connects)
	assert.Equal(t, uint64(9), stats.Results[codec.StatusOK])
	assert.Equal(t, uint64(1), stats.Results[codec.StatusError])
	assert.Empty(t, stats.Failures)
	for _, w := range rec.waits {
		assert.Equal(t, cfg.Interval, w)
	}
}

func TestRun_LineEngineRecoversFromDrop(t *testing.T) {
	engine := enginetest.StartLine(t, enginetest.WithDropAfter(3))
	cfg := config.Default()
	cfg.MaxCycles = 5
	cfg.AnomalyRate = 1

	session := transport.NewLineSession(engine.Addr(), cfg.ConnectTimeout, cfg.RequestTimeout)
	rec := &recorder{}
	l := newTestLoop(t, cfg, session, WithSleeper(rec.sleep))

	require.NoError(t, l.Run(context.Background()))

	stats := l.Stats()
	assert.Equal(t, uint64(5), stats.Evaluated())
	assert.Equal(t, uint64(5), stats.Results[codec.StatusAnomaly])
	assert.Equal(t, uint64(2), stats.Connects)
	assert.Equal(t, uint64(1), stats.Failures[transport.KindConnectionLost])
}

// #endregion engine-tests
