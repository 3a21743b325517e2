// Package producer drives the synthetic telemetry stream: it owns one
// transport session, reconnects when it breaks, and paces the requests.
package producer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
	"github.com/danielpatrickdp/datasentinel/producer/internal/generator"
	"github.com/danielpatrickdp/datasentinel/producer/internal/transport"
)

const tracerName = "github.com/danielpatrickdp/datasentinel/producer/internal/producer"

// #region sleeper

// Sleeper waits for d or until ctx is done, returning ctx.Err() in that case.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// #endregion sleeper

// #region loop-struct

// Loop is the producer state machine. It is single-threaded: Run and Step
// must not be called concurrently.
type Loop struct {
	cfg     config.ProducerConfig
	session transport.Session
	gen     *generator.Generator
	policy  RetryPolicy
	log     *zap.Logger
	tracer  trace.Tracer
	sleep   Sleeper
	newID   func() string

	runID string
	state State
	cycle uint64
	stats Stats
}

// Option customizes a Loop.
type Option func(*Loop)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(lp *Loop) { lp.log = l }
}

// WithGenerator replaces the randomly seeded generator.
func WithGenerator(g *generator.Generator) Option {
	return func(lp *Loop) { lp.gen = g }
}

// WithSleeper replaces the real-time pacing and cooldown waits.
func WithSleeper(s Sleeper) Option {
	return func(lp *Loop) { lp.sleep = s }
}

// WithTracer sets the tracer used for per-cycle spans.
func WithTracer(t trace.Tracer) Option {
	return func(lp *Loop) { lp.tracer = t }
}

// WithRequestIDs replaces the request id source.
func WithRequestIDs(next func() string) Option {
	return func(lp *Loop) { lp.newID = next }
}

// NewLoop creates a disconnected loop that will drive session with cfg.
func NewLoop(cfg config.ProducerConfig, session transport.Session, opts ...Option) *Loop {
	l := &Loop{
		cfg:     cfg,
		session: session,
		policy:  NewRetryPolicy(cfg),
		log:     zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		sleep:   sleepContext,
		newID:   uuid.NewString,
		runID:   uuid.NewString(),
		state:   StateDisconnected,
		stats:   newStats(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.gen == nil {
		l.gen = generator.New(cfg, nil)
	}
	l.log = l.log.With(
		zap.String("run_id", l.runID),
		zap.String("protocol", string(session.Protocol())),
		zap.String("target", session.Target()),
	)
	return l
}

// State returns the current connection state.
func (l *Loop) State() State { return l.state }

// Cycle returns the index the next payload will be generated for.
func (l *Loop) Cycle() uint64 { return l.cycle }

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats { return l.stats.clone() }

// #endregion loop-struct

// #region run

// Run steps the state machine until ctx is cancelled or MaxCycles responses
// have been evaluated. Transport failures never end it. The session is closed
// on return.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("producer started",
		zap.Float64("anomaly_rate", l.cfg.AnomalyRate),
		zap.Duration("interval", l.cfg.Interval),
	)
	defer func() {
		if err := l.session.Close(); err != nil {
			l.log.Debug("close session", zap.Error(err))
		}
		l.state = StateDisconnected
		s := l.stats
		l.log.Info("producer stopped",
			zap.Uint64("sent", s.Sent),
			zap.Uint64("evaluated", s.Evaluated()),
			zap.Uint64("connects", s.Connects),
		)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if l.cfg.MaxCycles > 0 && l.stats.Evaluated() >= uint64(l.cfg.MaxCycles) {
			return nil
		}
		wait := l.Step(ctx)
		if l.cfg.MaxCycles > 0 && l.stats.Evaluated() >= uint64(l.cfg.MaxCycles) {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// #endregion run

// #region step

// Step runs one iteration: connect when disconnected, then send one payload.
// It returns how long to wait before the next iteration.
func (l *Loop) Step(ctx context.Context) time.Duration {
	if l.state != StateConnected {
		if wait, ok := l.connect(ctx); !ok {
			return wait
		}
	}
	return l.send(ctx)
}

func (l *Loop) connect(ctx context.Context) (time.Duration, bool) {
	l.state = StateConnecting
	if err := l.session.Connect(ctx); err != nil {
		l.state = StateDisconnected
		if ctx.Err() != nil {
			return 0, false
		}
		d := l.fail("connect", err)
		return d.Cooldown, false
	}
	l.state = StateConnected
	l.stats.Connects++
	l.log.Info("connected to engine")
	return 0, true
}

func (l *Loop) send(ctx context.Context) time.Duration {
	cycle := l.cycle
	payload := l.gen.Next(cycle)
	l.cycle++
	req := transport.Request{ID: l.newID(), Values: payload.Values}

	ctx, span := l.tracer.Start(ctx, "producer.cycle", trace.WithAttributes(
		attribute.Int64("producer.cycle", int64(cycle)),
		attribute.String("producer.payload_kind", payload.Kind.String()),
		attribute.Int("producer.arity", len(payload.Values)),
		attribute.String("producer.request_id", req.ID),
	))
	defer span.End()

	l.log.Info("sending payload",
		zap.Uint64("cycle", cycle),
		zap.Stringer("kind", payload.Kind),
		zap.Int("arity", len(payload.Values)),
		zap.Float64s("values", payload.Values),
		zap.String("request_id", req.ID),
	)
	l.stats.Sent++

	res, err := l.session.SendReceive(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, transport.KindOf(err).String())
		if ctx.Err() != nil {
			return 0
		}
		d := l.fail("send", err)
		if d.Reconnect {
			if cerr := l.session.Close(); cerr != nil {
				l.log.Debug("close session", zap.Error(cerr))
			}
			l.state = StateDisconnected
		}
		return d.Cooldown
	}

	span.SetAttributes(attribute.String("producer.status", res.Status.String()))
	l.report(cycle, req.ID, payload, res)
	return l.cfg.Interval
}

// #endregion step

// #region report

func (l *Loop) report(cycle uint64, requestID string, payload generator.Payload, res codec.Result) {
	l.stats.Results[res.Status]++
	fields := []zap.Field{
		zap.Uint64("cycle", cycle),
		zap.String("request_id", requestID),
		zap.Stringer("kind", payload.Kind),
		zap.Stringer("status", res.Status),
		zap.String("message", res.Message),
	}
	if res.ScoreValid() {
		fields = append(fields, zap.Float64("score", res.Score))
	}
	if res.Status == codec.StatusError {
		l.log.Info("engine rejected payload", fields...)
		return
	}
	l.log.Info("received verdict", fields...)
}

// fail records and logs a recoverable failure and returns the recovery decision.
func (l *Loop) fail(op string, err error) Decision {
	kind := transport.KindOf(err)
	l.stats.Failures[kind]++
	d := l.policy.Decide(kind)
	l.log.Warn("engine "+op+" failed",
		zap.String("category", kind.String()),
		zap.Error(err),
		zap.Bool("reconnect", d.Reconnect),
		zap.Duration("cooldown", d.Cooldown),
	)
	return d
}

// #endregion report
