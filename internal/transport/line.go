package transport

import (
	"bufio"
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
	"github.com/danielpatrickdp/datasentinel/producer/internal/config"
)

// #region line-session

// LineSession speaks the newline-terminated text protocol over one long-lived
// TCP stream.
type LineSession struct {
	target         string
	connectTimeout time.Duration
	requestTimeout time.Duration

	conn   net.Conn
	reader *bufio.Reader
}

// NewLineSession creates a disconnected session for target (host:port).
func NewLineSession(target string, connectTimeout, requestTimeout time.Duration) *LineSession {
	return &LineSession{
		target:         target,
		connectTimeout: connectTimeout,
		requestTimeout: requestTimeout,
	}
}

// Protocol implements Session.
func (s *LineSession) Protocol() config.Protocol { return config.ProtocolTCP }

// Target implements Session.
func (s *LineSession) Target() string { return s.target }

// #endregion line-session

// #region connect

// Connect dials the engine. Refusal, unreachable hosts and dial timeouts are
// all reported as KindConnect.
func (s *LineSession) Connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	d := net.Dialer{Timeout: s.connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.target)
	if err != nil {
		return &Error{Kind: KindConnect, Op: "connect", Target: s.target, Err: err}
	}
	s.conn = conn
	s.reader = bufio.NewReader(conn)
	return nil
}

// #endregion connect

// #region send-receive

// SendReceive writes one line and reads one newline-terminated reply, both
// bounded by the request timeout.
func (s *LineSession) SendReceive(ctx context.Context, req Request) (codec.Result, error) {
	if s.conn == nil {
		return codec.Result{}, &Error{Kind: KindConnectionLost, Op: "send", Target: s.target, Err: net.ErrClosed}
	}

	deadline := time.Now().Add(s.requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetDeadline(deadline); err != nil {
		return codec.Result{}, s.fail("send", err)
	}

	if _, err := s.conn.Write(codec.EncodeLine(req.Values)); err != nil {
		return codec.Result{}, s.fail("send", err)
	}
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return codec.Result{}, s.fail("receive", err)
	}
	return codec.DecodeLine([]byte(line)), nil
}

func (s *LineSession) fail(op string, err error) error {
	kind := KindConnectionLost
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Op: op, Target: s.target, Err: err}
}

// #endregion send-receive

// #region close

// Close closes the stream. Calling it on a closed session returns nil.
func (s *LineSession) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.reader = nil
	return err
}

// #endregion close
