package enginetest

import (
	"bufio"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/danielpatrickdp/datasentinel/producer/internal/codec"
)

// #region line-engine

// LineEngine is a loopback TCP server speaking the text protocol.
type LineEngine struct {
	ln net.Listener

	mu    sync.Mutex
	lines []string
	conns []net.Conn
	// DropAfter closes a connection after that many replies on it (0 = never).
	dropAfter int
	// silent reads requests but never answers.
	silent bool
	closed bool

	wg sync.WaitGroup
}

// LineOption configures a LineEngine.
type LineOption func(*LineEngine)

// WithDropAfter makes the engine hang up after n replies on each connection.
func WithDropAfter(n int) LineOption {
	return func(e *LineEngine) { e.dropAfter = n }
}

// WithSilence makes the engine accept requests without answering.
func WithSilence() LineOption {
	return func(e *LineEngine) { e.silent = true }
}

// StartLine starts a LineEngine on 127.0.0.1 and stops it when the test ends.
func StartLine(t testing.TB, opts ...LineOption) *LineEngine {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	e := &LineEngine{ln: ln}
	for _, opt := range opts {
		opt(e)
	}
	e.wg.Add(1)
	go e.serve()
	t.Cleanup(e.Close)
	return e
}

// Addr returns the host:port the engine listens on.
func (e *LineEngine) Addr() string { return e.ln.Addr().String() }

// Lines returns every request line received so far, without the newline.
func (e *LineEngine) Lines() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.lines...)
}

// Close stops accepting and hangs up every open connection.
func (e *LineEngine) Close() {
	_ = e.ln.Close()
	e.mu.Lock()
	e.closed = true
	for _, c := range e.conns {
		_ = c.Close()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// #endregion line-engine

// #region serve

func (e *LineEngine) serve() {
	defer e.wg.Done()
	for {
		conn, err := e.ln.Accept()
		if err != nil {
			return
		}
		e.mu.Lock()
		if e.closed {
			e.mu.Unlock()
			_ = conn.Close()
			return
		}
		e.conns = append(e.conns, conn)
		e.mu.Unlock()
		e.wg.Add(1)
		go e.handle(conn)
	}
}

func (e *LineEngine) handle(conn net.Conn) {
	defer e.wg.Done()
	defer conn.Close()

	r := bufio.NewReader(conn)
	replies := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		e.mu.Lock()
		e.lines = append(e.lines, line)
		e.mu.Unlock()

		if e.silent {
			continue
		}
		if _, err := conn.Write([]byte(reply(line))); err != nil {
			return
		}
		replies++
		if e.dropAfter > 0 && replies >= e.dropAfter {
			return
		}
	}
}

func reply(line string) string {
	fields := strings.Fields(line)
	values := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			break
		}
		values = append(values, v)
	}
	resp := Evaluate(values)
	if resp.Status == codec.StatusError {
		return "ERROR: Invalid input size\n"
	}
	return resp.Message + "\n"
}

// #endregion serve
