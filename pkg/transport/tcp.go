// Package transport dials the inverter's TCP port and turns its byte
// stream into decoded frames, reconnecting with backoff on failure.
package transport

import (
	"bufio"
	"context"
	"net"
	"time"

	"ratitude/pkg/engine"
	"ratitude/pkg/protocol"
)

// Listener maintains a reconnecting TCP connection to a device and
// publishes every successfully decoded frame to out.
type Listener struct {
	addr         string
	out          chan<- engine.Event
	reconnect    time.Duration
	reconnectMax time.Duration
	bufSize      int
	dialTimeout  time.Duration
	readTimeout  time.Duration
	errorHandler func(error)
	now          func() time.Time
}

type Option func(*Listener)

func WithReconnectInterval(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.reconnect = d
		}
	}
}

func WithReconnectMax(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.reconnectMax = d
		}
	}
}

func WithBufferSize(n int) Option {
	return func(l *Listener) {
		if n > 0 {
			l.bufSize = n
		}
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.dialTimeout = d
		}
	}
}

func WithReadTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.readTimeout = d
		}
	}
}

func WithErrorHandler(fn func(error)) Option {
	return func(l *Listener) {
		if fn != nil {
			l.errorHandler = fn
		}
	}
}

// withClock overrides the time source used to timestamp events; tests
// only, never exported.
func withClock(now func() time.Time) Option {
	return func(l *Listener) {
		l.now = now
	}
}

// StartListener dials addr and begins publishing decoded frames to out,
// reconnecting with exponential backoff (capped at WithReconnectMax)
// whenever the connection drops. It returns immediately; the dial loop
// runs until ctx is canceled.
func StartListener(ctx context.Context, addr string, out chan<- engine.Event, opts ...Option) *Listener {
	l := &Listener{
		addr:         addr,
		out:          out,
		reconnect:    1 * time.Second,
		reconnectMax: 30 * time.Second,
		bufSize:      64 * 1024,
		dialTimeout:  5 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run(ctx)
	return l
}

func (l *Listener) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := net.DialTimeout("tcp", l.addr, l.dialTimeout)
		if err != nil {
			l.handleError(err)
			attempt++
			l.sleepBackoff(ctx, attempt)
			continue
		}

		attempt = 0
		err = l.handleConn(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.handleError(err)
		}
		l.sleepBackoff(ctx, 1)
	}
}

// handleConn reads raw bytes from conn and feeds them through a
// sequence of protocol.ReceiveFrame instances: one frame's completion
// (success or error) starts a fresh receiver for the next, so a single
// corrupt frame never wedges the connection.
func (l *Listener) handleConn(ctx context.Context, conn net.Conn) error {
	reader := bufio.NewReaderSize(conn, l.bufSize)
	buf := make([]byte, l.bufSize)
	rf := protocol.NewReceiveFrame()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if l.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(l.readTimeout))
		}
		n, err := reader.Read(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			return err
		}
		rf = l.feed(ctx, rf, buf[:n])
	}
}

// feed drives rf (and successor receivers) over chunk, publishing each
// completed frame and returning the receiver that should consume the
// next chunk.
func (l *Listener) feed(ctx context.Context, rf *protocol.ReceiveFrame, chunk []byte) *protocol.ReceiveFrame {
	for len(chunk) > 0 {
		n := rf.Consume(chunk)
		chunk = chunk[n:]

		if !rf.Complete() {
			if n == 0 {
				break // no progress possible on this chunk; wait for more bytes
			}
			continue
		}

		if err := rf.Err(); err != nil {
			l.handleError(err)
		} else {
			event := engine.Event{Frame: rf.Frame(), At: l.now()}
			select {
			case l.out <- event:
			case <-ctx.Done():
				return rf
			}
		}
		rf = protocol.NewReceiveFrame()
	}
	return rf
}

func (l *Listener) sleepBackoff(ctx context.Context, attempt int) {
	wait := l.reconnect
	for i := 1; i < attempt && wait < l.reconnectMax; i++ {
		wait *= 2
	}
	wait = min(wait, l.reconnectMax)
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()
}

func (l *Listener) handleError(err error) {
	if l.errorHandler != nil {
		l.errorHandler(err)
	}
}
