package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bodytrack/pkg/protocol"
)

type Mode string

const (
	// ModeListen accepts the estimator's connection, one at a time.
	ModeListen Mode = "listen"
	// ModeDial connects out to the estimator and redials on failure.
	ModeDial Mode = "dial"
)

// ParseMode validates a configured mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeListen:
		return ModeListen, nil
	case ModeDial:
		return ModeDial, nil
	default:
		return "", fmt.Errorf("unknown transport mode %q", s)
	}
}

// Listener owns the coordinate socket. Every connection gets a fresh
// protocol.Decoder feeding the shared handler; decoder state never carries
// over between connections.
type Listener struct {
	addr         string
	mode         Mode
	handler      protocol.Handler
	decoderOpts  []protocol.DecoderOption
	reconnect    time.Duration
	reconnectMax time.Duration
	dialTimeout  time.Duration
	readTimeout  time.Duration
	errorHandler func(error)
	log          zerolog.Logger

	ln        net.Listener
	connected atomic.Bool
	events    chan Event
	done      chan struct{}
}

type Option func(*Listener)

func WithMode(m Mode) Option {
	return func(l *Listener) {
		if m != "" {
			l.mode = m
		}
	}
}

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

func WithDialTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.dialTimeout = d
		}
	}
}

// WithReadTimeout bounds how long a connection may stay silent. Expiry ends
// the connection. Zero disables the bound.
func WithReadTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d >= 0 {
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

func WithLogger(log zerolog.Logger) Option {
	return func(l *Listener) {
		l.log = log
	}
}

// WithDecoderOptions configures the decoder built for each connection.
func WithDecoderOptions(opts ...protocol.DecoderOption) Option {
	return func(l *Listener) {
		l.decoderOpts = append(l.decoderOpts, opts...)
	}
}

// StartListener binds (listen mode) or begins dialing (dial mode) and serves
// connections in the background until ctx is done.
func StartListener(ctx context.Context, addr string, handler protocol.Handler, opts ...Option) (*Listener, error) {
	l := &Listener{
		addr:         addr,
		mode:         ModeListen,
		handler:      handler,
		reconnect:    1 * time.Second,
		reconnectMax: 30 * time.Second,
		dialTimeout:  5 * time.Second,
		readTimeout:  30 * time.Second,
		log:          zerolog.Nop(),
		events:       make(chan Event, 16),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	switch l.mode {
	case ModeListen:
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("listen %s: %w", addr, err)
		}
		l.ln = ln
		l.log.Info().Str("addr", ln.Addr().String()).Msg("waiting for coordinate stream")
		go l.serve(ctx)
	case ModeDial:
		go l.dial(ctx)
	default:
		return nil, fmt.Errorf("unknown transport mode %q", l.mode)
	}
	return l, nil
}

// Addr is the bound address in listen mode, nil otherwise.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Connected reports whether a coordinate connection is currently open.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

// Events reports connection changes. Events are dropped when the channel is
// full.
func (l *Listener) Events() <-chan Event {
	return l.events
}

// Done is closed once the listener has stopped.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

func (l *Listener) serve(ctx context.Context) {
	defer close(l.done)
	go func() {
		<-ctx.Done()
		_ = l.ln.Close()
	}()

	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.handleError(err)
			l.sleepBackoff(ctx, 1)
			continue
		}

		err = l.handleConn(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.handleError(err)
		}
	}
}

func (l *Listener) dial(ctx context.Context) {
	defer close(l.done)
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		dialer := net.Dialer{Timeout: l.dialTimeout}
		conn, err := dialer.DialContext(ctx, "tcp", l.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.handleError(err)
			attempt++
			l.sleepBackoff(ctx, attempt)
			continue
		}

		attempt = 0
		err = l.handleConn(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.handleError(err)
		}
		l.sleepBackoff(ctx, 1)
	}
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) error {
	session := uuid.NewString()
	remote := conn.RemoteAddr().String()
	log := l.log.With().Str("session", session).Str("remote", remote).Logger()

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()

	l.connected.Store(true)
	l.emit(Event{Kind: EventConnected, Session: session, Remote: remote, At: time.Now()})
	log.Info().Msg("coordinate stream connected")

	var reader io.Reader = conn
	if l.readTimeout > 0 {
		reader = &deadlineReader{conn: conn, timeout: l.readTimeout}
	}
	opts := append(append([]protocol.DecoderOption(nil), l.decoderOpts...), protocol.WithLogger(log))
	dec := protocol.NewDecoder(reader, l.handler, opts...)
	err := dec.Run(connCtx)
	if errors.Is(err, io.EOF) || ctx.Err() != nil {
		err = nil
	}

	l.connected.Store(false)
	stats := dec.Stats()
	l.emit(Event{Kind: EventDisconnected, Session: session, Remote: remote, Err: err, Stats: stats, At: time.Now()})
	log.Info().
		Uint64("frames", stats.Frames).
		Uint64("bad_markers", stats.BadMarkers).
		Uint64("bad_lengths", stats.BadLengths).
		Uint64("bad_payloads", stats.BadPayloads).
		AnErr("cause", err).
		Msg("coordinate stream closed")
	return err
}

func (l *Listener) emit(ev Event) {
	select {
	case l.events <- ev:
	default:
	}
}

func (l *Listener) sleepBackoff(ctx context.Context, attempt int) {
	wait := min(l.reconnect*time.Duration(attempt), l.reconnectMax)
	timer := time.NewTimer(wait)
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	timer.Stop()
}

func (l *Listener) handleError(err error) {
	l.log.Warn().Err(err).Str("addr", l.addr).Msg("coordinate transport error")
	if l.errorHandler != nil {
		l.errorHandler(err)
	}
}

// deadlineReader arms a fresh read deadline before every read.
type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
		return 0, err
	}
	return r.conn.Read(p)
}
