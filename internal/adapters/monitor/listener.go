// Package monitor accepts launch monitor connections and owns the per
// connection session state machine of the inbound sensor protocol.
package monitor

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/opengolfcoach/bridge/pkg/logger"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

// Policy decides what happens to a new connection while a session is active.
type Policy string

// Connection policies. Reject is the safer default: an established monitor
// session is never torn down by a stray connection attempt.
const (
	PolicyReject  Policy = "reject"
	PolicyReplace Policy = "replace"
)

// defaultGameID identifies the bridge in the protocol greeting.
const defaultGameID = "OpenGolfCoach"

// Option applies a configuration option to the Listener.
type Option func(*Listener)

// WithPolicy sets the concurrent-connection policy.
func WithPolicy(p Policy) Option {
	return func(l *Listener) {
		if p == PolicyReject || p == PolicyReplace {
			l.policy = p
		}
	}
}

// WithGameID sets the identifier sent in the handshake greeting.
func WithGameID(id string) Option {
	return func(l *Listener) {
		if id != "" {
			l.gameID = id
		}
	}
}

// WithHandshakeTimeout bounds the handshake exchange.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.handshakeTimeout = d
		}
	}
}

// WithIdleInterval sets how long a session may be quiet before the
// keepalive probe is sent.
func WithIdleInterval(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.idleInterval = d
		}
	}
}

// WithIdleCloseTimeout sets how long after the probe an unresponsive
// session is closed.
func WithIdleCloseTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.idleCloseTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the listener.
func WithLogger(lg logger.Logger) Option {
	return func(l *Listener) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// Listener binds the sensor port and hands each accepted connection to a
// fresh Session. At most one session is active per bridge process.
type Listener struct {
	addr   string
	sink   Sink
	policy Policy

	gameID           string
	handshakeTimeout time.Duration
	idleInterval     time.Duration
	idleCloseTimeout time.Duration

	mu     sync.Mutex
	active *Session
	ln     net.Listener
	closed bool
	wg     sync.WaitGroup

	logger logger.Logger
}

// NewListener constructs a listener for addr whose sessions feed sink.
func NewListener(addr string, sink Sink, opts ...Option) *Listener {
	l := &Listener{
		addr:             addr,
		sink:             sink,
		policy:           PolicyReject,
		gameID:           defaultGameID,
		handshakeTimeout: defaultHandshakeTimeout,
		idleInterval:     defaultIdleInterval,
		idleCloseTimeout: defaultIdleCloseTimeout,
		logger:           logger.Get().Named("monitor"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start binds the port and begins accepting. Accept failures for individual
// connections are logged and never stop the listener.
func (l *Listener) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.ln = ln
	l.closed = false
	l.mu.Unlock()

	l.logger.Info(ctx, "listening for launch monitor", logger.String("addr", ln.Addr().String()))

	l.wg.Add(1)
	go l.acceptLoop(ctx)
	return nil
}

// Addr returns the bound address; nil before Start. Tests bind port 0 and
// read the real port from here.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// ActiveSession returns the currently active session, or nil.
func (l *Listener) ActiveSession() *Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Listener) acceptLoop(ctx context.Context) {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			l.logger.Warn(ctx, "accept failed", logger.Error(err))
			continue
		}
		l.handleConn(ctx, conn)
	}
}

// handleConn enforces the single-active-session invariant before starting a
// session for conn. It never blocks on a stalled session beyond the replace
// handover.
func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	l.mu.Lock()
	current := l.active
	l.mu.Unlock()

	if current != nil && current.State() != StateClosed {
		switch l.policy {
		case PolicyReplace:
			l.logger.Info(ctx, "replacing active session",
				logger.String("remote", conn.RemoteAddr().String()))
			current.close(ctx, ReasonReplaced)
			<-current.Done()
		default:
			metrics.RecordSessionRejected()
			l.logger.Warn(ctx, "rejecting connection; session already active",
				logger.String("remote", conn.RemoteAddr().String()))
			_ = conn.Close()
			return
		}
	}

	sess := newSession(conn, l.sink, l)

	l.mu.Lock()
	l.active = sess
	l.mu.Unlock()
	metrics.UpdateSessionActive(true)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		sess.run(ctx)
	}()
}

// release clears the active slot once a session closes, returning the
// listener to its accepting state.
func (l *Listener) release(s *Session) {
	l.mu.Lock()
	if l.active == s {
		l.active = nil
	}
	l.mu.Unlock()
}

// Stop closes the bound socket and the active session, then waits for all
// session goroutines to finish.
func (l *Listener) Stop(ctx context.Context) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	ln := l.ln
	active := l.active
	l.mu.Unlock()

	if ln != nil {
		_ = ln.Close()
	}
	if active != nil {
		active.close(ctx, ReasonShutdown)
	}
	l.wg.Wait()
}
