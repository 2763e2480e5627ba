package monitor

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opengolfcoach/bridge/internal/domain/model"
	"github.com/opengolfcoach/bridge/pkg/logger"
	"github.com/opengolfcoach/bridge/pkg/metrics"
)

// State is the lifecycle stage of one monitor session.
type State int32

// Session states. A session only moves forward; CLOSED is terminal and a
// new connection always produces a new session.
const (
	StateHandshaking State = iota
	StateActive
	StateIdle
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "HANDSHAKING"
	case StateActive:
		return "ACTIVE"
	case StateIdle:
		return "IDLE"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Close reasons reported in logs and metrics.
const (
	ReasonHandshakeTimeout = "handshake_timeout"
	ReasonHandshakeFailed  = "handshake_failed"
	ReasonIdleTimeout      = "idle_timeout"
	ReasonPeerDisconnect   = "peer_disconnect"
	ReasonReplaced         = "replaced"
	ReasonShutdown         = "shutdown"
)

// Default session timing.
const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultIdleInterval     = 30 * time.Second
	defaultIdleCloseTimeout = 60 * time.Second

	maxLineBytes = 256 * 1024
)

// Sink accepts decoded shot frames for downstream processing. Offer must not
// block; it reports false when the frame was dropped.
type Sink interface {
	Offer(ctx context.Context, frame *model.RawShotFrame) bool
}

// Session owns one accepted monitor connection: handshake, frame reception,
// keepalive and close. It is the only writer of its own state; everything
// downstream sees only frames it has already validated.
type Session struct {
	conn net.Conn
	sink Sink

	gameID           string
	handshakeTimeout time.Duration
	idleInterval     time.Duration
	idleCloseTimeout time.Duration

	state     atomic.Int32
	closeOnce sync.Once
	reason    string
	done      chan struct{}
	onClose   func(*Session)

	logger logger.Logger
}

func newSession(conn net.Conn, sink Sink, l *Listener) *Session {
	s := &Session{
		conn:             conn,
		sink:             sink,
		gameID:           l.gameID,
		handshakeTimeout: l.handshakeTimeout,
		idleInterval:     l.idleInterval,
		idleCloseTimeout: l.idleCloseTimeout,
		done:             make(chan struct{}),
		onClose:          l.release,
		logger:           l.logger.Named("session"),
	}
	s.state.Store(int32(StateHandshaking))
	return s
}

// State returns the current session state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the session has fully released its resources.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// CloseReason returns why the session closed; empty while open.
func (s *Session) CloseReason() string {
	select {
	case <-s.done:
		return s.reason
	default:
		return ""
	}
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// run drives the session state machine until close. It owns all session
// timers; close cancels them so nothing fires against a dead session.
func (s *Session) run(ctx context.Context) {
	remote := s.conn.RemoteAddr().String()
	s.logger.Info(ctx, "launch monitor connected", logger.String("remote", remote))

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readLoop(lines, readErr)

	if _, err := s.conn.Write(EncodeHandshake(s.gameID)); err != nil {
		s.logger.Warn(ctx, "handshake send failed", logger.Error(err))
		s.close(ctx, ReasonHandshakeFailed)
		return
	}

	// The exchange completes when the first valid message arrives after
	// the greeting. An invalid first message is a handshake failure, not
	// a droppable frame.
	hsTimer := time.NewTimer(s.handshakeTimeout)
	defer hsTimer.Stop()
	select {
	case <-ctx.Done():
		s.close(ctx, ReasonShutdown)
		return
	case <-hsTimer.C:
		s.logger.Warn(ctx, "handshake timed out", logger.String("remote", remote))
		s.close(ctx, ReasonHandshakeTimeout)
		return
	case err := <-readErr:
		s.logger.Warn(ctx, "connection lost during handshake", logger.Error(err))
		s.close(ctx, ReasonHandshakeFailed)
		return
	case line := <-lines:
		if !s.handleLine(ctx, line) {
			s.close(ctx, ReasonHandshakeFailed)
			return
		}
	}
	hsTimer.Stop()

	s.setState(StateActive)
	metrics.RecordHandshake()
	s.logger.Info(ctx, "handshake complete", logger.String("remote", remote))

	idleTimer := time.NewTimer(s.idleInterval)
	defer idleTimer.Stop()
	probeTimer := time.NewTimer(s.idleCloseTimeout)
	stopTimer(probeTimer)
	defer probeTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.close(ctx, ReasonShutdown)
			return

		case line := <-lines:
			if !s.handleLine(ctx, line) {
				// Malformed frame: drop it, stay in the current
				// state, do not feed the idle timer.
				continue
			}
			s.setState(StateActive)
			stopTimer(probeTimer)
			resetTimer(idleTimer, s.idleInterval)

		case <-idleTimer.C:
			s.setState(StateIdle)
			s.logger.Debug(ctx, "session idle; sending keepalive probe")
			if _, err := s.conn.Write(EncodeProbe()); err != nil {
				s.logger.Warn(ctx, "keepalive probe failed", logger.Error(err))
				s.close(ctx, ReasonPeerDisconnect)
				return
			}
			resetTimer(probeTimer, s.idleCloseTimeout)

		case <-probeTimer.C:
			s.logger.Info(ctx, "idle timeout exceeded; closing session")
			s.close(ctx, ReasonIdleTimeout)
			return

		case err := <-readErr:
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				s.logger.Info(ctx, "launch monitor disconnected", logger.String("remote", remote))
			} else {
				s.logger.Warn(ctx, "read failed", logger.Error(err))
			}
			s.close(ctx, ReasonPeerDisconnect)
			return
		}
	}
}

// handleLine processes one inbound message. It reports whether the message
// was valid protocol activity (and so should reset the idle timer).
func (s *Session) handleLine(ctx context.Context, line []byte) bool {
	frame, kind, err := DecodeMessage(line)
	if err != nil {
		metrics.RecordParseError()
		s.logger.Warn(ctx, "dropping invalid frame", logger.Error(err))
		return false
	}

	switch kind {
	case KindHeartbeat:
		metrics.RecordHeartbeat()
		if _, err := s.conn.Write(EncodeShotAck()); err != nil {
			s.logger.Debug(ctx, "heartbeat ack failed", logger.Error(err))
		}
	case KindShot:
		metrics.RecordFrameDecoded()
		if _, err := s.conn.Write(EncodeShotAck()); err != nil {
			s.logger.Debug(ctx, "shot ack failed", logger.Error(err))
		}
		if !s.sink.Offer(ctx, frame) {
			s.logger.Warn(ctx, "pipeline full; dropping shot frame",
				logger.Int("shotNumber", frame.ShotNumber))
		}
	}
	return true
}

// readLoop feeds newline-delimited messages to the session loop. It exits
// when the connection closes; close unblocks it by closing the socket.
func (s *Session) readLoop(lines chan<- []byte, readErr chan<- error) {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		line := make([]byte, len(raw))
		copy(line, raw)
		select {
		case lines <- line:
		case <-s.done:
			return
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case readErr <- err:
	case <-s.done:
	}
}

// close releases the socket exactly once, cancels pending timers through
// run's defers, and hands the listener slot back.
func (s *Session) close(ctx context.Context, reason string) {
	s.closeOnce.Do(func() {
		s.reason = reason
		s.setState(StateClosed)
		_ = s.conn.Close()
		metrics.RecordSessionClosed(reason)
		metrics.UpdateSessionActive(false)
		if s.onClose != nil {
			s.onClose(s)
		}
		close(s.done)
		s.logger.Info(ctx, "session closed", logger.String("reason", reason))
	})
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
