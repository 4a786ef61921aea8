// File: session/session.go
// Package session orchestrates parser, extension stack, generator and the
// close handshake for one WebSocket connection.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// CoreSession is created at the upgrade boundary with the negotiated role,
// the resolved extension list and the raw byte stream. It drives the
// inbound pipeline from a read loop, serializes the outbound pipeline
// through a flusher, and guarantees exactly one terminal callback
// sequence per connection.

package session

import (
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/momentics/wscore/api"
	"github.com/momentics/wscore/control"
	"github.com/momentics/wscore/extension"
	"github.com/momentics/wscore/pool"
	"github.com/momentics/wscore/protocol"
)

// CoreSession is the connection state machine.
type CoreSession struct {
	behavior  api.Behavior
	transport api.Transport
	handler   FrameHandler
	cfg       *control.Config
	log       *zap.Logger
	metrics   *control.MetricsRegistry

	parser   *protocol.Parser
	stack    *extension.Stack
	fl       *flusher
	readPool *pool.BytePool

	mu          sync.Mutex
	state       State
	closeSent   bool
	localStatus *protocol.CloseStatus
	closeTimer  *time.Timer

	teardownOnce sync.Once
	done         chan struct{}

	// Inbound message assembly; touched only by the read goroutine.
	msgOp  protocol.OpCode
	msgBuf []byte

	bytesReceived  int64
	bytesSent      int64
	framesReceived int64
	messagesIn     int64
}

// Option customizes session initialization.
type Option func(*CoreSession)

// WithConfig overrides the default limits and timeouts.
func WithConfig(cfg *control.Config) Option {
	return func(s *CoreSession) { s.cfg = cfg }
}

// WithLogger attaches a structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *CoreSession) { s.log = log }
}

// WithMetrics publishes session counters into a registry at teardown.
func WithMetrics(reg *control.MetricsRegistry) Option {
	return func(s *CoreSession) { s.metrics = reg }
}

// NewCoreSession wires the engine for one upgraded connection. behavior is
// the negotiated role; exts the resolved extension list in negotiation
// order. The session owns the transport from here on.
func NewCoreSession(tr api.Transport, behavior api.Behavior, exts []api.ExtensionConfig,
	handler FrameHandler, opts ...Option) (*CoreSession, error) {
	if tr == nil || handler == nil {
		return nil, api.ErrInvalidArgument
	}

	s := &CoreSession{
		behavior:  behavior,
		transport: tr,
		handler:   handler,
		cfg:       control.DefaultConfig(),
		log:       zap.NewNop(),
		state:     StateConnecting,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	limits := extension.Limits{
		MaxFrameSize:   s.cfg.MaxFrameSize,
		MaxMessageSize: s.cfg.MaxMessageSize,
	}
	stack, err := extension.NewStack(behavior, exts, limits)
	if err != nil {
		return nil, err
	}
	s.stack = stack

	s.parser = protocol.NewParser(behavior, s.cfg.MaxFrameSize, s.cfg.MaxMessageSize)
	s.parser.SetRsvMask(stack.RsvMask())

	gen := protocol.NewGenerator(behavior)
	gen.SetRsvMask(stack.RsvMask())

	s.readPool = pool.NewBytePool(s.cfg.InputBufferSize)
	s.fl = newFlusher(stack, gen, tr, s.cfg.WriteTimeout, s.cfg.OutputBufferSize)
	s.fl.onFatal = s.fail
	s.fl.onWrote = func(n int) { atomic.AddInt64(&s.bytesSent, int64(n)) }

	return s, nil
}

// Start transitions CONNECTING to OPEN, notifies the handler, and launches
// the read loop and flusher.
func (s *CoreSession) Start() error {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return api.ErrInvalidArgument
	}
	s.state = StateOpen
	s.mu.Unlock()

	s.log.Debug("session open",
		zap.String("behavior", s.behavior.String()),
		zap.Strings("extensions", s.stack.Names()))

	s.handler.OnOpen(s)
	go s.fl.run()
	go s.readLoop()
	return nil
}

// State returns the current lifecycle state.
func (s *CoreSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Behavior returns the negotiated role.
func (s *CoreSession) Behavior() api.Behavior {
	return s.behavior
}

// Extensions lists the negotiated extension tokens in order.
func (s *CoreSession) Extensions() []string {
	return s.stack.Names()
}

// Done returns a channel closed when the session reaches CLOSED.
func (s *CoreSession) Done() <-chan struct{} {
	return s.done
}

// SendFrame submits one logical frame for transmission. Frames from
// concurrent callers are flushed in submission order; cb fires when the
// frame's wire bytes reach the transport.
func (s *CoreSession) SendFrame(f *protocol.Frame, cb api.WriteCallback) error {
	if s.State() != StateOpen {
		cb.Notify(api.ErrSessionNotOpen)
		return api.ErrSessionNotOpen
	}
	return s.fl.enqueue(f, cb)
}

// SendText submits a final TEXT frame.
func (s *CoreSession) SendText(text string, cb api.WriteCallback) error {
	return s.SendFrame(protocol.NewTextFrame(text), cb)
}

// SendBinary submits a final BINARY frame.
func (s *CoreSession) SendBinary(payload []byte, cb api.WriteCallback) error {
	return s.SendFrame(protocol.NewBinaryFrame(payload), cb)
}

// Ping submits a PING frame. The peer's PONG surfaces via OnControl.
func (s *CoreSession) Ping(payload []byte) error {
	if s.State() != StateOpen {
		return api.ErrSessionNotOpen
	}
	return s.fl.enqueue(protocol.NewPingFrame(payload), nil)
}

// Close initiates the local side of the close handshake: sends a CLOSE
// frame, transitions OPEN to OSHUT and arms the bounded wait for the
// peer's response. Exactly one CLOSE frame is ever sent per connection; a
// second local close while one is in flight is a no-op returning
// ErrCloseInProgress.
func (s *CoreSession) Close(code int, reason string, cb api.WriteCallback) error {
	status := protocol.NewCloseStatus(code, reason)

	s.mu.Lock()
	switch {
	case s.state == StateConnecting:
		s.mu.Unlock()
		cb.Notify(api.ErrSessionNotOpen)
		return api.ErrSessionNotOpen
	case s.closeSent || s.state == StateClosed:
		s.mu.Unlock()
		cb.Notify(api.ErrCloseInProgress)
		return api.ErrCloseInProgress
	}
	s.closeSent = true
	s.localStatus = &status
	s.state = StateOShut
	s.closeTimer = time.AfterFunc(s.cfg.CloseTimeout, s.onCloseTimeout)
	s.mu.Unlock()

	s.log.Debug("local close", zap.Int("code", code), zap.String("reason", reason))
	return s.fl.enqueue(status.ToFrame(), cb)
}

// Abort cancels the connection without a close handshake, forcing the
// same terminal path as a protocol failure.
func (s *CoreSession) Abort(reason string) {
	s.fail(api.NewAbnormalError(reason, nil))
}

// GetStats returns a snapshot of connection statistics.
func (s *CoreSession) GetStats() map[string]int64 {
	return map[string]int64{
		"bytes_received":    atomic.LoadInt64(&s.bytesReceived),
		"bytes_sent":        atomic.LoadInt64(&s.bytesSent),
		"frames_received":   atomic.LoadInt64(&s.framesReceived),
		"messages_received": atomic.LoadInt64(&s.messagesIn),
	}
}

// readLoop drives the inbound pipeline: transport bytes into the parser,
// parsed frames through the extension stack, processed frames into
// dispatch. Reads are sequential; the parser state is never advanced
// concurrently.
func (s *CoreSession) readLoop() {
	buf := s.readPool.Get()
	defer s.readPool.Put(buf)

	for {
		if dt, ok := s.transport.(api.DeadlineTransport); ok && s.cfg.IdleTimeout > 0 {
			_ = dt.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		n, err := s.transport.Read(buf)
		if n > 0 {
			atomic.AddInt64(&s.bytesReceived, int64(n))
			if ferr := s.parser.Feed(buf[:n], s.onWireFrame); ferr != nil {
				s.fail(ferr)
				return
			}
		}
		if err != nil {
			if s.State() == StateClosed {
				return
			}
			s.fail(api.NewAbnormalError("transport read failed", err))
			return
		}
	}
}

// onWireFrame receives each demasked frame from the parser and runs the
// inbound extension leg.
func (s *CoreSession) onWireFrame(f *protocol.Frame) error {
	atomic.AddInt64(&s.framesReceived, 1)
	return s.stack.ProcessIncoming(f, s.dispatch)
}

// dispatch consumes one extension-processed inbound frame.
func (s *CoreSession) dispatch(f *protocol.Frame) error {
	state := s.State()

	if f.Opcode == protocol.OpcodeClose {
		return s.onCloseFrame(f)
	}

	// Data exchange stops once a CLOSE frame has been received.
	if state == StateIShut || state == StateClosed {
		return api.NewProtocolError("%s frame after close handshake", f.Opcode)
	}

	switch f.Opcode {
	case protocol.OpcodePing:
		if state == StateOpen {
			pong := protocol.NewPongFrame(f.Payload)
			_ = s.fl.enqueue(pong, nil)
		}
		s.handler.OnControl(s, f)
		return nil
	case protocol.OpcodePong:
		s.handler.OnControl(s, f)
		return nil
	default:
		return s.assembleData(f)
	}
}

// assembleData reassembles CONTINUATION-chained fragments and delivers
// each complete message as a single final frame.
func (s *CoreSession) assembleData(f *protocol.Frame) error {
	if f.Opcode != protocol.OpcodeContinuation {
		s.msgOp = f.Opcode
		s.msgBuf = s.msgBuf[:0]
	}
	s.msgBuf = append(s.msgBuf, f.Payload...)
	if int64(len(s.msgBuf)) > s.cfg.MaxMessageSize {
		return api.NewMessageTooLargeError("message of %d bytes exceeds limit %d",
			len(s.msgBuf), s.cfg.MaxMessageSize)
	}
	if !f.Fin {
		return nil
	}

	payload := append([]byte(nil), s.msgBuf...)
	s.msgBuf = s.msgBuf[:0]

	// Extension-transformed text reaches this point unvalidated; the
	// wire-level check only covers untransformed frames.
	if s.msgOp == protocol.OpcodeText && !utf8.Valid(payload) {
		return api.NewBadPayloadError("invalid UTF-8 in text message")
	}

	atomic.AddInt64(&s.messagesIn, 1)
	s.handler.OnFrame(s, &protocol.Frame{Fin: true, Opcode: s.msgOp, Payload: payload})
	return nil
}

// onCloseFrame handles the peer's CLOSE per the handshake state machine.
func (s *CoreSession) onCloseFrame(f *protocol.Frame) error {
	status, err := protocol.CloseStatusFromPayload(f.Payload)
	if err != nil {
		// Malformed close payloads are failures, not ignorable.
		return err
	}

	s.mu.Lock()
	switch s.state {
	case StateOpen:
		// Peer closed first: echo and finish.
		s.state = StateIShut
		s.closeSent = true
		s.mu.Unlock()

		echo := status
		if !protocol.IsTransmittableStatusCode(echo.Code) {
			echo = protocol.CloseStatus{Code: protocol.CloseNormalClosure}
		}
		s.log.Debug("remote close", zap.Int("code", status.Code))
		if err := s.fl.enqueue(echo.ToFrame(), func(error) {
			s.teardown(status, nil)
		}); err != nil {
			s.teardown(status, nil)
		}
		return nil

	case StateOShut:
		// Peer answered our close. The locally sent code wins for
		// reporting.
		local := *s.localStatus
		s.stopCloseTimerLocked()
		s.mu.Unlock()
		s.teardown(local, nil)
		return nil

	default:
		s.mu.Unlock()
		return api.NewProtocolError("CLOSE frame in state %s", s.State())
	}
}

// onCloseTimeout fires when the peer never answered the local close.
func (s *CoreSession) onCloseTimeout() {
	s.mu.Lock()
	expired := s.state == StateOShut
	s.mu.Unlock()
	if !expired {
		return
	}
	s.fail(api.NewAbnormalError("close handshake timeout: no CLOSE frame received", nil))
}

func (s *CoreSession) stopCloseTimerLocked() {
	if s.closeTimer != nil {
		s.closeTimer.Stop()
		s.closeTimer = nil
	}
}

// fail is the single terminal path for unrecoverable failures: attempt a
// best-effort CLOSE frame carrying the mapped code, then tear down and
// deliver the error and closed callbacks.
func (s *CoreSession) fail(err error) {
	kind := api.KindOf(err)
	status := protocol.NewCloseStatus(kind.CloseCode(), "")

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	canSend := kind != api.FailureAbnormal && !s.closeSent
	if canSend {
		s.closeSent = true
	}
	s.mu.Unlock()

	s.log.Warn("session failure",
		zap.String("kind", kind.String()),
		zap.Error(err))

	if canSend {
		// The best-effort flush gets the same bounded wait as the close
		// handshake; a wedged write must not defer the terminal callbacks.
		guard := time.AfterFunc(s.cfg.CloseTimeout, func() {
			s.teardown(status, err)
		})
		if eerr := s.fl.enqueue(status.ToFrame(), func(error) {
			guard.Stop()
			s.teardown(status, err)
		}); eerr == nil {
			return
		}
		guard.Stop()
	}
	s.teardown(status, err)
}

// teardown releases all resources exactly once, idempotently, and
// delivers the terminal callbacks.
func (s *CoreSession) teardown(status protocol.CloseStatus, failure error) {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.stopCloseTimerLocked()
		s.mu.Unlock()

		_ = s.transport.Close()
		s.fl.shutdown(api.ErrSessionClosed)
		_ = s.stack.Close()
		close(s.done)

		if s.metrics != nil {
			for k, v := range s.GetStats() {
				s.metrics.Add(k, v)
			}
		}
		s.log.Debug("session closed",
			zap.Int("code", status.Code),
			zap.Bool("ordinary", status.IsOrdinary()))

		if failure != nil {
			s.handler.OnError(s, api.KindOf(failure), failure)
		}
		s.handler.OnClosed(s, status)
	})
}
