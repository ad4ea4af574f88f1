package structsock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Socket is the connection primitive a Transport is built on. It owns the
// wire protocol; the Transport only drives it.
//
// Read must return an error that unwraps to *CloseError when the peer closed
// the connection. Close must unblock a pending Read. Write may be called
// concurrently with Read.
type Socket interface {
	Read(ctx context.Context) (Message, error)
	Write(ctx context.Context, msg Message) error
	Close(code StatusCode, reason string) error
}

// Resumer is implemented by sockets that must be started before the first
// Read. Transport.Connect calls Resume exactly once.
type Resumer interface {
	Resume(ctx context.Context) error
}

type closeState int

const (
	stateOpen closeState = iota
	stateClosing
	stateClosed
)

// Transport owns one connection and turns it into an ordered event stream.
// It is safe for concurrent use by multiple goroutines.
type Transport struct {
	socket Socket
	cfg    transportConfig
	id     string

	// events is created up front so that a close that happens before anyone
	// subscribes still has somewhere to go.
	events  chan Event
	closing chan struct{}

	mu          sync.Mutex
	state       closeState
	started     bool
	closeCode   StatusCode
	closeReason string
	cancelRead  context.CancelFunc
}

// NewTransport creates a Transport around an already established socket.
func NewTransport(socket Socket, opts ...TransportOption) *Transport {
	cfg := transportConfig{
		logger: discardLogger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	t := &Transport{
		socket:  socket,
		cfg:     cfg,
		id:      uuid.NewString(),
		events:  make(chan Event),
		closing: make(chan struct{}),
	}
	t.cfg.logger = t.cfg.logger.With(slog.String("conn_id", t.id))
	return t
}

// ID returns the unique identifier of this connection.
func (t *Transport) ID() string {
	return t.id
}

// Connect starts the connection and returns its event stream. The first
// event is State(Connected) and the last is State(Disconnected); the channel
// is closed after the last event. Events are delivered one at a time: the
// transport does not read from the socket until the previous event has been
// received.
//
// ctx bounds the lifetime of the connection. Cancelling it closes the socket
// and stops delivery.
func (t *Transport) Connect(ctx context.Context) (<-chan Event, error) {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	t.started = true
	readCtx, cancel := context.WithCancel(ctx)
	t.cancelRead = cancel
	state := t.state
	t.mu.Unlock()

	if state != stateOpen {
		// Closed before anyone connected.
		go t.finish(ctx, cancel)
		return t.events, nil
	}

	if r, ok := t.socket.(Resumer); ok {
		if err := r.Resume(ctx); err != nil {
			go func() {
				defer t.finish(ctx, cancel)
				if t.fail(ctx, &ConnectionError{Op: "resume", Err: err}) {
					t.emitTerminal(ctx)
				}
			}()
			return t.events, nil
		}
	}

	go t.readLoop(ctx, readCtx, cancel)

	return t.events, nil
}

// Send writes a message to the socket.
func (t *Transport) Send(ctx context.Context, msg Message) error {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()

	if state != stateOpen {
		return ErrClosed
	}

	if err := t.socket.Write(ctx, msg); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// Close requests termination of the connection. It is safe to call any
// number of times from any goroutine; only the first call has an effect and
// exactly one State(Disconnected) event is emitted regardless.
func (t *Transport) Close(code StatusCode, reason string) error {
	if !t.beginClose(code, reason) {
		return nil
	}

	t.cfg.logger.Debug("closing connection",
		slog.Int("code", int(code)),
		slog.String("reason", reason),
	)

	err := t.socket.Close(code, reason)

	t.mu.Lock()
	cancel := t.cancelRead
	t.mu.Unlock()
	if cancel != nil {
		// Unblocks a read on sockets that ignore Close.
		cancel()
	}

	if err != nil {
		return &ConnectionError{Op: "close", Err: err}
	}
	return nil
}

// beginClose performs the Open to Closing transition. It reports false if
// the connection was already closing or closed.
func (t *Transport) beginClose(code StatusCode, reason string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != stateOpen {
		return false
	}
	t.state = stateClosing
	t.closeCode = code
	t.closeReason = reason
	close(t.closing)
	return true
}

// readLoop is the only goroutine that sends on t.events.
func (t *Transport) readLoop(ctx, readCtx context.Context, cancel context.CancelFunc) {
	defer t.finish(ctx, cancel)

	t.cfg.logger.Debug("connected")
	if !t.emit(ctx, StateEvent(Connected())) {
		return
	}

	var seq uint64
	for {
		msg, err := t.socket.Read(readCtx)
		if err != nil {
			if t.readFailed(ctx, err) {
				t.emitTerminal(ctx)
			}
			return
		}

		seq++
		meta := MessageMetadata{Sequence: seq, ReceivedAt: t.cfg.now()}

		// A received message is delivered even if Close was called since;
		// the next Read fails and the terminal event follows it.
		if !t.emit(ctx, MessageEvent(msg, meta)) {
			return
		}
	}
}

// readFailed reconciles a read error with the close state machine and
// reports whether the caller should emit the terminal event.
func (t *Transport) readFailed(ctx context.Context, err error) bool {
	if t.isClosing() {
		// Expected after Close cancelled the read.
		return true
	}
	if ctx.Err() != nil {
		t.abandon()
		return false
	}

	var ce *CloseError
	if errors.As(err, &ce) {
		if t.beginClose(ce.Code, ce.Reason) {
			t.cfg.logger.Debug("closed by peer",
				slog.Int("code", int(ce.Code)),
				slog.String("reason", ce.Reason),
			)
		}
		return true
	}

	return t.fail(ctx, &ConnectionError{Op: "read", Err: err})
}

// fail moves an open connection to closing with an abnormal closure and
// emits a failure event for err. A connection that is already closing only
// owes its terminal event.
func (t *Transport) fail(ctx context.Context, err error) bool {
	if !t.beginClose(StatusAbnormalClosure, err.Error()) {
		return true
	}

	t.cfg.logger.Warn("connection failed", slog.Any("error", err))
	_ = t.socket.Close(StatusAbnormalClosure, "")

	return t.emit(ctx, FailureEvent(err))
}

// emitTerminal delivers the single State(Disconnected) event.
func (t *Transport) emitTerminal(ctx context.Context) {
	t.mu.Lock()
	code, reason := t.closeCode, t.closeReason
	t.state = stateClosed
	t.mu.Unlock()

	t.cfg.logger.Debug("disconnected",
		slog.Int("code", int(code)),
		slog.String("reason", reason),
	)
	t.emit(ctx, StateEvent(Disconnected(code, reason)))
}

// emit blocks until the event is received or ctx is done.
func (t *Transport) emit(ctx context.Context, ev Event) bool {
	select {
	case t.events <- ev:
		return true
	case <-ctx.Done():
		t.abandon()
		return false
	}
}

// abandon closes the socket after the consumer went away.
func (t *Transport) abandon() {
	t.mu.Lock()
	wasOpen := t.state == stateOpen
	if wasOpen {
		close(t.closing)
	}
	t.state = stateClosed
	t.mu.Unlock()

	if wasOpen {
		_ = t.socket.Close(StatusGoingAway, "")
	}
}

// finish is deferred by the producer goroutine.
func (t *Transport) finish(ctx context.Context, cancel context.CancelFunc) {
	t.mu.Lock()
	state := t.state
	t.mu.Unlock()

	// Close called before Connect: nothing was read, only the terminal event
	// is owed.
	if state == stateClosing {
		t.emitTerminal(ctx)
	}
	cancel()
	close(t.events)
}

func (t *Transport) isClosing() bool {
	select {
	case <-t.closing:
		return true
	default:
		return false
	}
}
