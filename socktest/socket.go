// Package socktest provides a scripted structsock.Socket for tests.
//
// Messages pushed onto a Socket are queued and returned by Read in order.
// Because a Transport only starts reading after it has emitted
// State(Connected), pushed messages are never observed before the connection
// is reported as open, no matter when they were pushed. Messages pushed before
// Close are still returned by Read ahead of the closed error.
package socktest

import (
	"context"
	"net"
	"sync"

	"github.com/chrisboulton/structsock"
)

// CloseCall records one call to Socket.Close.
type CloseCall struct {
	Code   structsock.StatusCode
	Reason string
}

type result struct {
	msg structsock.Message
	err error
}

// Option configures a Socket.
type Option func(*Socket)

// WithResumeError makes Resume fail with err.
func WithResumeError(err error) Option {
	return func(s *Socket) {
		s.resumeErr = err
	}
}

// WithWriteError makes every Write fail with err.
func WithWriteError(err error) Option {
	return func(s *Socket) {
		s.writeErr = err
	}
}

// WithUnresponsiveClose makes Close record the call without unblocking a
// pending Read, like a primitive that never reports back.
func WithUnresponsiveClose() Option {
	return func(s *Socket) {
		s.unresponsive = true
	}
}

// Socket is an in-memory structsock.Socket. It is safe for concurrent use.
type Socket struct {
	resumeErr    error
	writeErr     error
	unresponsive bool

	mu      sync.Mutex
	queue   []result
	sent    []structsock.Message
	closes  []CloseCall
	resumed bool

	ready     chan struct{}
	reads     chan struct{}
	sentC     chan structsock.Message
	taken     chan structsock.Message
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a Socket with initial messages already queued.
func New(initial []structsock.Message, opts ...Option) *Socket {
	s := &Socket{
		ready:  make(chan struct{}, 1),
		reads:  make(chan struct{}, 100),
		sentC:  make(chan structsock.Message, 100),
		taken:  make(chan structsock.Message, 100),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, m := range initial {
		s.queue = append(s.queue, result{msg: m})
	}
	return s
}

// Push queues a message for Read.
func (s *Socket) Push(msg structsock.Message) {
	s.enqueue(result{msg: msg})
}

// PushText queues a text message for Read.
func (s *Socket) PushText(text string) {
	s.Push(structsock.TextMessage(text))
}

// PushClose makes Read report that the peer closed the connection.
func (s *Socket) PushClose(code structsock.StatusCode, reason string) {
	s.enqueue(result{err: &structsock.CloseError{Code: code, Reason: reason}})
}

// PushError makes Read fail with err.
func (s *Socket) PushError(err error) {
	s.enqueue(result{err: err})
}

func (s *Socket) enqueue(r result) {
	s.mu.Lock()
	s.queue = append(s.queue, r)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// Resume implements structsock.Resumer.
func (s *Socket) Resume(ctx context.Context) error {
	s.mu.Lock()
	s.resumed = true
	s.mu.Unlock()
	return s.resumeErr
}

// Resumed reports whether Resume was called.
func (s *Socket) Resumed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumed
}

// Read returns the next queued message. It blocks until a message is pushed,
// the socket is closed or ctx is done. Queued messages are returned before a
// closed socket or a done ctx is reported.
func (s *Socket) Read(ctx context.Context) (structsock.Message, error) {
	select {
	case s.reads <- struct{}{}:
	default:
	}

	for {
		if r, ok := s.pop(); ok {
			return r.msg, r.err
		}

		select {
		case <-s.ready:
			continue
		case <-s.closed:
		case <-ctx.Done():
		}

		if r, ok := s.pop(); ok {
			return r.msg, r.err
		}
		select {
		case <-s.closed:
			return structsock.Message{}, net.ErrClosed
		default:
			return structsock.Message{}, ctx.Err()
		}
	}
}

func (s *Socket) pop() (result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return result{}, false
	}
	r := s.queue[0]
	s.queue = s.queue[1:]

	if r.err == nil {
		select {
		case s.taken <- r.msg:
		default:
		}
	}
	return r, true
}

// Taken receives every message returned by Read.
func (s *Socket) Taken() <-chan structsock.Message {
	return s.taken
}

// Reads receives a value every time Read is entered.
func (s *Socket) Reads() <-chan struct{} {
	return s.reads
}

// Write records msg.
func (s *Socket) Write(ctx context.Context, msg structsock.Message) error {
	if s.writeErr != nil {
		return s.writeErr
	}

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	select {
	case s.sentC <- msg:
	default:
	}
	return nil
}

// Sent returns every message written so far.
func (s *Socket) Sent() []structsock.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]structsock.Message(nil), s.sent...)
}

// SentC receives every written message.
func (s *Socket) SentC() <-chan structsock.Message {
	return s.sentC
}

// Close records the call and unblocks pending reads.
func (s *Socket) Close(code structsock.StatusCode, reason string) error {
	s.mu.Lock()
	s.closes = append(s.closes, CloseCall{Code: code, Reason: reason})
	s.mu.Unlock()

	if !s.unresponsive {
		s.closeOnce.Do(func() { close(s.closed) })
	}
	return nil
}

// CloseCalls returns every call to Close.
func (s *Socket) CloseCalls() []CloseCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CloseCall(nil), s.closes...)
}

var _ structsock.Socket = (*Socket)(nil)
var _ structsock.Resumer = (*Socket)(nil)
