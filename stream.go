package structsock

import (
	"context"
	"iter"
)

// Stream provides access to a client's events.
// It should only be consumed by a single goroutine.
type Stream struct {
	events <-chan Event
}

func newStream(events <-chan Event) *Stream {
	return &Stream{events: events}
}

// C returns the underlying channel. It is closed after the terminal event.
func (s *Stream) C() <-chan Event {
	return s.events
}

// Next returns the next event. After the terminal event has been returned,
// Next returns ErrClosed. The context can be used to cancel waiting.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return Event{}, ErrClosed
		}
		return ev, nil
	}
}

// Events returns an iterator over all remaining events. Iteration ends after
// the terminal event or when ctx is done.
func (s *Stream) Events(ctx context.Context) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			ev, err := s.Next(ctx)
			if err != nil {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}

// Messages returns an iterator over delivered messages only. Failure events
// are yielded as errors; state events are skipped.
func (s *Stream) Messages(ctx context.Context) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for ev := range s.Events(ctx) {
			switch ev.Kind {
			case EventMessage:
				if !yield(ev.Message, nil) {
					return
				}
			case EventFailure:
				if !yield(Message{}, ev.Err) {
					return
				}
			}
		}
	}
}
