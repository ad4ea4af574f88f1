package structsock_test

import (
	"testing"
	"time"

	"github.com/chrisboulton/structsock"
)

const testTimeout = 2 * time.Second

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time {
	return fixedTime
}

// recv waits for the next event.
func recv(t *testing.T, events <-chan structsock.Event) structsock.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("event stream closed unexpectedly")
		}
		return ev
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for event")
		return structsock.Event{}
	}
}

// drain collects events until the stream is closed.
func drain(t *testing.T, events <-chan structsock.Event) []structsock.Event {
	t.Helper()
	var out []structsock.Event
	deadline := time.After(testTimeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timeout waiting for stream to end, got %v", out)
			return out
		}
	}
}

// waitRead waits until the socket has a read in flight.
func waitRead(t *testing.T, reads <-chan struct{}) {
	t.Helper()
	select {
	case <-reads:
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for read")
	}
}

// waitTaken waits until the socket has handed a message to a reader.
func waitTaken(t *testing.T, taken <-chan structsock.Message) {
	t.Helper()
	select {
	case <-taken:
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for message to be read")
	}
}

func requireState(t *testing.T, ev structsock.Event, want structsock.ConnectionState) {
	t.Helper()
	if ev.Kind != structsock.EventState {
		t.Fatalf("event = %v, want state %v", ev, want)
	}
	if ev.State != want {
		t.Fatalf("state = %v, want %v", ev.State, want)
	}
}

func requireText(t *testing.T, ev structsock.Event, text string, seq uint64) {
	t.Helper()
	if ev.Kind != structsock.EventMessage {
		t.Fatalf("event = %v, want message %q", ev, text)
	}
	got, err := ev.Message.Text()
	if err != nil {
		t.Fatalf("Text() error: %v", err)
	}
	if got != text {
		t.Errorf("message = %q, want %q", got, text)
	}
	if ev.Metadata.Sequence != seq {
		t.Errorf("sequence = %d, want %d", ev.Metadata.Sequence, seq)
	}
}
