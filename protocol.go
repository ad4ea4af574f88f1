package structsock

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// StatusCode is a WebSocket close code as defined in RFC 6455 section 7.4.
type StatusCode int

const (
	StatusNormalClosure           StatusCode = 1000
	StatusGoingAway               StatusCode = 1001
	StatusProtocolError           StatusCode = 1002
	StatusUnsupportedData         StatusCode = 1003
	StatusNoStatusRcvd            StatusCode = 1005
	StatusAbnormalClosure         StatusCode = 1006
	StatusInvalidFramePayloadData StatusCode = 1007
	StatusPolicyViolation         StatusCode = 1008
	StatusMessageTooBig           StatusCode = 1009
	StatusMandatoryExtension      StatusCode = 1010
	StatusInternalError           StatusCode = 1011
	StatusServiceRestart          StatusCode = 1012
	StatusTryAgainLater           StatusCode = 1013
	StatusBadGateway              StatusCode = 1014
	StatusTLSHandshake            StatusCode = 1015
)

var statusNames = map[StatusCode]string{
	StatusNormalClosure:           "normalClosure",
	StatusGoingAway:               "goingAway",
	StatusProtocolError:           "protocolError",
	StatusUnsupportedData:         "unsupportedData",
	StatusNoStatusRcvd:            "noStatusReceived",
	StatusAbnormalClosure:         "abnormalClosure",
	StatusInvalidFramePayloadData: "invalidFramePayloadData",
	StatusPolicyViolation:         "policyViolation",
	StatusMessageTooBig:           "messageTooBig",
	StatusMandatoryExtension:      "mandatoryExtensionMissing",
	StatusInternalError:           "internalServerError",
	StatusServiceRestart:          "serviceRestart",
	StatusTryAgainLater:           "tryAgainLater",
	StatusBadGateway:              "badGateway",
	StatusTLSHandshake:            "tlsHandshakeFailure",
}

func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return "status(" + strconv.Itoa(int(c)) + ")"
}

// MessageType distinguishes text from binary payloads.
type MessageType int

const (
	MessageText MessageType = iota + 1
	MessageBinary
)

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Message is a single raw message as produced or consumed by the socket.
type Message struct {
	Type MessageType
	Data []byte
}

// TextMessage creates a text message.
func TextMessage(s string) Message {
	return Message{Type: MessageText, Data: []byte(s)}
}

// BinaryMessage creates a binary message.
func BinaryMessage(b []byte) Message {
	return Message{Type: MessageBinary, Data: b}
}

// Bytes returns the raw payload.
func (m Message) Bytes() ([]byte, error) {
	switch m.Type {
	case MessageText, MessageBinary:
		return m.Data, nil
	default:
		return nil, ErrUnknownMessageFormat
	}
}

// Text returns the payload as a string. Binary payloads must be valid UTF-8.
func (m Message) Text() (string, error) {
	switch m.Type {
	case MessageText:
		return string(m.Data), nil
	case MessageBinary:
		if !utf8.Valid(m.Data) {
			return "", ErrNotUTF8
		}
		return string(m.Data), nil
	default:
		return "", ErrUnknownMessageFormat
	}
}

func (m Message) String() string {
	if m.Type == MessageText {
		return strconv.Quote(string(m.Data))
	}
	return fmt.Sprintf("%s(%d bytes)", m.Type, len(m.Data))
}

// MessageMetadata is assigned by the Transport when a message is received.
type MessageMetadata struct {
	// Sequence starts at 1 and increases by one for every message on a
	// connection.
	Sequence uint64
	// ReceivedAt is the time the message was read from the socket.
	ReceivedAt time.Time
}

// Status is the connection status carried by a state event.
type Status int

const (
	StateConnected Status = iota + 1
	StateDisconnected
)

func (s Status) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// ConnectionState is a connection state transition. Code and Reason are only
// set for StateDisconnected.
type ConnectionState struct {
	Status Status
	Code   StatusCode
	Reason string
}

// Connected is the state emitted once the connection is established.
func Connected() ConnectionState {
	return ConnectionState{Status: StateConnected}
}

// Disconnected is the terminal state of a connection.
func Disconnected(code StatusCode, reason string) ConnectionState {
	return ConnectionState{Status: StateDisconnected, Code: code, Reason: reason}
}

func (s ConnectionState) String() string {
	if s.Status == StateDisconnected {
		return fmt.Sprintf("disconnected(%s, %q)", s.Code, s.Reason)
	}
	return s.Status.String()
}

// EventKind identifies the variant held by an Event.
type EventKind int

const (
	EventState EventKind = iota + 1
	EventMessage
	EventFailure
)

func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventMessage:
		return "message"
	case EventFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Event is a single item of a connection's event stream.
type Event struct {
	Kind EventKind

	// EventState
	State ConnectionState

	// EventMessage
	Message  Message
	Metadata MessageMetadata

	// EventFailure
	Err error
}

// StateEvent creates a state event.
func StateEvent(s ConnectionState) Event {
	return Event{Kind: EventState, State: s}
}

// MessageEvent creates a message event.
func MessageEvent(m Message, meta MessageMetadata) Event {
	return Event{Kind: EventMessage, Message: m, Metadata: meta}
}

// FailureEvent creates a failure event.
func FailureEvent(err error) Event {
	return Event{Kind: EventFailure, Err: err}
}

// IsState returns true if this is a state event.
func (e Event) IsState() bool {
	return e.Kind == EventState
}

// IsMessage returns true if this is a message event.
func (e Event) IsMessage() bool {
	return e.Kind == EventMessage
}

// IsFailure returns true if this is a failure event.
func (e Event) IsFailure() bool {
	return e.Kind == EventFailure
}

// IsTerminal returns true if this is the final event of a stream.
func (e Event) IsTerminal() bool {
	return e.Kind == EventState && e.State.Status == StateDisconnected
}

func (e Event) String() string {
	switch e.Kind {
	case EventState:
		return e.State.String()
	case EventMessage:
		return fmt.Sprintf("%s, seq=%d", e.Message, e.Metadata.Sequence)
	case EventFailure:
		return fmt.Sprintf("failure: %v", e.Err)
	default:
		return "unknown event"
	}
}
