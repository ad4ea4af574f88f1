package structsock

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
)

// DialOptions configures the WebSocket connection.
type DialOptions struct {
	// HTTPHeader specifies additional HTTP headers to send during handshake.
	HTTPHeader http.Header

	// HTTPClient is the HTTP client used for the handshake.
	// If nil, http.DefaultClient is used. Ignored by GorillaDialer.
	HTTPClient *http.Client

	// Subprotocols lists the subprotocols offered to the server.
	Subprotocols []string

	// ReadLimit is the maximum size of a single message. Zero keeps the
	// default of 32MB.
	ReadLimit int64

	// Dialer opens the socket. If nil, CoderDialer is used.
	Dialer SocketDialer

	// TransportOptions are applied to the Transport created by Dial.
	TransportOptions []TransportOption
}

const defaultReadLimit = 32 * 1024 * 1024

// SocketDialer opens a Socket to url.
type SocketDialer func(ctx context.Context, url string, opts *DialOptions) (Socket, error)

// Dial connects to a WebSocket server and returns a Transport for the
// connection.
func Dial(ctx context.Context, url string, opts *DialOptions) (*Transport, error) {
	if opts == nil {
		opts = &DialOptions{}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = CoderDialer
	}

	socket, err := dialer(ctx, url, opts)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", URL: url, Err: err}
	}

	return NewTransport(socket, opts.TransportOptions...), nil
}

// CoderDialer opens a socket with github.com/coder/websocket.
func CoderDialer(ctx context.Context, url string, opts *DialOptions) (Socket, error) {
	dialOpts := &websocket.DialOptions{
		Subprotocols: opts.Subprotocols,
	}
	if opts.HTTPHeader != nil {
		dialOpts.HTTPHeader = opts.HTTPHeader.Clone()
	}
	if opts.HTTPClient != nil {
		dialOpts.HTTPClient = opts.HTTPClient
	}

	conn, _, err := websocket.Dial(ctx, url, dialOpts)
	if err != nil {
		return nil, err
	}

	limit := opts.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)

	return &coderSocket{conn: conn}, nil
}

// coderSocket implements Socket over a coder/websocket connection.
type coderSocket struct {
	conn *websocket.Conn
}

// Subprotocol returns the subprotocol selected by the server.
func (s *coderSocket) Subprotocol() string {
	return s.conn.Subprotocol()
}

func (s *coderSocket) Read(ctx context.Context) (Message, error) {
	typ, data, err := s.conn.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return Message{}, &CloseError{Code: StatusCode(ce.Code), Reason: ce.Reason}
		}
		return Message{}, err
	}

	switch typ {
	case websocket.MessageText:
		return Message{Type: MessageText, Data: data}, nil
	case websocket.MessageBinary:
		return Message{Type: MessageBinary, Data: data}, nil
	default:
		return Message{}, ErrUnknownMessageFormat
	}
}

func (s *coderSocket) Write(ctx context.Context, msg Message) error {
	var typ websocket.MessageType
	switch msg.Type {
	case MessageText:
		typ = websocket.MessageText
	case MessageBinary:
		typ = websocket.MessageBinary
	default:
		return ErrUnknownMessageFormat
	}
	return s.conn.Write(ctx, typ, msg.Data)
}

func (s *coderSocket) Close(code StatusCode, reason string) error {
	// 1006 is never sent on the wire.
	if code == StatusAbnormalClosure {
		return s.conn.CloseNow()
	}
	return s.conn.Close(websocket.StatusCode(code), reason)
}
