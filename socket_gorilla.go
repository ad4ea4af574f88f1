package structsock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const gorillaCloseTimeout = time.Second

// GorillaDialer opens a socket with github.com/gorilla/websocket.
func GorillaDialer(ctx context.Context, url string, opts *DialOptions) (Socket, error) {
	dialer := &websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: websocket.DefaultDialer.HandshakeTimeout,
		Subprotocols:     opts.Subprotocols,
	}

	conn, _, err := dialer.DialContext(ctx, url, opts.HTTPHeader)
	if err != nil {
		return nil, err
	}

	limit := opts.ReadLimit
	if limit <= 0 {
		limit = defaultReadLimit
	}
	conn.SetReadLimit(limit)

	return &gorillaSocket{conn: conn}, nil
}

// gorillaSocket implements Socket over a gorilla/websocket connection.
// gorilla supports one concurrent writer, so writes are serialized.
type gorillaSocket struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	once    sync.Once
}

// Subprotocol returns the subprotocol selected by the server.
func (s *gorillaSocket) Subprotocol() string {
	return s.conn.Subprotocol()
}

func (s *gorillaSocket) Read(ctx context.Context) (Message, error) {
	// gorilla has no context support; expire the read deadline instead.
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	typ, data, err := s.conn.ReadMessage()
	if err != nil {
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			// The close handler already answered the peer.
			s.once.Do(func() { _ = s.conn.Close() })
			return Message{}, &CloseError{Code: StatusCode(ce.Code), Reason: ce.Text}
		}
		if ctx.Err() != nil {
			return Message{}, ctx.Err()
		}
		return Message{}, err
	}

	switch typ {
	case websocket.TextMessage:
		return Message{Type: MessageText, Data: data}, nil
	case websocket.BinaryMessage:
		return Message{Type: MessageBinary, Data: data}, nil
	default:
		return Message{}, ErrUnknownMessageFormat
	}
}

func (s *gorillaSocket) Write(ctx context.Context, msg Message) error {
	var typ int
	switch msg.Type {
	case MessageText:
		typ = websocket.TextMessage
	case MessageBinary:
		typ = websocket.BinaryMessage
	default:
		return ErrUnknownMessageFormat
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(deadline)
		defer s.conn.SetWriteDeadline(time.Time{})
	}
	return s.conn.WriteMessage(typ, msg.Data)
}

func (s *gorillaSocket) Close(code StatusCode, reason string) error {
	var err error
	s.once.Do(func() {
		if code != StatusAbnormalClosure {
			payload := websocket.FormatCloseMessage(int(code), reason)
			// The peer may already be gone; the close below still runs.
			_ = s.conn.WriteControl(websocket.CloseMessage, payload, time.Now().Add(gorillaCloseTimeout))
		}
		err = s.conn.Close()
	})
	return err
}
