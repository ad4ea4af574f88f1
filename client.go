package structsock

import (
	"context"
	"log/slog"
)

// DefaultDisconnectReason is sent by Disconnect when no reason is given.
const DefaultDisconnectReason = "Closing connection"

// Client combines a Transport with inbound and outbound middleware.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	transport *Transport
	cfg       clientConfig
	inbound   *InboundChain
	outbound  *OutboundChain
}

// Connect dials url and returns a Client for the connection. The event
// stream is started with Client.Connect.
func Connect(ctx context.Context, url string, opts *DialOptions, clientOpts ...ClientOption) (*Client, error) {
	transport, err := Dial(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	return NewClient(transport, clientOpts...), nil
}

// NewClient creates a Client on top of a transport.
func NewClient(transport *Transport, opts ...ClientOption) *Client {
	cfg := clientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = discardLogger
	}
	cfg.logger = cfg.logger.With(slog.String("conn_id", transport.ID()))

	return &Client{
		transport: transport,
		cfg:       cfg,
		inbound:   NewInboundChain(cfg.inbound...),
		outbound:  NewOutboundChain(cfg.outbound...),
	}
}

// Transport returns the underlying transport.
func (c *Client) Transport() *Transport {
	return c.transport
}

// Connect starts the connection and returns its event stream. Every
// received message passes through the inbound middleware: handled messages
// are dropped, unhandled ones are delivered with their original metadata,
// and middleware errors are delivered as failure events.
func (c *Client) Connect(ctx context.Context) (*Stream, error) {
	events, err := c.transport.Connect(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Event)
	go c.pipe(ctx, events, out)

	return newStream(out), nil
}

// pipe forwards transport events to out until the transport stream ends.
func (c *Client) pipe(ctx context.Context, in <-chan Event, out chan<- Event) {
	defer close(out)

	for ev := range in {
		ev, ok := c.process(ctx, ev)
		if !ok {
			continue
		}

		if c.cfg.onEvent != nil {
			c.cfg.onEvent(ev)
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			// Drain so the transport can finish.
			for range in {
			}
			return
		}
	}
}

// process runs a message event through the inbound chain. It reports false
// for events that must not be delivered.
func (c *Client) process(ctx context.Context, ev Event) (Event, bool) {
	if ev.Kind != EventMessage || c.inbound.Len() == 0 {
		return ev, true
	}

	res, err := c.inbound.HandleInbound(ctx, ev.Message, ev.Metadata)
	if err != nil {
		c.cfg.logger.Warn("inbound middleware failed",
			slog.Uint64("seq", ev.Metadata.Sequence),
			slog.Any("error", err),
		)
		return FailureEvent(err), true
	}
	if res.Handled {
		return Event{}, false
	}
	return MessageEvent(res.Message, ev.Metadata), true
}

// SendMessage passes msg through the outbound middleware and sends what is
// left of it. A swallowed message causes no network I/O.
func (c *Client) SendMessage(ctx context.Context, msg Message) error {
	if c.outbound.Len() > 0 {
		out, ok, err := c.outbound.HandleOutbound(ctx, msg)
		if err != nil {
			return &SendError{Op: "middleware", Err: err}
		}
		if !ok {
			c.cfg.logger.Debug("message swallowed by middleware")
			return nil
		}
		msg = out
	}

	if c.cfg.onSend != nil {
		c.cfg.onSend(msg)
	}

	return c.transport.Send(ctx, msg)
}

// Disconnect closes the connection with a normal closure. An empty reason is
// replaced by DefaultDisconnectReason.
func (c *Client) Disconnect(reason string) error {
	if reason == "" {
		reason = DefaultDisconnectReason
	}
	return c.transport.Close(StatusNormalClosure, reason)
}
