package structsock

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
)

// HandlingResult is the verdict of an inbound handler.
type HandlingResult struct {
	// Handled stops propagation; the message is not delivered further.
	Handled bool
	// Message is the message to pass on when Handled is false. Handlers may
	// rewrite it.
	Message Message
}

// Handled reports that a message needs no further processing.
func Handled() HandlingResult {
	return HandlingResult{Handled: true}
}

// Unhandled passes msg on to the next handler, or to the caller if there is
// none.
func Unhandled(msg Message) HandlingResult {
	return HandlingResult{Message: msg}
}

// InboundHandler observes, rewrites or consumes received messages.
//
// A handler must not invoke other handlers itself; the chain it is part of
// calls the next handler with the message from an Unhandled result.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg Message, meta MessageMetadata) (HandlingResult, error)
}

// OutboundHandler observes, rewrites or swallows messages before they are
// sent. Returning false swallows the message and nothing is transmitted.
type OutboundHandler interface {
	HandleOutbound(ctx context.Context, msg Message) (Message, bool, error)
}

// InboundFunc adapts a function to InboundHandler.
type InboundFunc func(ctx context.Context, msg Message, meta MessageMetadata) (HandlingResult, error)

func (f InboundFunc) HandleInbound(ctx context.Context, msg Message, meta MessageMetadata) (HandlingResult, error) {
	return f(ctx, msg, meta)
}

// OutboundFunc adapts a function to OutboundHandler.
type OutboundFunc func(ctx context.Context, msg Message) (Message, bool, error)

func (f OutboundFunc) HandleOutbound(ctx context.Context, msg Message) (Message, bool, error) {
	return f(ctx, msg)
}

// Intercept returns an inbound handler that ignores metadata.
func Intercept(fn func(ctx context.Context, msg Message) (HandlingResult, error)) InboundHandler {
	return InboundFunc(func(ctx context.Context, msg Message, _ MessageMetadata) (HandlingResult, error) {
		return fn(ctx, msg)
	})
}

// InboundChain runs inbound handlers in order until one handles the message.
// A chain is itself an InboundHandler, so chains nest.
type InboundChain struct {
	handlers []InboundHandler
}

// NewInboundChain creates a chain of the given handlers. Nil handlers are
// skipped.
func NewInboundChain(handlers ...InboundHandler) *InboundChain {
	c := &InboundChain{}
	c.Append(handlers...)
	return c
}

// Append adds handlers to the end of the chain.
func (c *InboundChain) Append(handlers ...InboundHandler) {
	for _, h := range handlers {
		if h != nil {
			c.handlers = append(c.handlers, h)
		}
	}
}

// Len returns the number of handlers in the chain.
func (c *InboundChain) Len() int {
	return len(c.handlers)
}

// HandleInbound passes msg through every handler. The first Handled result
// stops propagation; otherwise the message as rewritten by the last handler
// is returned as Unhandled. An error stops the chain.
func (c *InboundChain) HandleInbound(ctx context.Context, msg Message, meta MessageMetadata) (HandlingResult, error) {
	for _, h := range c.handlers {
		res, err := h.HandleInbound(ctx, msg, meta)
		if err != nil {
			return HandlingResult{}, err
		}
		if res.Handled {
			return res, nil
		}
		msg = res.Message
	}
	return Unhandled(msg), nil
}

// OutboundChain runs outbound handlers in order until one swallows the
// message.
type OutboundChain struct {
	handlers []OutboundHandler
}

// NewOutboundChain creates a chain of the given handlers. Nil handlers are
// skipped.
func NewOutboundChain(handlers ...OutboundHandler) *OutboundChain {
	c := &OutboundChain{}
	c.Append(handlers...)
	return c
}

// Append adds handlers to the end of the chain.
func (c *OutboundChain) Append(handlers ...OutboundHandler) {
	for _, h := range handlers {
		if h != nil {
			c.handlers = append(c.handlers, h)
		}
	}
}

// Len returns the number of handlers in the chain.
func (c *OutboundChain) Len() int {
	return len(c.handlers)
}

// HandleOutbound passes msg through every handler and returns the message to
// transmit, or false if a handler swallowed it.
func (c *OutboundChain) HandleOutbound(ctx context.Context, msg Message) (Message, bool, error) {
	for _, h := range c.handlers {
		out, ok, err := h.HandleOutbound(ctx, msg)
		if err != nil {
			return Message{}, false, err
		}
		if !ok {
			return Message{}, false, nil
		}
		msg = out
	}
	return msg, true, nil
}

// LoggingMiddleware logs traffic in both directions. It never handles or
// swallows a message.
type LoggingMiddleware struct {
	logger *slog.Logger
	cfg    loggingConfig
}

// NewLoggingMiddleware creates a logging middleware. JSON payloads are
// compacted onto one line unless WithRawPayloads is given.
func NewLoggingMiddleware(logger *slog.Logger, opts ...LoggingOption) *LoggingMiddleware {
	cfg := loggingConfig{
		level:      slog.LevelDebug,
		formatJSON: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if logger == nil {
		logger = discardLogger
	}
	return &LoggingMiddleware{logger: logger, cfg: cfg}
}

func (l *LoggingMiddleware) HandleInbound(ctx context.Context, msg Message, meta MessageMetadata) (HandlingResult, error) {
	if l.logger.Enabled(ctx, l.cfg.level) {
		l.logger.Log(ctx, l.cfg.level, "⬇︎ "+l.render(msg),
			slog.Uint64("seq", meta.Sequence),
			slog.String("type", msg.Type.String()),
		)
	}
	return Unhandled(msg), nil
}

func (l *LoggingMiddleware) HandleOutbound(ctx context.Context, msg Message) (Message, bool, error) {
	if l.logger.Enabled(ctx, l.cfg.level) {
		l.logger.Log(ctx, l.cfg.level, "⬆︎ "+l.render(msg),
			slog.String("type", msg.Type.String()),
		)
	}
	return msg, true, nil
}

func (l *LoggingMiddleware) render(msg Message) string {
	if l.cfg.formatJSON {
		var buf bytes.Buffer
		if err := json.Compact(&buf, msg.Data); err == nil {
			return buf.String()
		}
	}
	text, err := msg.Text()
	if err != nil {
		return msg.String()
	}
	return text
}
