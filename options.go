package structsock

import (
	"log/slog"
	"time"
)

var discardLogger = slog.New(slog.DiscardHandler)

// --- Client Options ---

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	logger   *slog.Logger
	inbound  []InboundHandler
	outbound []OutboundHandler
	onSend   func(Message)
	onEvent  func(Event)
}

// WithLogger sets a structured logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithInbound appends handlers to the inbound middleware chain. Handlers run
// in the order given, across repeated calls.
func WithInbound(handlers ...InboundHandler) ClientOption {
	return func(c *clientConfig) {
		c.inbound = append(c.inbound, handlers...)
	}
}

// WithOutbound appends handlers to the outbound middleware chain.
func WithOutbound(handlers ...OutboundHandler) ClientOption {
	return func(c *clientConfig) {
		c.outbound = append(c.outbound, handlers...)
	}
}

// WithOnSend sets a callback invoked with every message that reaches the
// transport.
func WithOnSend(fn func(Message)) ClientOption {
	return func(c *clientConfig) {
		c.onSend = fn
	}
}

// WithOnEvent sets a callback invoked with every event before it is
// delivered to the caller.
func WithOnEvent(fn func(Event)) ClientOption {
	return func(c *clientConfig) {
		c.onEvent = fn
	}
}

// --- Transport Options ---

// TransportOption configures a Transport.
type TransportOption func(*transportConfig)

type transportConfig struct {
	logger *slog.Logger
	now    func() time.Time
}

// WithTransportLogger sets a structured logger for the transport.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(c *transportConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock used to stamp received messages.
func WithClock(now func() time.Time) TransportOption {
	return func(c *transportConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// --- Registry Options ---

// DecoderOption configures how structured messages are decoded.
type DecoderOption func(*decoderConfig)

type decoderConfig struct {
	discriminator string
	payload       string
}

// WithDiscriminatorField sets the name of the top-level JSON field holding
// the registry key. The default is "type".
func WithDiscriminatorField(name string) DecoderOption {
	return func(c *decoderConfig) {
		c.discriminator = name
	}
}

// WithPayloadField decodes registered values from the named top-level field
// instead of the whole object.
func WithPayloadField(name string) DecoderOption {
	return func(c *decoderConfig) {
		c.payload = name
	}
}

// --- Logging Options ---

// LoggingOption configures a LoggingMiddleware.
type LoggingOption func(*loggingConfig)

type loggingConfig struct {
	level      slog.Level
	formatJSON bool
}

// WithLogLevel sets the level messages are logged at. The default is
// slog.LevelDebug.
func WithLogLevel(level slog.Level) LoggingOption {
	return func(c *loggingConfig) {
		c.level = level
	}
}

// WithRawPayloads logs payloads verbatim instead of compacting JSON.
func WithRawPayloads() LoggingOption {
	return func(c *loggingConfig) {
		c.formatJSON = false
	}
}
