package structsock

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrClosed               = errors.New("structsock: connection closed")
	ErrAlreadyConnected     = errors.New("structsock: already connected")
	ErrUnknownMessageFormat = errors.New("structsock: unknown message format")
	ErrNotUTF8              = errors.New("structsock: message is not valid utf-8")
	ErrDuplicateKey         = errors.New("structsock: duplicate registry key")
	ErrInvalidEntry         = errors.New("structsock: invalid registry entry")
	ErrUnregisteredKey      = errors.New("structsock: unregistered discriminator")
	ErrMissingDiscriminator = errors.New("structsock: missing discriminator")
)

// ConnectionError represents a connection-level error.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("structsock: %s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("structsock: %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SendError represents a failure raised by the outbound middleware chain.
type SendError struct {
	Op  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("structsock: send %s: %v", e.Op, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// CloseError is returned by a Socket's Read when the peer closed the
// connection.
type CloseError struct {
	Code   StatusCode
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("structsock: closed with %s: %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("structsock: closed with %s", e.Code)
}

// DecodeError reports a structured message that could not be resolved or
// parsed. Key is empty when the discriminator itself could not be read.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("structsock: decode %q: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("structsock: decode: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DispatchError reports a failure returned by a registered handler.
type DispatchError struct {
	Key string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("structsock: dispatch %q: %v", e.Key, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
