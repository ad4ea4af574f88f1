package structsock

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Entry describes how to decode and dispatch one kind of structured message.
// Entries are keyed by the discriminator value found in the payload.
type Entry interface {
	Key() string
	Decode(dc *DecodeContext) (any, error)
	Dispatch(ctx context.Context, value any) error
}

// NewEntry creates an entry that decodes the payload into T with
// encoding/json and passes it to handle.
func NewEntry[T any](key string, handle func(ctx context.Context, msg T) error) Entry {
	return &typedEntry[T]{key: key, handle: handle}
}

type typedEntry[T any] struct {
	key    string
	handle func(ctx context.Context, msg T) error
}

func (e *typedEntry[T]) Key() string {
	return e.key
}

func (e *typedEntry[T]) incomplete() bool {
	return e.handle == nil
}

func (e *typedEntry[T]) Decode(dc *DecodeContext) (any, error) {
	var v T
	if err := dc.Unmarshal(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func (e *typedEntry[T]) Dispatch(ctx context.Context, value any) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("structsock: entry %q cannot dispatch %T", e.key, value)
	}
	return e.handle(ctx, v)
}

// NewEntryFunc creates an entry from a decode and a dispatch function. Use it
// to leave the concrete message type to a higher level library.
func NewEntryFunc(key string, decode func(dc *DecodeContext) (any, error), dispatch func(ctx context.Context, value any) error) Entry {
	return &funcEntry{key: key, decode: decode, dispatch: dispatch}
}

type funcEntry struct {
	key      string
	decode   func(dc *DecodeContext) (any, error)
	dispatch func(ctx context.Context, value any) error
}

func (e *funcEntry) Key() string {
	return e.key
}

func (e *funcEntry) incomplete() bool {
	return e.decode == nil || e.dispatch == nil
}

func (e *funcEntry) Decode(dc *DecodeContext) (any, error) {
	return e.decode(dc)
}

func (e *funcEntry) Dispatch(ctx context.Context, value any) error {
	return e.dispatch(ctx, value)
}

// Registry maps discriminator keys to entries. It is safe for concurrent use
// by multiple goroutines.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register adds an entry. Registering a key twice fails with
// ErrDuplicateKey and leaves the first entry in place. A nil entry, or one
// created without its functions, fails with ErrInvalidEntry.
func (r *Registry) Register(entry Entry) error {
	if entry == nil {
		return fmt.Errorf("%w: nil", ErrInvalidEntry)
	}
	key := entry.Key()
	if e, ok := entry.(interface{ incomplete() bool }); ok && e.incomplete() {
		return fmt.Errorf("%w: %q has no handler", ErrInvalidEntry, key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	r.entries[key] = entry
	return nil
}

// MustRegister registers entries and panics if any of them is rejected.
func (r *Registry) MustRegister(entries ...Entry) {
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			panic(err)
		}
	}
}

// Unregister removes the entry for key, if any.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// UnregisterAll removes every entry.
func (r *Registry) UnregisterAll() {
	r.mu.Lock()
	clear(r.entries)
	r.mu.Unlock()
}

// Resolve returns the entry registered for key.
func (r *Registry) Resolve(key string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return e, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.Unlock()

	slices.Sort(keys)
	return keys
}

// RegistryMiddleware is an inbound handler that decodes structured messages
// through a Registry and dispatches them. Messages it cannot decode, including
// those with an unregistered discriminator, are passed on unchanged.
type RegistryMiddleware struct {
	registry *Registry
	decoder  *Decoder
	logger   *slog.Logger
}

// NewRegistryMiddleware creates a middleware with its own registry.
func NewRegistryMiddleware(logger *slog.Logger, opts ...DecoderOption) *RegistryMiddleware {
	if logger == nil {
		logger = discardLogger
	}
	registry := NewRegistry()
	return &RegistryMiddleware{
		registry: registry,
		decoder:  NewDecoder(registry, opts...),
		logger:   logger,
	}
}

// HandleInbound decodes and dispatches msg. A handler error is returned as a
// *DispatchError.
func (m *RegistryMiddleware) HandleInbound(ctx context.Context, msg Message, meta MessageMetadata) (HandlingResult, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Unhandled(msg), nil
	}

	decoded, err := m.decoder.Decode(data)
	if err != nil {
		m.logger.Debug("message not handled by registry",
			slog.Uint64("seq", meta.Sequence),
			slog.Any("error", err),
		)
		return Unhandled(msg), nil
	}

	if err := decoded.Dispatch(ctx); err != nil {
		return HandlingResult{}, &DispatchError{Key: decoded.Entry.Key(), Err: err}
	}
	return Handled(), nil
}

// Registry returns the registry used for decoding.
func (m *RegistryMiddleware) Registry() *Registry {
	return m.registry
}

// Register adds an entry to the middleware's registry.
func (m *RegistryMiddleware) Register(entry Entry) error {
	return m.registry.Register(entry)
}

// MustRegister adds entries and panics on a duplicate key.
func (m *RegistryMiddleware) MustRegister(entries ...Entry) {
	m.registry.MustRegister(entries...)
}

// Unregister removes the entry for key.
func (m *RegistryMiddleware) Unregister(key string) {
	m.registry.Unregister(key)
}

// UnregisterAll removes every entry.
func (m *RegistryMiddleware) UnregisterAll() {
	m.registry.UnregisterAll()
}

// Resolve returns the entry registered for key.
func (m *RegistryMiddleware) Resolve(key string) (Entry, bool) {
	return m.registry.Resolve(key)
}
