package structsock

import (
	"context"
	"encoding/json"
	"fmt"
)

// DecodeContext is handed to an Entry while a message is being decoded. It
// carries the registry that resolved the entry, the raw message and the
// top-level fields parsed during the discriminator lookup. Entries can read
// single fields from Fields; Unmarshal decodes the payload again into a
// concrete value.
type DecodeContext struct {
	Registry *Registry
	Key      string
	Raw      json.RawMessage
	Fields   map[string]json.RawMessage

	payloadField string
}

// Payload returns the part of the message registered values are decoded
// from: the configured payload field, or the whole object.
func (dc *DecodeContext) Payload() (json.RawMessage, error) {
	if dc.payloadField == "" {
		return dc.Raw, nil
	}
	p, ok := dc.Fields[dc.payloadField]
	if !ok {
		return nil, fmt.Errorf("structsock: missing payload field %q", dc.payloadField)
	}
	return p, nil
}

// Unmarshal decodes the payload into v.
func (dc *DecodeContext) Unmarshal(v any) error {
	p, err := dc.Payload()
	if err != nil {
		return err
	}
	return json.Unmarshal(p, v)
}

// Decoded is a successfully decoded structured message.
type Decoded struct {
	Entry Entry
	Value any
}

// Dispatch hands the value to its entry.
func (d Decoded) Dispatch(ctx context.Context) error {
	return d.Entry.Dispatch(ctx, d.Value)
}

// Decoder resolves structured JSON messages against a Registry.
type Decoder struct {
	registry *Registry
	cfg      decoderConfig
}

// NewDecoder creates a decoder bound to registry.
func NewDecoder(registry *Registry, opts ...DecoderOption) *Decoder {
	cfg := decoderConfig{discriminator: "type"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Decoder{registry: registry, cfg: cfg}
}

// Decode parses data, looks up its discriminator and lets the matching entry
// decode the value. All failures are returned as *DecodeError; an unknown
// discriminator unwraps to ErrUnregisteredKey.
func (d *Decoder) Decode(data []byte) (Decoded, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Decoded{}, &DecodeError{Err: err}
	}

	raw, ok := fields[d.cfg.discriminator]
	if !ok {
		return Decoded{}, &DecodeError{Err: ErrMissingDiscriminator}
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return Decoded{}, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMissingDiscriminator, err)}
	}

	entry, ok := d.registry.Resolve(key)
	if !ok {
		return Decoded{}, &DecodeError{Key: key, Err: ErrUnregisteredKey}
	}

	dc := &DecodeContext{
		Registry:     d.registry,
		Key:          key,
		Raw:          data,
		Fields:       fields,
		payloadField: d.cfg.payload,
	}
	value, err := entry.Decode(dc)
	if err != nil {
		return Decoded{}, &DecodeError{Key: key, Err: err}
	}
	return Decoded{Entry: entry, Value: value}, nil
}
