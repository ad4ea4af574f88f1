package structsock

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type pingMsg struct {
	ID int `json:"id"`
}

type chatMsg struct {
	Text string `json:"text"`
}

func TestRegistry_DuplicateKey(t *testing.T) {
	r := NewRegistry()

	var calls []string
	first := NewEntry("ping", func(context.Context, pingMsg) error {
		calls = append(calls, "first")
		return nil
	})
	second := NewEntry("ping", func(context.Context, pingMsg) error {
		calls = append(calls, "second")
		return nil
	})

	require.NoError(t, r.Register(first))
	err := r.Register(second)
	require.ErrorIs(t, err, ErrDuplicateKey)
	assert.Contains(t, err.Error(), `"ping"`)

	decoded, err := NewDecoder(r).Decode([]byte(`{"type":"ping","id":1}`))
	require.NoError(t, err)
	require.NoError(t, decoded.Dispatch(context.Background()))
	assert.Equal(t, []string{"first"}, calls)
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewEntry("ping", func(context.Context, pingMsg) error { return nil }))

	assert.Panics(t, func() {
		r.MustRegister(NewEntry("ping", func(context.Context, pingMsg) error { return nil }))
	})
}

func TestRegistry_RejectsInvalidEntries(t *testing.T) {
	dispatch := func(context.Context, any) error { return nil }
	decode := func(*DecodeContext) (any, error) { return nil, nil }

	tests := []struct {
		name  string
		entry Entry
	}{
		{"nil", nil},
		{"typed without handler", NewEntry[pingMsg]("ping", nil)},
		{"func without decode", NewEntryFunc("raw", nil, dispatch)},
		{"func without dispatch", NewEntryFunc("raw", decode, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			assert.ErrorIs(t, r.Register(tt.entry), ErrInvalidEntry)
			assert.Empty(t, r.Keys())
			assert.Panics(t, func() { r.MustRegister(tt.entry) })
		})
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		NewEntry("ping", func(context.Context, pingMsg) error { return nil }),
		NewEntry("chat", func(context.Context, chatMsg) error { return nil }),
	)
	assert.Equal(t, []string{"chat", "ping"}, r.Keys())

	r.Unregister("ping")
	r.Unregister("missing")
	_, ok := r.Resolve("ping")
	assert.False(t, ok)
	assert.Equal(t, []string{"chat"}, r.Keys())

	// The key can be reused once removed.
	require.NoError(t, r.Register(NewEntry("ping", func(context.Context, pingMsg) error { return nil })))

	r.UnregisterAll()
	assert.Empty(t, r.Keys())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i)
		g.Go(func() error {
			return r.Register(NewEntry(key, func(context.Context, pingMsg) error { return nil }))
		})
		g.Go(func() error {
			r.Resolve(key)
			r.Keys()
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, r.Keys(), 50)
}

func TestDecoder_RoundTrip(t *testing.T) {
	r := NewRegistry()
	var got []pingMsg
	r.MustRegister(NewEntry("ping", func(_ context.Context, p pingMsg) error {
		got = append(got, p)
		return nil
	}))

	decoded, err := NewDecoder(r).Decode([]byte(`{"type":"ping","id":42}`))
	require.NoError(t, err)
	assert.Equal(t, pingMsg{ID: 42}, decoded.Value)

	require.NoError(t, decoded.Dispatch(context.Background()))
	assert.Equal(t, []pingMsg{{ID: 42}}, got)
}

func TestDecoder_Errors(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewEntry("ping", func(context.Context, pingMsg) error { return nil }))
	d := NewDecoder(r)

	tests := []struct {
		name    string
		data    string
		key     string
		wantErr error
	}{
		{name: "unregistered", data: `{"type":"pong"}`, key: "pong", wantErr: ErrUnregisteredKey},
		{name: "missing discriminator", data: `{"id":1}`, wantErr: ErrMissingDiscriminator},
		{name: "non-string discriminator", data: `{"type":7}`, wantErr: ErrMissingDiscriminator},
		{name: "bad field type", data: `{"type":"ping","id":"x"}`, key: "ping"},
		{name: "not an object", data: `[1,2]`},
		{name: "not json", data: `hello`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode([]byte(tt.data))
			require.Error(t, err)

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, tt.key, decodeErr.Key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDecoder_Options(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewEntry("chat", func(context.Context, chatMsg) error { return nil }))

	d := NewDecoder(r, WithDiscriminatorField("kind"), WithPayloadField("data"))

	decoded, err := d.Decode([]byte(`{"kind":"chat","data":{"text":"hi"}}`))
	require.NoError(t, err)
	assert.Equal(t, chatMsg{Text: "hi"}, decoded.Value)

	_, err = d.Decode([]byte(`{"kind":"chat"}`))
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "chat", decodeErr.Key)

	_, err = d.Decode([]byte(`{"type":"chat","data":{}}`))
	assert.ErrorIs(t, err, ErrMissingDiscriminator)
}

func TestNewEntryFunc(t *testing.T) {
	r := NewRegistry()

	var seen *DecodeContext
	r.MustRegister(NewEntryFunc("raw",
		func(dc *DecodeContext) (any, error) {
			seen = dc
			return string(dc.Fields["body"]), nil
		},
		func(_ context.Context, v any) error {
			if v != `"abc"` {
				return errors.New("unexpected value")
			}
			return nil
		},
	))

	decoded, err := NewDecoder(r).Decode([]byte(`{"type":"raw","body":"abc"}`))
	require.NoError(t, err)
	require.NoError(t, decoded.Dispatch(context.Background()))

	require.NotNil(t, seen)
	assert.Same(t, r, seen.Registry)
	assert.Equal(t, "raw", seen.Key)
	assert.JSONEq(t, `{"type":"raw","body":"abc"}`, string(seen.Raw))
	assert.Equal(t, map[string]json.RawMessage{
		"type": json.RawMessage(`"raw"`),
		"body": json.RawMessage(`"abc"`),
	}, seen.Fields)
}

func TestTypedEntry_WrongType(t *testing.T) {
	e := NewEntry("ping", func(context.Context, pingMsg) error { return nil })
	err := e.Dispatch(context.Background(), chatMsg{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot dispatch")
}

func TestRegistryMiddleware_HandleInbound(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m := NewRegistryMiddleware(logger)
	dispatched := 0
	m.MustRegister(NewEntry("ping", func(context.Context, pingMsg) error {
		dispatched++
		return nil
	}))
	ctx := context.Background()

	res, err := m.HandleInbound(ctx, TextMessage(`{"type":"ping","id":1}`), MessageMetadata{Sequence: 1})
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.Equal(t, 1, dispatched)

	other := TextMessage(`{"type":"pong"}`)
	res, err = m.HandleInbound(ctx, other, MessageMetadata{Sequence: 2})
	require.NoError(t, err)
	assert.False(t, res.Handled)
	assert.Equal(t, other, res.Message)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "message not handled by registry", entry["msg"])
	assert.EqualValues(t, 2, entry["seq"])

	res, err = m.HandleInbound(ctx, Message{Data: []byte("?")}, MessageMetadata{})
	require.NoError(t, err)
	assert.False(t, res.Handled)
}

func TestRegistryMiddleware_DispatchError(t *testing.T) {
	boom := errors.New("boom")
	m := NewRegistryMiddleware(nil)
	m.MustRegister(NewEntry("ping", func(context.Context, pingMsg) error { return boom }))

	_, err := m.HandleInbound(context.Background(), TextMessage(`{"type":"ping"}`), MessageMetadata{})

	var dispatchErr *DispatchError
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, "ping", dispatchErr.Key)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryMiddleware_Delegates(t *testing.T) {
	m := NewRegistryMiddleware(nil)
	require.NoError(t, m.Register(NewEntry("ping", func(context.Context, pingMsg) error { return nil })))
	assert.ErrorIs(t, m.Register(NewEntry("ping", func(context.Context, pingMsg) error { return nil })), ErrDuplicateKey)

	_, ok := m.Resolve("ping")
	assert.True(t, ok)
	assert.Equal(t, []string{"ping"}, m.Registry().Keys())

	m.Unregister("ping")
	_, ok = m.Resolve("ping")
	assert.False(t, ok)

	m.MustRegister(NewEntry("a", func(context.Context, pingMsg) error { return nil }))
	m.UnregisterAll()
	assert.Empty(t, m.Registry().Keys())
}
