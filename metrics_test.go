package structsock

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetricsMiddleware(reg, "test")
	require.NoError(t, err)
	ctx := context.Background()

	in := TextMessage("hello")
	res, err := m.HandleInbound(ctx, in, MessageMetadata{Sequence: 1})
	require.NoError(t, err)
	assert.Equal(t, Unhandled(in), res)

	out, ok, err := m.HandleOutbound(ctx, BinaryMessage([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, BinaryMessage([]byte{1, 2, 3}), out)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("inbound", "text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("outbound", "binary")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.bytes.WithLabelValues("inbound")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.bytes.WithLabelValues("outbound")))

	m.ObserveEvent(StateEvent(Connected()))
	m.ObserveEvent(FailureEvent(errors.New("boom")))
	m.ObserveEvent(StateEvent(Disconnected(StatusAbnormalClosure, "")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("state")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.disconnects.WithLabelValues("1006")))

	count, err := testutil.GatherAndCount(reg, "test_structsock_messages_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetricsMiddleware_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetricsMiddleware(reg, "dup")
	require.NoError(t, err)

	_, err = NewMetricsMiddleware(reg, "dup")
	var already prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &already)
}
