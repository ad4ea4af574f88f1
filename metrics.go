package structsock

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsMiddleware records Prometheus metrics for traffic in both
// directions. It never handles or swallows a message.
type MetricsMiddleware struct {
	messages    *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	events      *prometheus.CounterVec
	disconnects *prometheus.CounterVec
}

// NewMetricsMiddleware creates the metrics and registers them with reg.
func NewMetricsMiddleware(reg prometheus.Registerer, namespace string) (*MetricsMiddleware, error) {
	m := &MetricsMiddleware{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "structsock",
			Name:      "messages_total",
			Help:      "Total messages passed through the middleware",
		}, []string{"direction", "type"}),

		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "structsock",
			Name:      "message_bytes_total",
			Help:      "Total payload bytes passed through the middleware",
		}, []string{"direction"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "structsock",
			Name:      "events_total",
			Help:      "Total events delivered to the caller",
		}, []string{"kind"}),

		disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "structsock",
			Name:      "disconnects_total",
			Help:      "Total disconnects by close code",
		}, []string{"code"}),
	}

	for _, c := range []prometheus.Collector{m.messages, m.bytes, m.events, m.disconnects} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsMiddleware) HandleInbound(_ context.Context, msg Message, _ MessageMetadata) (HandlingResult, error) {
	m.observe("inbound", msg)
	return Unhandled(msg), nil
}

func (m *MetricsMiddleware) HandleOutbound(_ context.Context, msg Message) (Message, bool, error) {
	m.observe("outbound", msg)
	return msg, true, nil
}

// ObserveEvent counts a delivered event. Pass it to WithOnEvent.
func (m *MetricsMiddleware) ObserveEvent(ev Event) {
	m.events.WithLabelValues(ev.Kind.String()).Inc()
	if ev.IsTerminal() {
		m.disconnects.WithLabelValues(strconv.Itoa(int(ev.State.Code))).Inc()
	}
}

func (m *MetricsMiddleware) observe(direction string, msg Message) {
	m.messages.WithLabelValues(direction, msg.Type.String()).Inc()
	m.bytes.WithLabelValues(direction).Add(float64(len(msg.Data)))
}
