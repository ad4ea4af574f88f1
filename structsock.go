// Package structsock provides a client for structured, bidirectional message
// exchange over a WebSocket connection.
//
// The wire protocol is left to a [Socket]; [Dial] creates one with
// github.com/coder/websocket, or with github.com/gorilla/websocket when
// [GorillaDialer] is set in [DialOptions]. On top of the socket the package
// provides three layers:
//
//   - [Transport] turns a connection into an ordered stream of [Event]s:
//     State(Connected), then messages tagged with a sequence number, then
//     exactly one State(Disconnected).
//   - Middleware ([InboundHandler], [OutboundHandler]) inspects, rewrites or
//     consumes messages in both directions. Handlers are composed into
//     chains and never call each other.
//   - [Registry] dispatches JSON messages to typed handlers based on a
//     discriminator field, through [RegistryMiddleware].
//
// [Client] combines them.
//
// # Thread Safety
//
// [Client], [Transport] and [Registry] are safe for concurrent use by
// multiple goroutines. [Transport.Close] may be called any number of times
// from anywhere. A [Stream] should only be consumed by a single goroutine.
//
// # Basic Usage
//
//	ctx := context.Background()
//
//	registry := structsock.NewRegistryMiddleware(nil)
//	registry.MustRegister(structsock.NewEntry("ping", func(ctx context.Context, p Ping) error {
//	    fmt.Println("ping", p.ID)
//	    return nil
//	}))
//
//	client, err := structsock.Connect(ctx, "wss://example.com/ws", nil,
//	    structsock.WithInbound(registry),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect("")
//
//	stream, err := client.Connect(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for ev := range stream.Events(ctx) {
//	    switch ev.Kind {
//	    case structsock.EventMessage:
//	        fmt.Println("unhandled:", ev.Message)
//	    case structsock.EventFailure:
//	        log.Println(ev.Err)
//	    }
//	}
//
// # Errors
//
// Failures that happen while receiving are delivered as failure events, not
// returned, so one bad message does not end a consumption loop. A message the
// registry cannot decode is passed on as unhandled.
//
// # Observability
//
// Use [WithLogger], [NewLoggingMiddleware], [NewMetricsMiddleware] and
// [NewTracer] to add logging, monitoring and tracing to the client:
//
//	metrics, err := structsock.NewMetricsMiddleware(prometheus.DefaultRegisterer, "app")
//	tracer := structsock.NewTracer(nil)
//	client := structsock.NewClient(transport,
//	    structsock.WithLogger(slog.Default()),
//	    structsock.WithInbound(metrics, tracer.Inbound(registry)),
//	    structsock.WithOutbound(metrics),
//	    structsock.WithOnEvent(metrics.ObserveEvent),
//	)
//
// Reconnection is left to the caller: create a new Transport and Client.
package structsock
