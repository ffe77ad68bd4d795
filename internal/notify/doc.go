// Package notify fans committed device lifecycle events out to secondary
// consumers: the MQTT broker, the InfluxDB writer, the WebSocket hub and
// Prometheus counters.
//
// The device registry invokes listeners synchronously on the request
// goroutine. The Dispatcher turns that into a non-blocking enqueue and
// delivers events to every Sink from a single background worker, so a slow
// broker never delays an HTTP response:
//
//	d := notify.NewDispatcher(256,
//	    notify.NewMQTTSink(mqttClient),
//	    notify.NewHubSink(hub),
//	)
//	registry.Subscribe(d.Listener())
//	d.Start(ctx)
//	defer d.Stop()
//
// Delivery is best effort. Events are dropped when the queue is full and
// sink errors are logged, never retried.
package notify
