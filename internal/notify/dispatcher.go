package notify

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/device-inventory/internal/device"
)

// DefaultQueueSize is used when NewDispatcher is given a non-positive size.
const DefaultQueueSize = 256

// sinkTimeout bounds a single sink delivery.
const sinkTimeout = 5 * time.Second

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink consumes device events.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string
	// Deliver handles one event. Errors are logged by the dispatcher.
	Deliver(ctx context.Context, ev device.Event) error
}

// Dispatcher queues device events and delivers them to its sinks from a
// single worker goroutine, in the order they were committed.
type Dispatcher struct {
	queue  chan device.Event
	sinks  []Sink
	logger Logger
	onDrop func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	// closed is set once the worker has begun its final drain; Enqueue
	// rejects events from then on.
	closedMu sync.RWMutex
	closed   bool
}

// NewDispatcher creates a dispatcher with the given queue capacity.
// Nil sinks are ignored so optional integrations can be passed directly.
func NewDispatcher(size int, sinks ...Sink) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	d := &Dispatcher{
		queue:  make(chan device.Event, size),
		logger: noopLogger{},
	}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetOnDrop registers a callback run whenever an event is dropped.
func (d *Dispatcher) SetOnDrop(fn func()) {
	d.onDrop = fn
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Listener returns a device.Listener that enqueues without blocking.
func (d *Dispatcher) Listener() device.Listener {
	return func(ev device.Event) { d.Enqueue(ev) }
}

// Enqueue adds ev to the queue. It reports false, and counts a drop, if
// the queue is full or the worker has stopped.
func (d *Dispatcher) Enqueue(ev device.Event) bool {
	d.closedMu.RLock()
	defer d.closedMu.RUnlock()

	if d.closed {
		d.dropped(ev, "dispatcher stopped")
		return false
	}

	select {
	case d.queue <- ev:
		return true
	default:
		d.dropped(ev, "queue full")
		return false
	}
}

func (d *Dispatcher) dropped(ev device.Event, reason string) {
	d.logger.Warn("device event dropped",
		"reason", reason,
		"event", ev.Type,
		"device_id", ev.Device.DeviceID,
	)
	if d.onDrop != nil {
		d.onDrop()
	}
}

// Start launches the delivery worker. It returns immediately; calling it
// twice is a no-op. The worker drains and exits when ctx is cancelled or
// Stop is called, whichever comes first. Pass context.WithoutCancel to
// make Stop the only way to end it.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}

	d.closedMu.Lock()
	d.closed = false
	d.closedMu.Unlock()

	var workerCtx context.Context
	workerCtx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.running = true

	go d.run(workerCtx, d.done)

	d.logger.Info("event dispatcher started", "sinks", d.Sinks(), "queue_size", cap(d.queue))
}

// Stop halts the worker after it has delivered the events already queued.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done
	d.logger.Info("event dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-ctx.Done():
			d.closedMu.Lock()
			d.closed = true
			d.closedMu.Unlock()
			d.drain()
			return
		}
	}
}

// drain delivers whatever is still buffered at shutdown.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ev device.Event) {
	for _, s := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		err := s.Deliver(ctx, ev)
		cancel()

		if err != nil {
			d.logger.Warn("device event delivery failed",
				"sink", s.Name(),
				"event", ev.Type,
				"device_id", ev.Device.DeviceID,
				"error", err,
			)
			continue
		}
		d.logger.Debug("device event delivered", "sink", s.Name(), "event", ev.Type)
	}
}
