package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/device-inventory/internal/device"
	"github.com/nerrad567/device-inventory/internal/infrastructure/database"
	"github.com/nerrad567/device-inventory/internal/infrastructure/influxdb"
	"github.com/nerrad567/device-inventory/internal/infrastructure/mqtt"
	"github.com/nerrad567/device-inventory/migrations"
)

// recordingSink captures delivered events.
type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []device.Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, ev device.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) types() []device.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]device.EventType, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Type)
	}
	return out
}

func testEvent(t device.EventType, label string) device.Event {
	return device.Event{
		Type:   t,
		Device: device.Device{ID: 1, DeviceID: label},
		At:     time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(8, sink)

	listener := d.Listener()
	listener(testEvent(device.EventCreated, "AUV-1"))
	listener(testEvent(device.EventIssued, "AUV-1"))
	listener(testEvent(device.EventReturned, "AUV-1"))

	d.Start(context.Background())
	d.Stop()

	assert.Equal(t, []device.EventType{device.EventCreated, device.EventIssued, device.EventReturned}, sink.types())
}

func TestDispatcher_DeliversWhileRunning(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(8, sink)
	d.Start(context.Background())
	defer d.Stop()

	require.True(t, d.Enqueue(testEvent(device.EventDeleted, "AUV-2")))

	assert.Eventually(t, func() bool {
		return len(sink.types()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	var dropped int
	d := NewDispatcher(1)
	d.SetOnDrop(func() { dropped++ })

	assert.True(t, d.Enqueue(testEvent(device.EventCreated, "A")))
	assert.False(t, d.Enqueue(testEvent(device.EventCreated, "B")))
	assert.Equal(t, 1, dropped)
}

func TestDispatcher_SinkErrorDoesNotStopOthers(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("broker down")}
	healthy := &recordingSink{name: "healthy"}
	d := NewDispatcher(4, failing, healthy)

	d.Enqueue(testEvent(device.EventUpdated, "AUV-3"))
	d.Start(context.Background())
	d.Stop()

	assert.Len(t, failing.types(), 1)
	assert.Len(t, healthy.types(), 1)
}

func TestDispatcher_NilSinksIgnored(t *testing.T) {
	d := NewDispatcher(0, nil, NewMQTTSink(nil), NewHubSink(nil), NewInfluxSink(nil, nil), NewMetricsSink(nil, nil))

	assert.Empty(t, d.Sinks())
	assert.Equal(t, DefaultQueueSize, cap(d.queue))
}

func TestDispatcher_StartStopIdempotent(t *testing.T) {
	d := NewDispatcher(1)

	d.Stop()
	d.Start(context.Background())
	d.Start(context.Background())
	d.Stop()
	d.Stop()
}

type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func (l *lineLogger) Debug(string, ...any)       {}
func (l *lineLogger) Info(msg string, _ ...any)  { l.log(msg) }
func (l *lineLogger) Warn(msg string, _ ...any)  { l.log(msg) }
func (l *lineLogger) Error(msg string, _ ...any) { l.log(msg) }

func TestDispatcher_LogsLifecycle(t *testing.T) {
	logger := &lineLogger{}
	d := NewDispatcher(1)
	d.SetLogger(logger)

	d.Start(context.Background())
	d.Start(context.Background())
	d.Stop()
	d.Enqueue(testEvent(device.EventCreated, "AUV-8"))

	assert.Equal(t, []string{
		"event dispatcher started",
		"event dispatcher stopped",
		"device event dropped",
	}, logger.lines)
}

func TestDispatcher_StopsOnParentCancel(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	var dropped int
	d := NewDispatcher(4, sink)
	d.SetOnDrop(func() { dropped++ })

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	d.Enqueue(testEvent(device.EventCreated, "AUV-4"))
	cancel()

	select {
	case <-d.done:
	case <-time.After(time.Second):
		require.FailNow(t, "worker did not exit after context cancellation")
	}

	assert.False(t, d.Enqueue(testEvent(device.EventIssued, "AUV-4")), "exited worker must not accept events")
	assert.Equal(t, 1, dropped)

	d.Stop()
	assert.Equal(t, []device.EventType{device.EventCreated}, sink.types())
}

func TestDispatcher_OutlivesSignalContext(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(4, sink)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(context.WithoutCancel(ctx))
	cancel()

	// A write committed while the API server drains after the signal.
	require.True(t, d.Enqueue(testEvent(device.EventIssued, "AUV-5")))

	d.Stop()
	assert.Equal(t, []device.EventType{device.EventIssued}, sink.types())
}

func TestDispatcher_EnqueueAfterStopIsDropped(t *testing.T) {
	sink := &recordingSink{name: "rec"}
	var dropped int
	d := NewDispatcher(4, sink)
	d.SetOnDrop(func() { dropped++ })

	d.Start(context.Background())
	d.Stop()

	assert.False(t, d.Enqueue(testEvent(device.EventReturned, "AUV-6")))
	assert.Equal(t, 1, dropped)
	assert.Empty(t, sink.types())

	// A restarted dispatcher accepts events again.
	d.Start(context.Background())
	assert.True(t, d.Enqueue(testEvent(device.EventReturned, "AUV-6")))
	d.Stop()
	assert.Equal(t, []device.EventType{device.EventReturned}, sink.types())
}

func TestDispatcher_ListenerReceivesRegistryEvents(t *testing.T) {
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, db.Migrate(ctx, migrations.FS))

	reg := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	sink := &recordingSink{name: "rec"}
	d := NewDispatcher(8, sink)
	reg.Subscribe(d.Listener())

	d.Start(ctx)
	created, err := reg.CreateDevice(ctx, device.NewDevice{DeviceID: "AUV-7"})
	require.NoError(t, err)
	d.Stop()

	require.Equal(t, []device.EventType{device.EventCreated}, sink.types())
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, created.ID, sink.events[0].Device.ID)
	assert.Equal(t, "AUV-7", sink.events[0].Device.DeviceID)
}

// ─── Sinks ─────────────────────────────────────────────────────────

type fakePublisher struct {
	topics []string
	values []any
	err    error
}

func (p *fakePublisher) PublishJSON(topic string, v any) error {
	p.topics = append(p.topics, topic)
	p.values = append(p.values, v)
	return p.err
}

func (p *fakePublisher) Topics() mqtt.Topics { return mqtt.Topics{Prefix: "lab"} }

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub)
	require.NotNil(t, sink)

	ev := testEvent(device.EventIssued, "AUV-1")
	require.NoError(t, sink.Deliver(context.Background(), ev))

	assert.Equal(t, []string{"lab/devices/issued"}, pub.topics)
	assert.Equal(t, ev, pub.values[0])

	pub.err = mqtt.ErrNotConnected
	assert.ErrorIs(t, sink.Deliver(context.Background(), ev), mqtt.ErrNotConnected)
}

type fakeHub struct {
	channel string
	payload any
}

func (h *fakeHub) Broadcast(channel string, payload any) {
	h.channel = channel
	h.payload = payload
}

func TestHubSink(t *testing.T) {
	hub := &fakeHub{}
	sink := NewHubSink(hub)

	ev := testEvent(device.EventReturned, "AUV-9")
	require.NoError(t, sink.Deliver(context.Background(), ev))

	assert.Equal(t, "device.returned", hub.channel)
	assert.Equal(t, ev.Device, hub.payload)
}

type fakeStats struct {
	stats device.Stats
	err   error
}

func (f fakeStats) Stats(context.Context) (device.Stats, error) { return f.stats, f.err }

type fakeInflux struct {
	events []string
	snaps  []influxdb.InventoryStats
}

func (f *fakeInflux) WriteDeviceEvent(eventType, deviceID string, _ bool, _ time.Time) {
	f.events = append(f.events, eventType+":"+deviceID)
}

func (f *fakeInflux) WriteInventoryStats(s influxdb.InventoryStats, _ time.Time) {
	f.snaps = append(f.snaps, s)
}

func TestInfluxSink(t *testing.T) {
	w := &fakeInflux{}
	stats := fakeStats{stats: device.Stats{TotalDevices: 3, AvailableDevices: 2, IssuedDevices: 1, AddedThisMonth: 3}}
	sink := NewInfluxSink(w, stats)

	require.NoError(t, sink.Deliver(context.Background(), testEvent(device.EventIssued, "AUV-1")))

	assert.Equal(t, []string{"device.issued:AUV-1"}, w.events)
	require.Len(t, w.snaps, 1)
	assert.Equal(t, influxdb.InventoryStats{Total: 3, Available: 2, Issued: 1, AddedThisMonth: 3}, w.snaps[0])
}

func TestInfluxSink_StatsError(t *testing.T) {
	w := &fakeInflux{}
	sink := NewInfluxSink(w, fakeStats{err: errors.New("db locked")})

	err := sink.Deliver(context.Background(), testEvent(device.EventCreated, "AUV-1"))
	assert.Error(t, err)
	assert.Len(t, w.events, 1, "the event point is written before the snapshot")
	assert.Empty(t, w.snaps)
}

type fakeRecorder struct {
	events                   []string
	total, available, issued int
}

func (r *fakeRecorder) DeviceEvent(eventType string) { r.events = append(r.events, eventType) }

func (r *fakeRecorder) SetInventory(total, available, issued int) {
	r.total, r.available, r.issued = total, available, issued
}

func TestMetricsSink(t *testing.T) {
	rec := &fakeRecorder{}
	sink := NewMetricsSink(rec, fakeStats{stats: device.Stats{TotalDevices: 4, AvailableDevices: 1, IssuedDevices: 3}})

	require.NoError(t, sink.Deliver(context.Background(), testEvent(device.EventCreated, "X")))

	assert.Equal(t, []string{"device.created"}, rec.events)
	assert.Equal(t, 4, rec.total)
	assert.Equal(t, 1, rec.available)
	assert.Equal(t, 3, rec.issued)
}

func TestMetricsSink_NoStatsSource(t *testing.T) {
	rec := &fakeRecorder{}
	sink := NewMetricsSink(rec, nil)

	require.NoError(t, sink.Deliver(context.Background(), testEvent(device.EventDeleted, "X")))
	assert.Equal(t, []string{"device.deleted"}, rec.events)
}
