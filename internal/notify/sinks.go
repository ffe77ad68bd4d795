package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/device-inventory/internal/device"
	"github.com/nerrad567/device-inventory/internal/infrastructure/influxdb"
	"github.com/nerrad567/device-inventory/internal/infrastructure/mqtt"
)

// StatsSource computes current inventory statistics.
type StatsSource interface {
	Stats(ctx context.Context) (device.Stats, error)
}

// Publisher is the subset of *mqtt.Client used by MQTTSink.
type Publisher interface {
	PublishJSON(topic string, v any) error
	Topics() mqtt.Topics
}

// MQTTSink publishes each event as JSON on <prefix>/devices/<event>.
type MQTTSink struct {
	pub Publisher
}

// NewMQTTSink returns nil when pub is nil. NewDispatcher skips nil sinks.
func NewMQTTSink(pub Publisher) Sink {
	if pub == nil {
		return nil
	}
	return &MQTTSink{pub: pub}
}

func (s *MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Deliver(_ context.Context, ev device.Event) error {
	return s.pub.PublishJSON(s.pub.Topics().DeviceEvent(string(ev.Type)), ev)
}

// Broadcaster is the subset of the WebSocket hub used by HubSink.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

// HubSink pushes events to WebSocket clients. The channel name is the
// event type, e.g. "device.issued".
type HubSink struct {
	hub Broadcaster
}

// NewHubSink returns nil when hub is nil.
func NewHubSink(hub Broadcaster) Sink {
	if hub == nil {
		return nil
	}
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "websocket" }

func (s *HubSink) Deliver(_ context.Context, ev device.Event) error {
	s.hub.Broadcast(string(ev.Type), ev.Device)
	return nil
}

// InfluxWriter is the subset of *influxdb.Client used by InfluxSink.
type InfluxWriter interface {
	WriteDeviceEvent(eventType, deviceID string, issued bool, at time.Time)
	WriteInventoryStats(s influxdb.InventoryStats, at time.Time)
}

// InfluxSink records every event and a fresh stats snapshot as time series.
type InfluxSink struct {
	w     InfluxWriter
	stats StatsSource
}

// NewInfluxSink returns nil when w is nil.
func NewInfluxSink(w InfluxWriter, stats StatsSource) Sink {
	if w == nil {
		return nil
	}
	return &InfluxSink{w: w, stats: stats}
}

func (s *InfluxSink) Name() string { return "influxdb" }

func (s *InfluxSink) Deliver(ctx context.Context, ev device.Event) error {
	s.w.WriteDeviceEvent(string(ev.Type), ev.Device.DeviceID, ev.Device.IsIssued, ev.At)

	if s.stats == nil {
		return nil
	}
	st, err := s.stats.Stats(ctx)
	if err != nil {
		return fmt.Errorf("computing stats snapshot: %w", err)
	}
	s.w.WriteInventoryStats(influxdb.InventoryStats{
		Total:          st.TotalDevices,
		Available:      st.AvailableDevices,
		Issued:         st.IssuedDevices,
		AddedThisMonth: st.AddedThisMonth,
	}, ev.At)
	return nil
}

// Recorder is the subset of *metrics.Metrics used by MetricsSink.
type Recorder interface {
	DeviceEvent(eventType string)
	SetInventory(total, available, issued int)
}

// MetricsSink counts events and keeps the inventory gauges current.
type MetricsSink struct {
	rec   Recorder
	stats StatsSource
}

// NewMetricsSink returns nil when rec is nil.
func NewMetricsSink(rec Recorder, stats StatsSource) Sink {
	if rec == nil {
		return nil
	}
	return &MetricsSink{rec: rec, stats: stats}
}

func (s *MetricsSink) Name() string { return "metrics" }

func (s *MetricsSink) Deliver(ctx context.Context, ev device.Event) error {
	s.rec.DeviceEvent(string(ev.Type))

	if s.stats == nil {
		return nil
	}
	st, err := s.stats.Stats(ctx)
	if err != nil {
		return fmt.Errorf("computing stats snapshot: %w", err)
	}
	s.rec.SetInventory(st.TotalDevices, st.AvailableDevices, st.IssuedDevices)
	return nil
}
