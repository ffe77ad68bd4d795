package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the inventory service.
const (
	MeasurementInventoryStats = "inventory_stats"
	MeasurementDeviceEvents   = "device_events"
)

// InventoryStats is one snapshot of the inventory counters.
type InventoryStats struct {
	Total          int
	Available      int
	Issued         int
	AddedThisMonth int
}

// WriteInventoryStats records a snapshot of the inventory counters.
// The write is non-blocking; points are batched and sent asynchronously.
func (c *Client) WriteInventoryStats(s InventoryStats, at time.Time) {
	c.WritePointWithTime(MeasurementInventoryStats,
		nil,
		map[string]interface{}{
			"total":            s.Total,
			"available":        s.Available,
			"issued":           s.Issued,
			"added_this_month": s.AddedThisMonth,
		},
		at,
	)
}

// WriteDeviceEvent records a single lifecycle change.
//
// The event type is a tag so dashboards can count issues and returns over
// time; the device label is a field to keep series cardinality flat.
func (c *Client) WriteDeviceEvent(eventType, deviceID string, issued bool, at time.Time) {
	c.WritePointWithTime(MeasurementDeviceEvents,
		map[string]string{"event": eventType},
		map[string]interface{}{
			"device_id": deviceID,
			"issued":    issued,
		},
		at,
	)
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
