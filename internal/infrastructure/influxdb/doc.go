// Package influxdb writes inventory telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health monitoring. The
// service records an inventory_stats snapshot and a device_events point
// after every committed lifecycle change.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteInventoryStats(influxdb.InventoryStats{Total: 3, Issued: 1}, time.Now())
//
// Write errors arrive asynchronously through SetOnError. Connection and
// health check errors are returned directly.
package influxdb
