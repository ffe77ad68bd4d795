// Package mqtt publishes device lifecycle events to an MQTT broker.
//
// Every committed create, issue, return, update or delete is published as
// JSON on {prefix}/devices/{event}, for example inventory/devices/issued.
// The client also keeps a retained status message on
// {prefix}/system/status and registers a Last Will so consumers notice an
// unclean shutdown.
//
// The connection auto-reconnects with backoff. Publishing while the broker
// is unreachable fails fast with ErrNotConnected rather than queueing.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().DeviceEvent("device.created"), payload)
package mqtt
