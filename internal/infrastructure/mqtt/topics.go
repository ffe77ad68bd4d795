package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "inventory"

// Topics builds the topic names the service publishes on.
//
//	topics := mqtt.Topics{Prefix: "inventory"}
//	topics.DeviceEvent("device.issued") // "inventory/devices/issued"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return DefaultTopicPrefix
	}
	return p
}

// DeviceEvent returns the topic for a device lifecycle event. A leading
// "device." in the event type is dropped.
//
// Example: inventory/devices/created
func (t Topics) DeviceEvent(eventType string) string {
	return fmt.Sprintf("%s/devices/%s", t.prefix(), strings.TrimPrefix(eventType, "device."))
}

// AllDeviceEvents returns a wildcard matching every device event topic.
//
// Example: inventory/devices/+
func (t Topics) AllDeviceEvents() string {
	return t.prefix() + "/devices/+"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: inventory/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}
