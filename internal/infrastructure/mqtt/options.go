package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/device-inventory/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	reconnectInitialDelay = 1 * time.Second
	reconnectMaxDelay     = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// clientID appends a short random suffix to the configured id so that two
// instances sharing a config file do not kick each other off the broker.
func clientID(base string) string {
	if base == "" {
		base = "device-inventory"
	}
	return base + "-" + uuid.NewString()[:8]
}

// buildClientOptions creates paho MQTT options from config.
func buildClientOptions(cfg config.MQTTConfig, id string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(id)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Events are fire-and-forget; no broker-side session is needed.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(reconnectInitialDelay)
	opts.SetMaxReconnectInterval(reconnectMaxDelay)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tlsMinVersion,
		})
	}

	return opts
}

// configureLWT sets up Last Will and Testament so subscribers see the
// service go offline if it disconnects without calling Close.
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, id string) {
	opts.SetWill(topics.SystemStatus(), statusPayload("offline", id, "unexpected_disconnect"), 1, true)
}

// statusPayload creates the JSON payload for status messages.
func statusPayload(status, id, reason string) string {
	if reason == "" {
		return fmt.Sprintf(`{"status":"%s","client_id":"%s","timestamp":"%s"}`,
			status, id, time.Now().UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf(`{"status":"%s","client_id":"%s","reason":"%s","timestamp":"%s"}`,
		status, id, reason, time.Now().UTC().Format(time.RFC3339))
}
