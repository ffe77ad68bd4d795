package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/device-inventory/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang for publishing device events.
//
// It provides connection management, validated publishing, a retained
// online/offline status and automatic reconnection. All methods are safe
// for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	id     string

	connected bool
	connMu    sync.RWMutex

	onConnect    func()
	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// Connect establishes a connection to the MQTT broker.
//
// It builds connection options from config (broker URL, auth, TLS),
// registers a Last Will so an unexpected disconnect is visible on the
// status topic, enables auto-reconnect and waits for the first connection.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	id := clientID(cfg.Broker.ClientID)
	topics := Topics{Prefix: cfg.TopicPrefix}

	opts := buildClientOptions(cfg, id)
	configureLWT(opts, topics, id)

	c := &Client{cfg: cfg, topics: topics, id: id}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		// ConnectRetry keeps trying in the background; stop it.
		c.client.Disconnect(0)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired yet.
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	return c, nil
}

// newClient wraps an existing paho client. Used by tests.
func newClient(pc pahomqtt.Client, cfg config.MQTTConfig) *Client {
	return &Client{
		client:    pc,
		cfg:       cfg,
		topics:    Topics{Prefix: cfg.TopicPrefix},
		id:        clientID(cfg.Broker.ClientID),
		connected: true,
	}
}

// Topics returns the topic builder for this client's prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// handleConnect is called on the initial connection and every reconnect.
func (c *Client) handleConnect() {
	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()

	c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, statusPayload("online", c.id, ""))

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// Close publishes a graceful offline status and disconnects.
// Safe to call on a nil client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload("offline", c.id, "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}
