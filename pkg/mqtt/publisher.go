package mqtt

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/emobox/emobox-api/internal/model"
)

// Publisher is the pub/sub push channel. Publishing is best-effort: a
// failure means the device falls back to polling.
type Publisher interface {
	Publish(topic string, payload interface{}) error
	Close()
}

// Config holds MQTT connection configuration
type Config struct {
	BrokerURL string
	ClientID  string
	Timeout   time.Duration
}

// PahoPublisher implements Publisher over an Eclipse Paho client
type PahoPublisher struct {
	client  paho.Client
	timeout time.Duration
}

// New connects to the broker and returns a publisher. Connection loss is
// handled by the client's auto-reconnect; publishes during an outage fail
// fast and are logged by the caller.
func New(cfg Config) (*PahoPublisher, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectTimeout(cfg.Timeout).
		SetOnConnectHandler(func(paho.Client) {
			log.Println("✅ MQTT Connected")
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("⚠️  MQTT connection lost: %v", err)
		})

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		// Keep the client; ConnectRetry finishes the handshake in the
		// background and publishes start working once it does.
		log.Printf("⚠️  MQTT broker %s not reachable yet, retrying in background", cfg.BrokerURL)
	} else if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &PahoPublisher{client: client, timeout: cfg.Timeout}, nil
}

// Publish sends a JSON payload to a topic with QoS 1 and a bounded wait
func (p *PahoPublisher) Publish(topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	token := p.client.Publish(topic, 1, false, data)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%w: publish to %s timed out", model.ErrChannelUnavailable, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrChannelUnavailable, err)
	}
	return nil
}

// Close disconnects from the broker
func (p *PahoPublisher) Close() {
	p.client.Disconnect(250)
}
