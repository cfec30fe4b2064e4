package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/source-watcher/internal/logic"
)

// DefaultClientID is used when Config.ClientID is empty.
const DefaultClientID = "source-watcher"

// DefaultBufferSize is the number of messages kept while disconnected.
const DefaultBufferSize = 100

// Config holds broker connection settings.
type Config struct {
	Broker     string
	ClientID   string
	Username   string
	Password   string
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are held in a ring buffer and replayed, oldest first,
// when the client reconnects.
type RealPublisher struct {
	client paho.Client
	logger *zap.Logger

	mu        sync.Mutex
	buffer    *ringBuffer
	connected bool
	wasLost   bool
}

// NewRealPublisher creates a publisher for the given broker. The client keeps
// retrying in the background, so an unreachable broker is logged rather than
// treated as fatal.
func NewRealPublisher(cfg Config, logger *zap.Logger) (*RealPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}

	p := &RealPublisher{
		logger: logger,
		buffer: newRingBuffer(cfg.BufferSize, logger),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(TopicSystem, string(will), 1, false).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		logger.Warn("mqtt broker not reachable yet, buffering until connected", zap.String("broker", cfg.Broker))
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	p.connected = true
	reconnected := p.wasLost
	p.wasLost = false
	pending := p.buffer.drainAll()
	p.mu.Unlock()

	p.logger.Info("mqtt connected", zap.Int("buffered", len(pending)))

	if reconnected {
		payload, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "RECONNECTED"})
		if err == nil {
			c.Publish(TopicSystem, 1, false, payload)
		}
	}

	// Replay from a goroutine: waiting on tokens inside the handler would block paho.
	go func() {
		for _, msg := range pending {
			token := c.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
			if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
				p.logger.Warn("mqtt replay failed", zap.String("topic", msg.topic), zap.Error(token.Error()))
			}
		}
	}()
}

func (p *RealPublisher) onConnectionLost(_ paho.Client, err error) {
	p.mu.Lock()
	p.connected = false
	p.wasLost = true
	p.mu.Unlock()

	p.logger.Warn("mqtt connection lost", zap.Error(err))
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.connected {
		p.buffer.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Publish sends a presence transition to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.publish(Topic, 0, false, payload)
}

// PublishAlert sends an alert to the MQTT broker.
func (p *RealPublisher) PublishAlert(alert logic.AlertEvent) error {
	payload, err := FormatAlertPayload(alert)
	if err != nil {
		return fmt.Errorf("format alert payload: %w", err)
	}

	// QoS 1: alerts should arrive even across a brief reconnect.
	return p.publish(TopicAlerts, 1, false, payload)
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	return p.publish(TopicSystem, 1, event.Retained, payload)
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
