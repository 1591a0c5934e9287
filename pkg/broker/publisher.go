package broker

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// IPublisher is the publishing surface handed to the services.
type IPublisher interface {
	PublishMessage(message interface{}) error
	Topic() string
}

// Publisher publishes to one topic with fixed QoS and retain flags. The
// underlying client is shared; closing it is the owner's concern.
type Publisher struct {
	client   mqtt.Client
	topic    string
	qos      byte
	retained bool
	logger   *zap.Logger
}

// NewPublisher creates a publisher bound to one topic.
func NewPublisher(client mqtt.Client, topic string, qos byte, retained bool, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:   client,
		topic:    topic,
		qos:      qos,
		retained: retained,
		logger:   logger,
	}
}

// PublishMessage sends one message. String and []byte payloads pass through
// unchanged; anything else is rejected.
func (p *Publisher) PublishMessage(message interface{}) error {
	var payload []byte
	switch v := message.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	default:
		return fmt.Errorf("invalid message type %T, expected string or []byte", message)
	}

	token := p.client.Publish(p.topic, p.qos, p.retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, token.Error())
	}
	p.logger.Debug("published", zap.String("topic", p.topic), zap.Int("bytes", len(payload)))
	return nil
}

// Topic returns the topic the publisher is bound to.
func (p *Publisher) Topic() string { return p.topic }
