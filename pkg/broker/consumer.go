package broker

import (
	"context"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Handler processes one inbound message. The topic argument is the concrete
// topic the message arrived on, not the subscription filter.
type Handler func(topic string, message mqtt.Message) error

// IConsumer is a blocking subscription over a fixed set of topics.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer subscribes to a set of topics, each with its own QoS, and routes
// every message through a single handler.
type Consumer struct {
	client  mqtt.Client
	topics  map[string]byte // topic filter -> QoS
	handler Handler
	logger  *zap.Logger
}

// NewConsumer creates a consumer over the shared MQTT client.
func NewConsumer(client mqtt.Client, topics map[string]byte, handler Handler, logger *zap.Logger) *Consumer {
	return &Consumer{
		client:  client,
		topics:  topics,
		handler: handler,
		logger:  logger,
	}
}

// SetHandler replaces the message handler.
func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// ConsumeMessage subscribes to every topic and blocks until the context is
// cancelled, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	for topic, qos := range c.topics {
		token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				c.logger.Warn("no handler set", zap.String("topic", msg.Topic()))
				return
			}
			if err := c.handler(msg.Topic(), msg); err != nil {
				c.logger.Error("handle message", zap.String("topic", msg.Topic()), zap.Error(err))
			}
		})
		token.Wait()
		if token.Error() != nil {
			c.logger.Error("subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
			continue
		}
		c.logger.Info("subscribed", zap.String("topic", topic), zap.Uint8("qos", qos))
	}

	<-ctx.Done()

	for topic := range c.topics {
		c.client.Unsubscribe(topic)
	}
}
