package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const connectAttempts = 5

// channel is the subset of *amqp091.Channel the publisher needs
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends JSON events to a topic exchange
type Publisher struct {
	ch       channel
	conn     *amqp091.Connection
	exchange string
	log      *zap.Logger
}

func NewPublisher(ch channel, exchange string, log *zap.Logger) *Publisher {
	return &Publisher{ch: ch, exchange: exchange, log: log}
}

// PublishJSON marshals body and publishes it as a persistent message
func (p *Publisher) PublishJSON(ctx context.Context, routingKey string, body interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.log.Debug("Publishing event", zap.String("routing_key", routingKey), zap.ByteString("payload", jsonBody))

	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         jsonBody,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		p.log.Error("Failed to publish event", zap.String("routing_key", routingKey), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the channel and, when owned, the connection
func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Connect dials the broker with retries and declares the topic exchange
func Connect(ctx context.Context, url, exchange string, log *zap.Logger) (*Publisher, error) {
	config := amqp091.Config{
		Heartbeat: 60 * time.Second,
		Locale:    "en_US",
	}

	var (
		conn *amqp091.Connection
		err  error
	)
	for i := 0; i < connectAttempts; i++ {
		conn, err = amqp091.DialConfig(url, config)
		if err == nil {
			break
		}
		log.Warn("RabbitMQ connection failed, retrying",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", connectAttempts),
			zap.Error(err),
		)
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq after %d attempts: %w", connectAttempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	log.Info("RabbitMQ publisher ready", zap.String("exchange", exchange))
	p := NewPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}
