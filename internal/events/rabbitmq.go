package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/identra/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQPublisher publishes auth events to a RabbitMQ queue.
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewRabbitMQPublisher dials the broker and declares the event queue.
func NewRabbitMQPublisher(cfg config.RabbitMQConfig) (*RabbitMQPublisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if strings.TrimSpace(cfg.Queue) == "" {
		return nil, errors.New("rabbitmq queue is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
	}, nil
}

// Publish sends the event to the declared queue.
func (r *RabbitMQPublisher) Publish(ctx context.Context, event Event) error {
	body, attrs, err := encode(event)
	if err != nil {
		return err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	return r.channel.PublishWithContext(ctx, "", r.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   newMessageID(),
		Headers:     headers,
		Body:        body,
	})
}

// Close closes the channel and connection.
func (r *RabbitMQPublisher) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
