package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/identra/apiserver/config"
)

// Event types published on the auth lifecycle stream.
const (
	TypeUserRegistered  = "user.registered"
	TypeUserLoggedIn    = "user.logged_in"
	TypeUserLoggedOut   = "user.logged_out"
	TypePasswordChanged = "user.password_changed"
)

// Event is an auth lifecycle notification. Events carry only the user
// id and a timestamp; they never carry credentials or tokens.
type Event struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
}

// Publisher delivers auth events to a broker. Delivery is best-effort:
// callers log failures and never fail a user flow on a broker error.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New constructs the publisher selected by config. An empty backend
// disables publishing.
func New(ctx context.Context, cfg config.EventsConfig) (Publisher, error) {
	switch cfg.Backend {
	case "":
		return NopPublisher{}, nil
	case "rabbitmq":
		return NewRabbitMQPublisher(cfg.RabbitMQ)
	case "pubsub":
		return NewPubSubPublisher(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

func encode(event Event) ([]byte, map[string]string, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, nil, err
	}
	attrs := map[string]string{"type": event.Type}
	return body, attrs, nil
}
