package events

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/identra/apiserver/config"
	"google.golang.org/api/option"
)

// PubSubPublisher publishes auth events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher constructs a Pub/Sub publisher and ensures the
// configured topic exists.
func NewPubSubPublisher(ctx context.Context, cfg config.PubSubConfig) (*PubSubPublisher, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("pubsub topic is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	topic, err := ensureTopic(ctx, client, cfg.Topic)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &PubSubPublisher{client: client, topic: topic}, nil
}

// Publish sends the event to the configured topic and waits for the
// server acknowledgement.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	body, attrs, err := encode(event)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: body, Attributes: attrs})
	_, err = result.Get(ctx)
	return err
}

// Close stops the topic's publish goroutines and closes the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

func ensureTopic(ctx context.Context, client *pubsub.Client, name string) (*pubsub.Topic, error) {
	topic := client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return client.CreateTopic(ctx, name)
	}
	return topic, nil
}
