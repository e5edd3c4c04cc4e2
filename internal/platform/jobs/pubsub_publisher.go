// Package jobs moves sync work between the webhook dispatcher and the worker
// over Cloud Pub/Sub.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/storebridge/erpsync/internal/platform/webhook"
)

// PubSubJobPublisher publishes sync jobs to a Pub/Sub topic.
type PubSubJobPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubJobPublisher constructs a Pub/Sub backed sync job publisher.
func NewPubSubJobPublisher(topic *pubsub.Topic) (*PubSubJobPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub job publisher: topic is required")
	}
	return &PubSubJobPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

var _ webhook.JobPublisher = (*PubSubJobPublisher)(nil)

// Publish enqueues a sync job message on the configured topic.
func (p *PubSubJobPublisher) Publish(ctx context.Context, message webhook.SyncJobMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub job publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal sync job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "requestId", message.RequestID)
	setAttr(attrs, "kind", string(message.Kind))
	setAttr(attrs, "topic", message.Topic)
	setAttr(attrs, "eventId", message.EventID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish sync job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
