package jobs

import (
	"context"
	"errors"

	"cloud.google.com/go/pubsub"
)

// Subscriber drains a Pub/Sub subscription into a handler. Messages are
// acked whether or not the handler succeeds: failed syncs are recorded in
// the sync log for operator follow-up rather than redelivered, since a
// deterministic failure would loop forever on retry.
type Subscriber struct {
	subscription *pubsub.Subscription
	handler      *SyncJobHandler
	logger       func(ctx context.Context, event string, fields map[string]any)
}

// NewSubscriber constructs a subscriber around the given subscription and handler.
func NewSubscriber(subscription *pubsub.Subscription, handler *SyncJobHandler, logger func(ctx context.Context, event string, fields map[string]any)) (*Subscriber, error) {
	if subscription == nil {
		return nil, errors.New("jobs: subscription is required")
	}
	if handler == nil {
		return nil, errors.New("jobs: handler is required")
	}
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Subscriber{subscription: subscription, handler: handler, logger: logger}, nil
}

// Run blocks receiving messages until the context is cancelled.
func (s *Subscriber) Run(ctx context.Context) error {
	err := s.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.handler.Handle(ctx, msg.Data); err != nil {
			s.logger(ctx, "job.failed", map[string]any{
				"messageId": msg.ID,
				"requestId": msg.Attributes["requestId"],
				"error":     err.Error(),
			})
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
