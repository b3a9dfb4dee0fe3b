// Package pubsub broadcasts config cache invalidations to other instances.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// Invalidator publishes a cache-reinit message whenever the config gateway
// flushes a scheduled invalidation. Other instances subscribe to the topic and
// drop their local config caches on receipt.
type Invalidator struct {
	topic  *gpubsub.Topic
	logger *zap.Logger
	now    func() time.Time
}

// NewInvalidator wraps the given topic. The logger may be nil.
func NewInvalidator(topic *gpubsub.Topic, logger *zap.Logger) (*Invalidator, error) {
	if topic == nil {
		return nil, errors.New("pubsub invalidator requires a topic")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{topic: topic, logger: logger, now: time.Now}, nil
}

// Invalidate publishes a single reinit message and waits for the server ack.
func (i *Invalidator) Invalidate(ctx context.Context) error {
	result := i.topic.Publish(ctx, &gpubsub.Message{
		Attributes: map[string]string{
			"kind":       "config-reinit",
			"emitted_at": i.now().UTC().Format(time.RFC3339),
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish config invalidation: %w", err)
	}
	i.logger.Debug("config invalidation broadcast", zap.String("message_id", id))
	return nil
}
