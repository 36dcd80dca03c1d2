package permissions

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

// RebuildChannel is the Redis pub/sub channel carrying cache rebuild
// notifications. Every replica subscribes; whoever changes the catalog
// publishes.
const RebuildChannel = "permissions:rebuild"

// Notifier fans cache rebuild triggers out to all service replicas.
type Notifier struct {
	client *redis.Client
	logger *observability.Logger
}

// NewNotifier creates a notifier on the given Redis client.
func NewNotifier(client *redis.Client, logger *observability.Logger) *Notifier {
	return &Notifier{client: client, logger: logger}
}

// PublishRebuild announces that the catalog changed and caches must rebuild.
func (n *Notifier) PublishRebuild(ctx context.Context) error {
	if err := n.client.Publish(ctx, RebuildChannel, "rebuild").Err(); err != nil {
		return fmt.Errorf("failed to publish rebuild notification: %w", err)
	}
	return nil
}

// Listen subscribes to rebuild notifications and invokes onRebuild for each
// one until the context is cancelled. A failed rebuild is logged and the
// subscription keeps running; the stale cache stays serving until the next
// successful rebuild.
func (n *Notifier) Listen(ctx context.Context, onRebuild func(context.Context) error) error {
	sub := n.client.Subscribe(ctx, RebuildChannel)
	defer sub.Close()

	// Force the subscription to establish before we report listening.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", RebuildChannel, err)
	}
	n.logger.WithField("channel", RebuildChannel).Info("listening for cache rebuild notifications")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			n.logger.WithField("payload", msg.Payload).Info("rebuild notification received")
			if err := onRebuild(ctx); err != nil {
				n.logger.WithError(err).Error("cache rebuild failed")
			}
		}
	}
}
