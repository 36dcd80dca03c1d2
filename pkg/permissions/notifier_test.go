package permissions

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcgov/sbc-auth-sub003/pkg/observability"
)

func TestNotifierPublishAndListen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	notifier := NewNotifier(client, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rebuilt := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- notifier.Listen(ctx, func(context.Context) error {
			select {
			case rebuilt <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	// Listen establishes its subscription before publishing can be seen;
	// give it a moment.
	require.Eventually(t, func() bool {
		return notifier.PublishRebuild(context.Background()) == nil && len(rebuilt) > 0
	}, 2*time.Second, 20*time.Millisecond)

	<-rebuilt

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop on context cancellation")
	}
}

func TestNotifierPublishFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	notifier := NewNotifier(client, logger)

	err := notifier.PublishRebuild(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebuild notification")
}
