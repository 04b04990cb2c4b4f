package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Retry sits out the backoff before touching Redis, so a cancelled context
// must abort it before any re-enqueue.
func TestRetryStopsOnCancelledContext(t *testing.T) {
	q := NewQueue(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := &Job{ID: "j1", Type: JobTypeEmail, Attempt: 0}
	err := q.Retry(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry err = %v, want context.Canceled", err)
	}
	if job.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", job.Attempt)
	}
}
