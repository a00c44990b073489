// queue.go
//
// Redis-backed async webhook queue. Queue implements Sender and enqueues
// jobs instead of posting synchronously; StartWorker drains the queue in a
// background goroutine and hands each job to the inner Sender (Client).
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MGallo-Code/adminity/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// QueueKey is the Redis list used as the outbound webhook queue.
const QueueKey = "adminity:webhook:queue"

// DefaultMaxQueueSize caps the queue when WEBHOOK_QUEUE_MAX is unset.
// Prevents unbounded growth while the webhook is down. 0 = unlimited.
const DefaultMaxQueueSize int64 = 1000

// ErrQueueFull is returned by Send when the queue has reached its size cap.
var ErrQueueFull = errors.New("webhook queue full")

// Queue enqueues jobs to Redis so the HTTP handler returns immediately
// without waiting for the webhook. StartWorker drains the queue asynchronously.
type Queue struct {
	inner        Sender
	rdb          *redis.Client
	maxQueueSize int64 // 0 = unlimited
	metrics      *metrics.Metrics
	popTimeout   time.Duration
}

// NewQueue wraps inner with a Redis-backed async queue.
// maxSize caps the queue length (0 = unlimited). m may be nil.
func NewQueue(inner Sender, rdb *redis.Client, maxSize int64, m *metrics.Metrics) *Queue {
	return &Queue{inner: inner, rdb: rdb, maxQueueSize: maxSize, metrics: m, popTimeout: 2 * time.Second}
}

// enqueueScript atomically checks the queue length and pushes the job only if
// under the cap. Returns 1 if enqueued, 0 if rejected (queue full).
// KEYS[1] = queue key, ARGV[1] = max size (0 = skip check), ARGV[2] = payload.
var enqueueScript = redis.NewScript(`
local max = tonumber(ARGV[1])
if max > 0 and redis.call('LLEN', KEYS[1]) >= max then
    return 0
end
redis.call('RPUSH', KEYS[1], ARGV[2])
return 1
`)

// Send serializes job to JSON and appends it to the Redis queue.
// Returns ErrQueueFull if the queue has reached its cap.
func (q *Queue) Send(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling webhook job: %w", err)
	}
	ok, err := enqueueScript.Run(ctx, q.rdb, []string{QueueKey}, q.maxQueueSize, data).Int64()
	if err != nil {
		return fmt.Errorf("enqueuing webhook job: %w", err)
	}
	if ok == 0 {
		q.metrics.WebhookJob("rejected")
		return ErrQueueFull
	}
	q.metrics.WebhookJob("enqueued")
	return nil
}

// StartWorker drains the queue in a loop, dispatching each job to inner.
// Blocks until ctx is cancelled (server shutdown). Call in a goroutine.
func (q *Queue) StartWorker(ctx context.Context) {
	for {
		// BLPop blocks up to popTimeout then returns redis.Nil -- keeps the
		// loop responsive to ctx cancellation without busy-spinning.
		res, err := q.rdb.BLPop(ctx, q.popTimeout, QueueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				return // server shutting down
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			slog.Error("webhook worker: queue pop failed", "err", err)
			// Back off so a Redis outage doesn't spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		// res[0] = key name, res[1] = payload
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			slog.Error("webhook worker: bad job payload", "err", err)
			q.metrics.WebhookJob("bad_payload")
			continue
		}
		q.dispatch(ctx, job)
	}
}

// dispatch hands job to inner. Errors are logged and dropped, no retry.
func (q *Queue) dispatch(ctx context.Context, job Job) {
	if err := q.inner.Send(ctx, job); err != nil {
		slog.Error("webhook worker: delivery failed", "job_id", job.ID, "url", job.URL, "err", err)
		q.metrics.WebhookJob("failed")
		return
	}
	slog.Info("webhook worker: job delivered", "job_id", job.ID, "url", job.URL,
		"queued_for", time.Since(job.EnqueuedAt).Round(time.Millisecond))
	q.metrics.WebhookJob("delivered")
}
