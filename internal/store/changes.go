// changes.go -- Change notifications over Redis pub/sub.
//
// Console writes publish the collection name after commit; live views
// subscribe and refetch their snapshot on every notification. Messages carry
// no payload that readers trust, so a missed or duplicate message only costs
// an extra or delayed refetch.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChangeFeed publishes and subscribes to per-collection change notifications.
type ChangeFeed struct {
	rdb *redis.Client
}

// NewChangeFeed wraps rdb. The client stays owned by the caller.
func NewChangeFeed(rdb *redis.Client) *ChangeFeed {
	return &ChangeFeed{rdb: rdb}
}

func changesChannel(c Collection) string {
	return keyPrefix + "changes:" + string(c)
}

// Publish notifies subscribers that c changed.
func (f *ChangeFeed) Publish(ctx context.Context, c Collection) error {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := f.rdb.Publish(ctx, changesChannel(c), stamp).Err(); err != nil {
		return fmt.Errorf("publishing %s change: %w", c, err)
	}
	return nil
}

// Subscribe listens for changes to c. The subscription is confirmed before
// returning, so a Publish issued after Subscribe returns is never missed.
// Bursts collapse into a single pending signal. The returned channel is
// closed after cancel is called; cancel is safe to call more than once.
func (f *ChangeFeed) Subscribe(ctx context.Context, c Collection) (<-chan struct{}, func(), error) {
	ps := f.rdb.Subscribe(ctx, changesChannel(c))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, nil, fmt.Errorf("subscribing to %s changes: %w", c, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range ps.Channel() {
			select {
			case out <- struct{}{}:
			default:
				// a signal is already pending
			}
		}
		slog.Debug("change subscription closed", "collection", string(c))
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { ps.Close() })
	}
	return out, cancel, nil
}
