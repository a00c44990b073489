// Package live turns change notifications into a stream of snapshots.
//
// A watcher never trusts notification payloads: every signal triggers a full
// refetch, so subscribers always see the current ordered result.
package live

import (
	"context"
	"fmt"
)

// Watch emits fetch's result immediately and again after every signal on
// changes. It returns nil when changes is closed or ctx is done, and the first
// error from fetch or emit otherwise.
func Watch[T any](ctx context.Context, changes <-chan struct{}, fetch func(context.Context) (T, error), emit func(T) error) error {
	if err := refresh(ctx, fetch, emit); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := refresh(ctx, fetch, emit); err != nil {
				return err
			}
		}
	}
}

func refresh[T any](ctx context.Context, fetch func(context.Context) (T, error), emit func(T) error) error {
	snapshot, err := fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("fetching snapshot: %w", err)
	}
	if err := emit(snapshot); err != nil {
		return fmt.Errorf("emitting snapshot: %w", err)
	}
	return nil
}
