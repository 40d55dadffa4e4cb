// Package race runs independent lookups concurrently and keeps the first
// useful answer.
package race

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Task produces a candidate value. Errors count as "no answer".
type Task[T any] func(ctx context.Context) (T, error)

// FirstNonNull starts every task at once and returns the first value accepted
// by ok. Once a winner is found the remaining tasks are cancelled through their
// context. If every task completes without an accepted value, or ctx is
// cancelled first, it returns the zero value and false.
func FirstNonNull[T any](ctx context.Context, tasks []Task[T], ok func(T) bool) (T, bool) {
	var zero T
	if len(tasks) == 0 {
		return zero, false
	}

	taskCtx, cancel := context.WithCancel(ctx)

	var (
		won    atomic.Bool
		winner T
		once   sync.Once
		found  = make(chan struct{})
		all    = make(chan struct{})
		g      errgroup.Group
	)

	for _, task := range tasks {
		task := task
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("task panicked: %v", r)
				}
			}()

			v, err := task(taskCtx)
			if err != nil || !ok(v) {
				return err
			}
			if won.CompareAndSwap(false, true) {
				once.Do(func() {
					winner = v
					close(found)
				})
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		cancel()
		close(all)
	}()

	select {
	case <-found:
		cancel()
		return winner, true
	case <-all:
		// A winner may have landed just before the last task returned.
		select {
		case <-found:
			return winner, true
		default:
		}
		return zero, false
	case <-ctx.Done():
		cancel()
		return zero, false
	}
}
