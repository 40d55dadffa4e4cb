package race

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notEmpty(s string) bool { return s != "" }

func after(d time.Duration, v string, err error) Task[string] {
	return func(ctx context.Context) (string, error) {
		select {
		case <-time.After(d):
			return v, err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func TestFirstNonNullFastestSuccessWins(t *testing.T) {
	tasks := []Task[string]{
		after(150*time.Millisecond, "slow", nil),
		after(10*time.Millisecond, "", nil),
		after(40*time.Millisecond, "fast", nil),
		after(20*time.Millisecond, "", errors.New("boom")),
	}

	start := time.Now()
	got, ok := FirstNonNull(context.Background(), tasks, notEmpty)
	require.True(t, ok)
	assert.Equal(t, "fast", got)
	assert.Less(t, time.Since(start), 140*time.Millisecond)
}

func TestFirstNonNullWaitsForAllWhenNothingFound(t *testing.T) {
	tasks := []Task[string]{
		after(10*time.Millisecond, "", nil),
		after(80*time.Millisecond, "", nil),
		after(30*time.Millisecond, "", errors.New("unreachable")),
	}

	start := time.Now()
	got, ok := FirstNonNull(context.Background(), tasks, notEmpty)
	assert.False(t, ok)
	assert.Empty(t, got)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestFirstNonNullSurvivesPanickingTask(t *testing.T) {
	tasks := []Task[string]{
		func(context.Context) (string, error) { panic("bad parser") },
		after(20*time.Millisecond, "ok", nil),
	}

	got, ok := FirstNonNull(context.Background(), tasks, notEmpty)
	require.True(t, ok)
	assert.Equal(t, "ok", got)
}

func TestFirstNonNullCancelsLosers(t *testing.T) {
	var cancelled atomic.Bool
	done := make(chan struct{})
	tasks := []Task[string]{
		after(5*time.Millisecond, "winner", nil),
		func(ctx context.Context) (string, error) {
			defer close(done)
			<-ctx.Done()
			cancelled.Store(true)
			return "", ctx.Err()
		},
	}

	got, ok := FirstNonNull(context.Background(), tasks, notEmpty)
	require.True(t, ok)
	assert.Equal(t, "winner", got)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("losing task was not cancelled")
	}
	assert.True(t, cancelled.Load())
}

func TestFirstNonNullParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, ok := FirstNonNull(ctx, []Task[string]{after(time.Second, "late", nil)}, notEmpty)
	assert.False(t, ok)
}

func TestFirstNonNullEmpty(t *testing.T) {
	_, ok := FirstNonNull[string](context.Background(), nil, notEmpty)
	assert.False(t, ok)
}
