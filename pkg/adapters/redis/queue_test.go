package redis_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/scoserv/pkg/adapters/redis"
	"github.com/aretw0/scoserv/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_SubmitAndConsume(t *testing.T) {
	_, client := newClient(t)
	q := redis.NewQueue(client, "runs", redis.WithBlockTimeout(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Submit(ctx, domain.RunRequest{RunID: "r1", ExperimentID: "e1"}))
	require.NoError(t, q.Submit(ctx, domain.RunRequest{RunID: "r2", ExperimentID: "e1"}))

	var mu sync.Mutex
	var got []string
	done := make(chan error, 1)
	go func() {
		done <- q.Consume(ctx, func(ctx context.Context, req domain.RunRequest) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, req.RunID)
			if len(got) == 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, []string{"r1", "r2"}, got, "messages are consumed in submission order")

	n, err := q.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	n2, err := client.LLen(context.Background(), "scoserv:queue:runs:processing:default").Result()
	require.NoError(t, err)
	assert.Zero(t, n2, "acknowledged messages leave the processing list")
}

func TestQueue_HandlerErrorRequeues(t *testing.T) {
	_, client := newClient(t)
	q := redis.NewQueue(client, "runs", redis.WithBlockTimeout(50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Submit(ctx, domain.RunRequest{RunID: "r1", ExperimentID: "e1"}))

	attempts := 0
	err := q.Consume(ctx, func(ctx context.Context, req domain.RunRequest) error {
		attempts++
		if attempts == 1 {
			return errors.New("store unavailable")
		}
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "failed message is delivered again")
}

func TestQueue_RecoverInFlight(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	// Simulate a consumer that crashed after taking a message.
	require.NoError(t, client.LPush(ctx, "scoserv:queue:runs:processing:worker-1", `{"run_id":"r1","experiment_id":"e1"}`).Err())

	q := redis.NewQueue(client, "runs", redis.WithConsumerName("worker-1"))
	n, err := q.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	length, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, length)
}

func TestQueue_DropsMalformed(t *testing.T) {
	_, client := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, client.LPush(ctx, "scoserv:queue:runs", `not json`).Err())
	q := redis.NewQueue(client, "runs", redis.WithBlockTimeout(50*time.Millisecond))
	require.NoError(t, q.Submit(ctx, domain.RunRequest{RunID: "r1", ExperimentID: "e1"}))

	var got []string
	err := q.Consume(ctx, func(ctx context.Context, req domain.RunRequest) error {
		got = append(got, req.RunID)
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, got)
}

func TestQueue_SubmitFailureIsDispatchError(t *testing.T) {
	mr, client := newClient(t)
	mr.Close()

	q := redis.NewQueue(client, "runs")
	err := q.Submit(context.Background(), domain.RunRequest{RunID: "r1", ExperimentID: "e1"})
	assert.ErrorIs(t, err, domain.ErrDispatch)
}
