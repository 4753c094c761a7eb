package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"EconCast/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type warmPayload struct {
	Indicator string `json:"indicator"`
}

type recordingJob struct {
	mu       sync.Mutex
	seen     []string
	failures int
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "warm" }

func (j *recordingJob) Handle(_ context.Context, payload json.RawMessage) error {
	p, err := DecodePayload[warmPayload](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failures > 0 {
		j.failures--
		return errors.New("transient")
	}
	j.seen = append(j.seen, p.Indicator)
	return nil
}

func (j *recordingJob) handled() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.seen...)
}

func startQueue(t *testing.T, job Job, cfg *QueueConfig) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewRedisQueue(logger.Nop(), cfg, client, ModeProducerConsumer, WithKeyPrefix("t"))
	q.RegisterJobs(job)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Stop(ctx)
	})
	return q, mr
}

func TestEnqueueAndHandle(t *testing.T) {
	job := &recordingJob{}
	q, _ := startQueue(t, job, &QueueConfig{PollTimeout: 100 * time.Millisecond})

	require.NoError(t, q.Enqueue(context.Background(), "warm", warmPayload{Indicator: "selic"}))
	require.Eventually(t, func() bool { return len(job.handled()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"selic"}, job.handled())

	err := q.Enqueue(context.Background(), "unknown", warmPayload{})
	assert.Error(t, err)
}

func TestRetryThenSucceed(t *testing.T) {
	job := &recordingJob{failures: 1}
	q, _ := startQueue(t, job, &QueueConfig{
		RetryLimit:  2,
		RetryDelay:  time.Millisecond,
		PollTimeout: 100 * time.Millisecond,
	})

	require.NoError(t, q.Enqueue(context.Background(), "warm", warmPayload{Indicator: "ipca"}))
	require.Eventually(t, func() bool { return len(job.handled()) == 1 }, 5*time.Second, 20*time.Millisecond)
}

func TestDeadLetterAfterRetries(t *testing.T) {
	job := &recordingJob{failures: 10}
	q, mr := startQueue(t, job, &QueueConfig{
		RetryLimit:  1,
		RetryDelay:  time.Millisecond,
		PollTimeout: 100 * time.Millisecond,
	})

	ok, err := q.EnqueueUnique(context.Background(), "warm", "cambio", warmPayload{Indicator: "cambio"}, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		n, _ := mr.List("t:dlq")
		return len(n) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, job.handled())
	assert.False(t, mr.Exists("t:pending:cambio"), "dead-lettered message releases its key")
}

func TestEnqueueUniqueCoalesces(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	q := NewRedisQueue(logger.Nop(), nil, client, ModeProducerOnly, WithKeyPrefix("t"))
	require.NoError(t, q.Start(context.Background()))

	ctx := context.Background()
	ok, err := q.EnqueueUnique(ctx, "warm", "selic", warmPayload{Indicator: "selic"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = q.EnqueueUnique(ctx, "warm", "selic", warmPayload{Indicator: "selic"}, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "pending key suppresses duplicates")

	waiting, err := mr.List("t:messages")
	require.NoError(t, err)
	assert.Len(t, waiting, 1)

	mr.FastForward(2 * time.Minute)
	ok, err = q.EnqueueUnique(ctx, "warm", "selic", warmPayload{Indicator: "selic"}, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, q.Stop(ctx))
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload[warmPayload](json.RawMessage(`{"indicator":"pib"}`))
	require.NoError(t, err)
	assert.Equal(t, "pib", p.Indicator)

	_, err = DecodePayload[warmPayload](nil)
	assert.Error(t, err)
}
