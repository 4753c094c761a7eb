package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher enqueues jobs. Implemented by RedisQueue.
type Publisher interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
	// EnqueueUnique drops the message when one with the same key is still pending.
	EnqueueUnique(ctx context.Context, msgType, key string, payload interface{}, ttl time.Duration) (bool, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers     int           // number of workers
	RetryLimit  int           // number of maximum retries
	RetryDelay  time.Duration // delay before a failed message is retried
	PollTimeout time.Duration // BRPOP block time and retry scan interval
}

// Message represents a message in the queue
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Key       string          `json:"key,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

// DecodePayload unmarshals a job payload into T.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var result T
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &result, nil
}
