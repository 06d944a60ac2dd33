package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/handoffmesh/core"
)

// RedisStoreOptions configures a RedisStore.
type RedisStoreOptions struct {
	// KeyPrefix namespaces all keys written by the store.
	KeyPrefix string
	// TTL bounds how long suspended run state is retained. Zero keeps state
	// until deleted.
	TTL time.Duration
}

// RedisStore is a RunStore backed by Redis, suitable for hosts where Start
// and Resume may be served by different processes. Run state is stored as a
// JSON payload under a prefixed key.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore creates a RedisStore on top of an existing client and
// verifies connectivity with a bounded ping.
func NewRedisStore(client *redis.Client, optFns ...func(o *RedisStoreOptions)) (*RedisStore, error) {
	opts := RedisStoreOptions{KeyPrefix: "handoffmesh:run:"}
	for _, fn := range optFns {
		fn(&opts)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, keyPrefix: opts.KeyPrefix, ttl: opts.TTL}, nil
}

func (s *RedisStore) runKey(runID string) string { return s.keyPrefix + runID }

// Save marshals and stores the run state.
func (s *RedisStore) Save(ctx context.Context, state *core.RunState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal run state: %w", err)
	}
	if err := s.client.Set(ctx, s.runKey(state.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save run state: %w", err)
	}
	return nil
}

// Get loads and unmarshals the run state or returns core.ErrRunNotFound.
func (s *RedisStore) Get(ctx context.Context, runID string) (*core.RunState, error) {
	payload, err := s.client.Get(ctx, s.runKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run state: %w", err)
	}

	var state core.RunState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run state: %w", err)
	}
	return &state, nil
}

// Delete removes a run. Deleting an unknown id is not an error.
func (s *RedisStore) Delete(ctx context.Context, runID string) error {
	if err := s.client.Del(ctx, s.runKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to delete run state: %w", err)
	}
	return nil
}
