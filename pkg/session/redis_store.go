package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisIndexKey    = "zecswap:sessions:index"
	redisValuePrefix = "zecswap:sessions:"
)

// RedisStore is a Store backed by Redis, for deployments where the
// engine runs as a long-lived service instead of a CLI. Sessions are
// stored as JSON values with an index set for listing.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client redis.Cmdable) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &RedisStore{client: client}, nil
}

func redisKey(id string) string {
	return redisValuePrefix + id
}

// Create implements Store.
func (r *RedisStore) Create(ctx context.Context, s *SwapSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, redisKey(s.ID), b, 0).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, s.ID)
	}
	if err := r.client.SAdd(ctx, redisIndexKey, s.ID).Err(); err != nil {
		return fmt.Errorf("index session: %w", err)
	}
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, id string) (*SwapSession, error) {
	val, err := r.client.Get(ctx, redisKey(id)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s SwapSession
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

// Update implements Store. The terminal-wins rule matches FileStore:
// single-instance deployments are assumed, so read-then-write is safe.
func (r *RedisStore) Update(ctx context.Context, s *SwapSession) error {
	existing, err := r.Get(ctx, s.ID)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() && existing.Status != s.Status {
		return fmt.Errorf("%w: %s is %s", ErrSessionTerminal, s.ID, existing.Status)
	}

	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(s.ID), b, 0).Err(); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisKey(id))
	pipe.SRem(ctx, redisIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List implements Store.
func (r *RedisStore) List(ctx context.Context) ([]*SwapSession, error) {
	ids, err := r.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list session index: %w", err)
	}
	if len(ids) == 0 {
		return []*SwapSession{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget sessions: %w", err)
	}

	out := make([]*SwapSession, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var s SwapSession
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			continue
		}
		out = append(out, &s)
	}
	return out, nil
}

// ListByDirection implements Store.
func (r *RedisStore) ListByDirection(ctx context.Context, d Direction) ([]*SwapSession, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*SwapSession, 0)
	for _, s := range all {
		if s.Direction == d {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListActive implements Store.
func (r *RedisStore) ListActive(ctx context.Context) ([]*SwapSession, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*SwapSession, 0)
	for _, s := range all {
		if !s.Status.Terminal() {
			out = append(out, s)
		}
	}
	return out, nil
}
