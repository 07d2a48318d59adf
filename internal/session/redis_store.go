package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "session:"
	phoneKeyPrefix   = "session:phone:"
)

// RedisStore persists sessions in Redis. Keys carry a TTL matching the
// inactivity threshold, refreshed on every write, so Redis evicts idle
// sessions on its own; DeleteExpired additionally clears stale phone index
// entries left behind by evictions.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if rdb == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func phoneKey(phone string) string {
	return phoneKeyPrefix + NormalizePhone(phone)
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	return r.write(ctx, s)
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) GetByPhone(ctx context.Context, phone string) (*Session, error) {
	id, err := r.rdb.Get(ctx, phoneKey(phone)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: load phone index: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *RedisStore) Update(ctx context.Context, s *Session) error {
	// Refuse to resurrect a session the sweeper (or a completed turn) already
	// deleted; the caller restarts from a fresh session instead.
	exists, err := r.rdb.Exists(ctx, sessionKey(s.ID)).Result()
	if err != nil {
		return fmt.Errorf("session: check %s: %w", s.ID, err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	return r.write(ctx, s)
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	s, err := r.Get(ctx, id)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, sessionKey(id))
	if s.Phone != "" {
		pipe.Del(ctx, phoneKey(s.Phone))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) DeleteExpired(ctx context.Context, ttl time.Duration) (int, error) {
	now := time.Now().UTC()
	removed := 0

	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, phoneKeyPrefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("session: scan: %w", err)
		}
		for _, key := range keys {
			id, err := r.rdb.Get(ctx, key).Result()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return removed, fmt.Errorf("session: read index %s: %w", key, err)
			}

			s, err := r.Get(ctx, id)
			if err == ErrNotFound {
				// Session evicted by TTL; drop the dangling index entry.
				r.rdb.Del(ctx, key)
				continue
			}
			if err != nil {
				return removed, err
			}
			if s.Expired(now, ttl) {
				if err := r.Delete(ctx, id); err != nil {
					return removed, err
				}
				removed++
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

func (r *RedisStore) write(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", s.ID, err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, sessionKey(s.ID), data, r.ttl)
	if s.Phone != "" {
		pipe.Set(ctx, phoneKey(s.Phone), s.ID, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: persist %s: %w", s.ID, err)
	}
	return nil
}
