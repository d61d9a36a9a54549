/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis-backed store.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// redisStore implements Store on a Redis connection.
type redisStore struct {
	client *redis.Client
}

// NewRedis connects to Redis and verifies the connection before returning.
// A store that exists is a store that answered a ping at least once.
func NewRedis(ctx context.Context, opts RedisOptions) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	})

	s := &redisStore{client: client}
	if err := s.Healthy(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}
	return s, nil
}

func (s *redisStore) Healthy(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *redisStore) ClaimMember(ctx context.Context, key, member string, ttl time.Duration) (bool, error) {
	// SADD is the atomic claim: it reports 1 only for the caller that
	// actually added the member. The TTL refresh rides the same pipeline.
	pipe := s.client.TxPipeline()
	added := pipe.SAdd(ctx, key, member)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("%w: claiming %s in %s: %v", ErrUnavailable, member, key, err)
	}
	return added.Val() == 1, nil
}

func (s *redisStore) IsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("%w: reading %s: %v", ErrUnavailable, key, err)
	}
	return ok, nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: deleting %d keys: %v", ErrUnavailable, len(keys), err)
	}
	return n, nil
}

func (s *redisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", ErrUnavailable, pattern, err)
	}
	return keys, nil
}

func (s *redisStore) PutIndexed(ctx context.Context, indexKey, key string, score float64, value []byte, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: score, Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

func (s *redisStore) IndexRange(ctx context.Context, indexKey string, min, max float64) ([]string, error) {
	keys, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: ranging %s: %v", ErrUnavailable, indexKey, err)
	}
	return keys, nil
}

func (s *redisStore) GetMulti(ctx context.Context, keys []string) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %d keys: %v", ErrUnavailable, len(keys), err)
	}
	values := make([][]byte, len(raw))
	for i, v := range raw {
		if str, ok := v.(string); ok {
			values[i] = []byte(str)
		}
	}
	return values, nil
}

func (s *redisStore) PruneIndex(ctx context.Context, indexKey string, min, max float64) (int64, error) {
	stale, err := s.IndexRange(ctx, indexKey, min, max)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, stale...)
	pipe.ZRemRangeByScore(ctx, indexKey, formatScore(min), formatScore(max))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: pruning %s: %v", ErrUnavailable, indexKey, err)
	}
	return int64(len(stale)), nil
}

func (s *redisStore) IndexCard(ctx context.Context, indexKey string) (int64, error) {
	n, err := s.client.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: counting %s: %v", ErrUnavailable, indexKey, err)
	}
	return n, nil
}

func formatScore(score float64) string {
	return fmt.Sprintf("%f", score)
}
