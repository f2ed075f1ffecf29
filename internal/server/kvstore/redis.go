package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mkorchagin/onboardchat/internal/common"
)

// txRetries bounds the optimistic-locking loop in Update. Contended keys
// normally succeed within a retry or two; exhausting the budget is treated
// as a store failure so callers fail closed.
const txRetries = 64

// RedisStore implements Store over a Redis instance using WATCH-based
// optimistic transactions: the watched key is re-checked at EXEC time, and
// a concurrent write aborts the transaction, which is then retried.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) recordKey(ns Namespace, key string) string {
	return "records:" + string(ns) + ":" + key
}

func (s *RedisStore) Update(ctx context.Context, ns Namespace, key string, fn UpdateFn) error {
	k := s.recordKey(ns, key)

	var fnErr error
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}

		next, remove, err := fn(current)
		if err != nil {
			fnErr = err
			return err
		}

		if next == nil && !remove {
			// nothing to write, and nothing to race against
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if remove {
				pipe.Del(ctx, k)
			} else {
				pipe.Set(ctx, k, next, 0)
			}
			return nil
		})
		return err
	}

	for i := 0; i < txRetries; i++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if fnErr != nil {
			return fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: optimistic transaction retries exhausted", common.ErrStoreUnavailable)
}

func (s *RedisStore) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.recordKey(ns, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return value, nil
}

func (s *RedisStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := s.client.Del(ctx, s.recordKey(ns, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}
