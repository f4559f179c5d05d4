package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"qrpay-order-api/internal/model"
)

const orderKeyPrefix = "pay:order:"

// RedisStore 基于 Redis 的订单存储
// CompareAndSwap 用 WATCH 乐观事务实现：并发写方提交时 key 被改动则事务失败
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func orderKey(mOrderID string) string { return orderKeyPrefix + mOrderID }

func (s *RedisStore) Create(ctx context.Context, o *model.Order) error {
	cp := o.Clone()
	now := time.Now()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal order failed: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, orderKey(o.MOrderID), b, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, mOrderID string) (*model.Order, error) {
	data, err := s.rdb.Get(ctx, orderKey(mOrderID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	var o model.Order
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return &o, nil
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, mOrderID string, expect model.TradeStatus, mutate func(*model.Order)) (*model.Order, error) {
	key := orderKey(mOrderID)
	var out *model.Order

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get failed: %w", err)
		}
		var o model.Order
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			return fmt.Errorf("unmarshal order failed: %w", err)
		}
		if o.Status != expect {
			return ErrConflict
		}
		cp := o.Clone()
		mutate(cp)
		cp.MOrderID = o.MOrderID
		cp.CreatedAt = o.CreatedAt
		cp.UpdatedAt = time.Now()

		b, err := json.Marshal(cp)
		if err != nil {
			return fmt.Errorf("marshal order failed: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, b, 0)
			return nil
		})
		if err != nil {
			return err
		}
		out = cp
		return nil
	}, key)

	// 事务期间 key 被并发改写，视作一次 CAS 失败
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
