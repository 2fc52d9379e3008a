package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "otp:"

// RedisStore implements Store on Redis. Records expire with their code.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed OTP store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(phone string) string {
	return redisKeyPrefix + phone
}

// FindByPhone fetches and decodes the OTP record for phone.
func (s *RedisStore) FindByPhone(ctx context.Context, phone string) (Record, error) {
	raw, err := s.client.Get(ctx, redisKey(phone)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, notFound()
	}
	if err != nil {
		return Record{}, fmt.Errorf("get otp: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode otp: %w", err)
	}
	return rec, nil
}

// Upsert overwrites the record; the key lives as long as the code is valid.
func (s *RedisStore) Upsert(ctx context.Context, record Record) error {
	record.ConsumedAt = nil
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode otp: %w", err)
	}
	ttl := record.ExpiresAt.Sub(record.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("otp for %s expires before it is created", record.Phone)
	}
	if err := s.client.Set(ctx, redisKey(record.Phone), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// Consume marks the record used inside a WATCH transaction so a concurrent
// upsert or second verification aborts it.
func (s *RedisStore) Consume(ctx context.Context, phone, codeHash string, at time.Time) error {
	key := redisKey(phone)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return alreadyUsed()
		}
		if err != nil {
			return err
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode otp: %w", err)
		}
		if rec.CodeHash != codeHash || rec.ConsumedAt != nil {
			return alreadyUsed()
		}
		consumedAt := at.UTC()
		rec.ConsumedAt = &consumedAt
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode otp: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, redis.KeepTTL)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return alreadyUsed()
	}
	return err
}
