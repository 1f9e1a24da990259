package ekyc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "pehchan/pkg/domain"
	"pehchan/pkg/platform/sentinel"
)

const (
	cooldownKeyPrefix = "ekyc:cooldown:"
	sessionKeyPrefix  = "ekyc:session:"
)

// RedisStore backs SessionStore with redis so cooldowns and sessions survive
// restarts and are shared across replicas. The cooldown reservation is a
// SET NX key whose TTL is the cooldown itself.
type RedisStore struct {
	rdb redis.Cmdable
}

var _ SessionStore = (*RedisStore)(nil)

func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) ReserveSend(ctx context.Context, verificationID id.VerificationID, cooldown time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, cooldownKeyPrefix+verificationID.String(), 1, cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("reserve otp send: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) ReleaseSend(ctx context.Context, verificationID id.VerificationID) error {
	if err := s.rdb.Del(ctx, cooldownKeyPrefix+verificationID.String()).Err(); err != nil {
		return fmt.Errorf("release otp send: %w", err)
	}
	return nil
}

func (s *RedisStore) SaveSession(ctx context.Context, sess Session, ttl time.Duration) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode otp session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKeyPrefix+sess.VerificationID.String(), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save otp session: %w", err)
	}
	return nil
}

func (s *RedisStore) GetSession(ctx context.Context, verificationID id.VerificationID) (Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKeyPrefix+verificationID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		// Redis cannot tell a never-created key from an expired one; the
		// caller treats both as "request a fresh otp".
		return Session{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load otp session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return Session{}, fmt.Errorf("decode otp session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) ClearSession(ctx context.Context, verificationID id.VerificationID) error {
	if err := s.rdb.Del(ctx, sessionKeyPrefix+verificationID.String()).Err(); err != nil {
		return fmt.Errorf("clear otp session: %w", err)
	}
	return nil
}
