package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"docflow/internal/models"
)

const keyPrefix = "docflow:session:"

// RedisStore keeps each session as one JSON string, refreshing its TTL on save.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Connect dials redis and verifies it answers PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis connection failed (%s): %w", addr, err)
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	log.Info().Str("addr", addr).Int("db", db).Msg("Connected to redis")
	return client, nil
}

func Key(id string) string { return keyPrefix + id }

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	sess := New(id)
	val, err := s.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sess, nil
	}
	if err != nil {
		return nil, models.SessionError("load", err)
	}
	if err := sess.UnmarshalJSON(val); err != nil {
		return nil, models.SessionError("load", err)
	}
	return sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := sess.MarshalJSON()
	if err != nil {
		return models.SessionError("save", err)
	}
	if err := s.client.Set(ctx, Key(sess.ID()), data, s.ttl).Err(); err != nil {
		return models.SessionError("save", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, Key(id)).Err(); err != nil {
		return models.SessionError("delete", err)
	}
	return nil
}
