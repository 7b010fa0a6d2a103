package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chronostamp/internal/auth/models"
	"chronostamp/pkg/platform/sentinel"
)

const challengeKeyPrefix = "chronostamp:challenge:"

// RedisStore shares pending challenges across instances. Expiry is delegated
// to the key TTL.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Save(ctx context.Context, c *models.Challenge) error {
	ttl := c.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	return s.client.Set(ctx, challengeKeyPrefix+c.ID.String(), payload, ttl).Err()
}

// Take uses GETDEL so concurrent exchanges of one challenge see it at most once.
func (s *RedisStore) Take(ctx context.Context, id uuid.UUID) (*models.Challenge, error) {
	raw, err := s.client.GetDel(ctx, challengeKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(sentinel.ErrUnavailable, err)
	}
	var c models.Challenge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	if c.Expired(s.now()) {
		return nil, sentinel.ErrNotFound
	}
	return &c, nil
}
