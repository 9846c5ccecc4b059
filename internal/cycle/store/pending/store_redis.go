package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"educaid/internal/cycle/models"
	"educaid/pkg/platform/sentinel"
	"educaid/pkg/requestcontext"
)

const pendingKeyPrefix = "cycle:pending:"

// RedisStore is a Redis-backed pending review store. Expiry rides on the key
// TTL, so multiple instances share review state without a sweeper.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed pending review store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, review *models.PendingReview) error {
	payload, err := json.Marshal(review)
	if err != nil {
		return fmt.Errorf("marshal pending review: %w", err)
	}
	ttl := review.ExpiresAt.Sub(requestcontext.Now(ctx))
	if ttl <= 0 {
		return sentinel.ErrExpired
	}
	key := pendingKeyPrefix + review.Key()
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store pending review: %w", err)
	}
	return nil
}

func (s *RedisStore) Find(ctx context.Context, academicYear string, semester models.Semester) (*models.PendingReview, error) {
	key := pendingKeyPrefix + models.PeriodKey(academicYear, semester)
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load pending review: %w", err)
	}
	var review models.PendingReview
	if err := json.Unmarshal(raw, &review); err != nil {
		return nil, fmt.Errorf("decode pending review: %w", err)
	}
	if review.Expired(requestcontext.Now(ctx)) {
		return nil, sentinel.ErrExpired
	}
	return &review, nil
}

func (s *RedisStore) Delete(ctx context.Context, academicYear string, semester models.Semester) error {
	key := pendingKeyPrefix + models.PeriodKey(academicYear, semester)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete pending review: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op for Redis: key TTLs expire entries server-side.
func (s *RedisStore) PurgeExpired(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
