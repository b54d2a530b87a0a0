package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/escalopa/quran-navigator/internal/domain"
)

// GetResults returns cached search results
func (s *Store) GetResults(ctx context.Context, key string) ([]domain.RankedResult, error) {
	val, err := s.client.Get(ctx, searchKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get results: %w", err)
	}

	var results []domain.RankedResult
	if err := json.Unmarshal(val, &results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return results, nil
}

// SetResults caches search results for ttl
func (s *Store) SetResults(ctx context.Context, key string, results []domain.RankedResult, ttl time.Duration) error {
	val, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	if err := s.client.Set(ctx, searchKeyPrefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("set results: %w", err)
	}
	return nil
}
