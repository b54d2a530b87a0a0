package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	prefsKeyPrefix  = "nav:prefs:"
	searchKeyPrefix = "nav:search:"
	defaultTTL      = 30 * 24 * time.Hour
)

// Store keeps listener preferences and cached search results in Redis.
type Store struct {
	client   *redis.Client
	prefsTTL time.Duration
}

// Option configures a [Store].
type Option func(*Store)

// WithPreferencesTTL sets how long unused preferences are kept.
func WithPreferencesTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.prefsTTL = ttl
		}
	}
}

func NewStore(uri string, opts ...Option) (*Store, error) {
	redisOpts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse redis URI: %w", err)
	}

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStoreWithClient(client, opts...), nil
}

// NewStoreWithClient wraps an existing client.
func NewStoreWithClient(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, prefsTTL: defaultTTL}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error {
	return s.client.Close()
}
