package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/escalopa/quran-navigator/internal/domain"
)

const (
	fieldLanguage   = "language"
	fieldReciter    = "reciter"
	fieldRepeat     = "repeat"
	fieldSpeed      = "speed"
	fieldAutoScroll = "auto_scroll"
)

// GetPreferences returns the stored preferences for a user
func (s *Store) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	vals, err := s.client.HGetAll(ctx, prefsKeyPrefix+userID).Result()
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	if len(vals) == 0 {
		return domain.Preferences{}, domain.ErrNotFound
	}

	p, err := decodePreferences(vals)
	if err != nil {
		return domain.Preferences{}, fmt.Errorf("decode preferences of %s: %w", userID, err)
	}
	return p, nil
}

// SetPreferences stores preferences for a user and refreshes their TTL
func (s *Store) SetPreferences(ctx context.Context, userID string, p domain.Preferences) error {
	key := prefsKeyPrefix + userID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]any{
			fieldLanguage:   string(p.Language),
			fieldReciter:    p.Reciter,
			fieldRepeat:     p.Repeat,
			fieldSpeed:      strconv.FormatFloat(p.Speed, 'f', -1, 64),
			fieldAutoScroll: strconv.FormatBool(p.AutoScroll),
		})
		pipe.Expire(ctx, key, s.prefsTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}

func decodePreferences(vals map[string]string) (domain.Preferences, error) {
	var (
		p    domain.Preferences
		errs []error
		err  error
	)
	p.Language = domain.Language(vals[fieldLanguage])
	if p.Reciter, err = strconv.Atoi(vals[fieldReciter]); err != nil {
		errs = append(errs, fmt.Errorf("reciter: %w", err))
	}
	if p.Repeat, err = strconv.Atoi(vals[fieldRepeat]); err != nil {
		errs = append(errs, fmt.Errorf("repeat: %w", err))
	}
	if p.Speed, err = strconv.ParseFloat(vals[fieldSpeed], 64); err != nil {
		errs = append(errs, fmt.Errorf("speed: %w", err))
	}
	if p.AutoScroll, err = strconv.ParseBool(vals[fieldAutoScroll]); err != nil {
		errs = append(errs, fmt.Errorf("auto scroll: %w", err))
	}
	return p, errors.Join(errs...)
}
