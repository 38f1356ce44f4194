package rediskv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"ChatRelay/entity"
)

const (
	profilesKey       = "chatrelay:profiles"
	performancePrefix = "chatrelay:performance:"
	// Counters are only read for recent days.
	performanceTTL = 400 * 24 * time.Hour
)

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Store keeps display-name overrides and daily closure counters in Redis hashes.
type Store struct {
	client *redis.Client
}

func New(cfg Config) (*Store, error) {
	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis client connection test failed: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func performanceKey(day string) string {
	return performancePrefix + day
}

// DisplayName returns the persisted display name override, or "" if none.
func (s *Store) DisplayName(ctx context.Context, userID string) (string, error) {
	name, err := s.client.HGet(ctx, profilesKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get profile %s: %w", userID, err)
	}
	return name, nil
}

func (s *Store) SetDisplayName(ctx context.Context, userID, displayName string) error {
	if err := s.client.HSet(ctx, profilesKey, userID, displayName).Err(); err != nil {
		return fmt.Errorf("redis set profile %s: %w", userID, err)
	}
	return nil
}

// IncrementClosures adds one closure to the agent's counter for day and
// returns the new value.
func (s *Store) IncrementClosures(ctx context.Context, agent, day string) (int64, error) {
	key := performanceKey(day)

	pipe := s.client.TxPipeline()
	incr := pipe.HIncrBy(ctx, key, agent, 1)
	pipe.Expire(ctx, key, performanceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Performance lists the counters of day, highest first.
func (s *Store) Performance(ctx context.Context, day string) ([]entity.PerformanceCounter, error) {
	key := performanceKey(day)
	result, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis fetch %s: %w", key, err)
	}
	return parseCounters(day, result)
}

func parseCounters(day string, fields map[string]string) ([]entity.PerformanceCounter, error) {
	counters := make([]entity.PerformanceCounter, 0, len(fields))
	for agent, raw := range fields {
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s/%s: %w", day, agent, err)
		}
		counters = append(counters, entity.PerformanceCounter{Agent: agent, Day: day, Count: count})
	}
	sort.Slice(counters, func(i, j int) bool {
		if counters[i].Count != counters[j].Count {
			return counters[i].Count > counters[j].Count
		}
		return counters[i].Agent < counters[j].Agent
	})
	return counters, nil
}
