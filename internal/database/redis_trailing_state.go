// Redis-backed trailing stop state shared between engine replicas. When
// Redis is unavailable the store falls back to an in-memory map so exit
// analysis keeps working without interruption.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// TrailingKeyPrefix is the prefix for per-position trailing state keys.
	// Format: engine:trailing:{positionID}
	TrailingKeyPrefix = "engine:trailing"

	// TrailingStateTTL bounds how long stale trailing state survives a
	// crashed position.
	TrailingStateTTL = 7 * 24 * time.Hour
)

// TrailingState is the persisted trailing stop for one position
type TrailingState struct {
	PositionID uuid.UUID `json:"position_id"`
	StopLevel  float64   `json:"stop_level"`
	Distance   float64   `json:"distance"`
	SavedAt    time.Time `json:"saved_at"`
}

// RedisTrailingStateRepository stores trailing stop levels in Redis with an
// in-memory fallback cache.
type RedisTrailingStateRepository struct {
	client         *redis.Client
	logger         zerolog.Logger
	cacheMu        sync.RWMutex
	inMemoryCache  map[uuid.UUID]*TrailingState
	redisAvailable atomic.Bool
}

// NewRedisTrailingStateRepository creates a trailing state repository. A
// nil client means memory-only mode.
func NewRedisTrailingStateRepository(client *redis.Client, logger zerolog.Logger) *RedisTrailingStateRepository {
	repo := &RedisTrailingStateRepository{
		client:        client,
		logger:        logger,
		inMemoryCache: make(map[uuid.UUID]*TrailingState),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("redis unavailable at startup, using in-memory trailing cache")
			repo.redisAvailable.Store(false)
		} else {
			logger.Info().Msg("redis connected for trailing state")
			repo.redisAvailable.Store(true)
		}
	} else {
		logger.Info().Msg("no redis client, trailing state is in-memory only")
		repo.redisAvailable.Store(false)
	}

	return repo
}

func (r *RedisTrailingStateRepository) trailingKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s", TrailingKeyPrefix, id)
}

// SaveTrailingState stores the trailing stop level for a position
func (r *RedisTrailingStateRepository) SaveTrailingState(ctx context.Context, state *TrailingState) error {
	if state == nil {
		return fmt.Errorf("cannot save nil trailing state")
	}
	state.SavedAt = time.Now()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal trailing state: %w", err)
	}

	r.cacheMu.Lock()
	r.inMemoryCache[state.PositionID] = state
	r.cacheMu.Unlock()

	if r.client != nil && r.redisAvailable.Load() {
		if err := r.client.Set(ctx, r.trailingKey(state.PositionID), data, TrailingStateTTL).Err(); err != nil {
			r.logger.Warn().Err(err).Msg("redis write failed, trailing state kept in memory")
			r.redisAvailable.Store(false)
			return nil
		}
	}

	return nil
}

// LoadTrailingState returns the trailing state for a position, or nil when
// none exists.
func (r *RedisTrailingStateRepository) LoadTrailingState(ctx context.Context, id uuid.UUID) (*TrailingState, error) {
	if r.client != nil && r.redisAvailable.Load() {
		data, err := r.client.Get(ctx, r.trailingKey(id)).Result()
		if err != nil {
			if err == redis.Nil {
				return r.getFromCache(id), nil
			}
			r.logger.Warn().Err(err).Msg("redis read failed, using in-memory trailing cache")
			r.redisAvailable.Store(false)
			return r.getFromCache(id), nil
		}

		r.redisAvailable.Store(true)

		var state TrailingState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("unmarshal trailing state: %w", err)
		}

		r.cacheMu.Lock()
		r.inMemoryCache[id] = &state
		r.cacheMu.Unlock()

		return &state, nil
	}

	return r.getFromCache(id), nil
}

// DeleteTrailingState clears the state for a closed position
func (r *RedisTrailingStateRepository) DeleteTrailingState(ctx context.Context, id uuid.UUID) error {
	r.cacheMu.Lock()
	delete(r.inMemoryCache, id)
	r.cacheMu.Unlock()

	if r.client != nil && r.redisAvailable.Load() {
		if err := r.client.Del(ctx, r.trailingKey(id)).Err(); err != nil {
			r.logger.Warn().Err(err).Msg("redis delete failed for trailing state")
			r.redisAvailable.Store(false)
		}
	}
	return nil
}

func (r *RedisTrailingStateRepository) getFromCache(id uuid.UUID) *TrailingState {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return r.inMemoryCache[id]
}
