package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Tracker is a Gate whose state lives in Redis, so every vktop process using
// the same token observes the same cooldown.
type Tracker struct {
	redis    *redis.Client
	cooldown time.Duration
	logger   zerolog.Logger
}

// NewTracker creates a new Redis-backed cooldown tracker.
func NewTracker(redisClient *redis.Client, cooldown time.Duration, logger zerolog.Logger) *Tracker {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Tracker{
		redis:    redisClient,
		cooldown: cooldown,
		logger:   logger,
	}
}

// GetState retrieves the current cooldown state from Redis.
// Returns an inactive state if nothing is stored.
func (t *Tracker) GetState(ctx context.Context) (*CooldownState, error) {
	untilMillis, err := t.redis.Get(ctx, RedisKeyCooldownUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get cooldown until: %w", err)
	}

	hits, err := t.redis.Get(ctx, RedisKeyHits).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get hits: %w", err)
	}

	lastUpdateStr, err := t.redis.Get(ctx, RedisKeyLastUpdate).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get last update: %w", err)
	}

	state := &CooldownState{Hits: hits}
	if untilMillis > 0 {
		state.Until = time.UnixMilli(untilMillis)
	}
	if lastUpdateStr != "" {
		if err := json.Unmarshal([]byte(lastUpdateStr), &state.LastUpdate); err != nil {
			return nil, fmt.Errorf("parse last update: %w", err)
		}
	}

	return state, nil
}

// ReportRateLimited implements Gate. The read-modify-write is not atomic
// across processes; a lost update only shortens one cooldown.
func (t *Tracker) ReportRateLimited(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		return fmt.Errorf("get cooldown state: %w", err)
	}

	now := time.Now()
	state.extend(now, t.cooldown)

	lastUpdateJSON, err := json.Marshal(state.LastUpdate)
	if err != nil {
		return fmt.Errorf("marshal last update: %w", err)
	}

	// Keys expire with the cooldown so a crashed process never blocks others.
	ttl := time.Until(state.Until) + t.cooldown

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyCooldownUntil, state.Until.UnixMilli(), ttl)
	pipe.Set(ctx, RedisKeyHits, state.Hits, ttl)
	pipe.Set(ctx, RedisKeyLastUpdate, lastUpdateJSON, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store cooldown state in redis: %w", err)
	}

	cooldownsTotal.Inc()
	t.logger.Warn().
		Int("hits", state.Hits).
		Time("until", state.Until).
		Msg("Rate limited - shared cooldown started")

	return nil
}

// Wait implements Gate. Redis failures are logged and do not block requests.
func (t *Tracker) Wait(ctx context.Context) error {
	state, err := t.GetState(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Cooldown state unavailable - proceeding")
		return nil
	}
	return sleepUntil(ctx, state, t.logger)
}
