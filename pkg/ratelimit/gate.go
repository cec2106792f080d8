package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for cooldown tracking.
var (
	cooldownsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vk_rate_limit_cooldowns_total",
		Help: "Total number of rate-limit responses that started or extended a cooldown",
	})

	waitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vk_rate_limit_waits_total",
		Help: "Total number of requests delayed by an active cooldown",
	})

	cooldownSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vk_rate_limit_cooldown_seconds",
		Help:    "Time requests spent waiting for a cooldown to end",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})
)

// Gate pauses requests while a rate-limit cooldown is active.
type Gate interface {
	// Wait blocks until no cooldown is active or ctx is done.
	Wait(ctx context.Context) error

	// ReportRateLimited starts or extends the cooldown.
	ReportRateLimited(ctx context.Context) error
}

// LocalGate is an in-process Gate shared by the workers of one fetch.
type LocalGate struct {
	mu       sync.Mutex
	state    CooldownState
	cooldown time.Duration
	logger   zerolog.Logger
}

// NewLocalGate creates an in-process gate. A non-positive cooldown uses DefaultCooldown.
func NewLocalGate(cooldown time.Duration, logger zerolog.Logger) *LocalGate {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &LocalGate{
		cooldown: cooldown,
		logger:   logger,
	}
}

// State returns a copy of the current cooldown state.
func (g *LocalGate) State() CooldownState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// ReportRateLimited implements Gate.
func (g *LocalGate) ReportRateLimited(_ context.Context) error {
	g.mu.Lock()
	g.state.extend(time.Now(), g.cooldown)
	state := g.state
	g.mu.Unlock()

	cooldownsTotal.Inc()
	g.logger.Warn().
		Int("hits", state.Hits).
		Time("until", state.Until).
		Msg("Rate limited - cooldown started")
	return nil
}

// Wait implements Gate.
func (g *LocalGate) Wait(ctx context.Context) error {
	state := g.State()
	return sleepUntil(ctx, &state, g.logger)
}

// sleepUntil waits out an active cooldown, honouring ctx cancellation.
func sleepUntil(ctx context.Context, state *CooldownState, logger zerolog.Logger) error {
	wait := state.TimeUntilReset()
	if wait <= 0 {
		return nil
	}

	waitsTotal.Inc()
	logger.Debug().Dur("wait", wait).Msg("Waiting for rate-limit cooldown")

	start := time.Now()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		cooldownSeconds.Observe(time.Since(start).Seconds())
		return nil
	}
}
