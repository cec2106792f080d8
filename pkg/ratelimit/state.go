// Package ratelimit coordinates back-off after VK API rate-limit responses.
// A cooldown started by one worker makes every other worker sharing the same
// Gate wait before its next request. The Redis-backed Tracker extends this to
// several vktop processes using the same access token.
package ratelimit

import (
	"time"
)

// Redis keys for cooldown state storage.
const (
	RedisKeyCooldownUntil = "vktop:rate_limit:cooldown_until"
	RedisKeyHits          = "vktop:rate_limit:hits"
	RedisKeyLastUpdate    = "vktop:rate_limit:last_update"
)

// DefaultCooldown is how long requests pause after a rate-limit response.
// VK allows 3 requests per second per token, so one second clears the window.
const DefaultCooldown = 1 * time.Second

// CooldownState is the current rate-limit cooldown shared by all workers.
type CooldownState struct {
	// Until is the moment requests may resume. Zero when no cooldown was ever started.
	Until time.Time `json:"until"`

	// Hits counts rate-limit responses seen within the current window.
	Hits int `json:"hits"`

	// LastUpdate is when the state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// Active reports whether requests must still wait.
func (s *CooldownState) Active() bool {
	return time.Now().Before(s.Until)
}

// TimeUntilReset returns the remaining cooldown, or 0 if it already passed.
func (s *CooldownState) TimeUntilReset() time.Duration {
	d := time.Until(s.Until)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if the state is older than maxAge.
func (s *CooldownState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// extend starts or prolongs the cooldown. Repeated hits inside an active
// cooldown grow it linearly so a persistently throttled token slows down.
func (s *CooldownState) extend(now time.Time, cooldown time.Duration) {
	if now.Before(s.Until) {
		s.Hits++
	} else {
		s.Hits = 1
	}
	until := now.Add(time.Duration(s.Hits) * cooldown)
	if until.After(s.Until) {
		s.Until = until
	}
	s.LastUpdate = now
}
