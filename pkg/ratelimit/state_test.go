package ratelimit

import (
	"testing"
	"time"
)

func TestCooldownState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *CooldownState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &CooldownState{LastUpdate: time.Now()},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &CooldownState{LastUpdate: time.Now().Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    &CooldownState{LastUpdate: time.Now().Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.state.IsStale(tt.maxAge); result != tt.expected {
				t.Errorf("IsStale() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestCooldownState_Active(t *testing.T) {
	tests := []struct {
		name   string
		until  time.Time
		active bool
	}{
		{"zero state", time.Time{}, false},
		{"expired", time.Now().Add(-time.Second), false},
		{"in progress", time.Now().Add(time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &CooldownState{Until: tt.until}
			if got := s.Active(); got != tt.active {
				t.Errorf("Active() = %v, want %v", got, tt.active)
			}
			if !tt.active && s.TimeUntilReset() != 0 {
				t.Errorf("TimeUntilReset() = %v, want 0", s.TimeUntilReset())
			}
		})
	}
}

func TestCooldownState_Extend(t *testing.T) {
	now := time.Now()
	s := &CooldownState{}

	s.extend(now, time.Second)
	if s.Hits != 1 {
		t.Errorf("Hits after first extend = %d, want 1", s.Hits)
	}
	if !s.Until.Equal(now.Add(time.Second)) {
		t.Errorf("Until = %v, want %v", s.Until, now.Add(time.Second))
	}

	// Second hit inside the active cooldown grows it.
	s.extend(now.Add(100*time.Millisecond), time.Second)
	if s.Hits != 2 {
		t.Errorf("Hits after second extend = %d, want 2", s.Hits)
	}
	if want := now.Add(100*time.Millisecond + 2*time.Second); !s.Until.Equal(want) {
		t.Errorf("Until = %v, want %v", s.Until, want)
	}

	// A hit after the cooldown expired starts over.
	later := s.Until.Add(time.Minute)
	s.extend(later, time.Second)
	if s.Hits != 1 {
		t.Errorf("Hits after expiry = %d, want 1", s.Hits)
	}
}
