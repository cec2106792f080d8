//go:build integration

package pagination

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/vktop/internal/testutil"
	"github.com/Sternrassler/vktop/pkg/ratelimit"
	"github.com/Sternrassler/vktop/pkg/vkapi"
	"github.com/Sternrassler/vktop/pkg/wall"
)

func newRedisBackedClient(t *testing.T, mock *testutil.MockVK, tracker *ratelimit.Tracker) *vkapi.Client {
	t.Helper()

	cfg := vkapi.DefaultConfig("test-token")
	cfg.BaseURL = mock.BaseURL()
	cfg.RequestsPerSecond = 0
	cfg.Gate = tracker
	cfg.Retry = vkapi.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    5 * time.Millisecond,
		MaxBackoff:        20 * time.Millisecond,
		BackoffMultiplier: 2,
	}

	client, err := vkapi.New(cfg, quietLogger())
	if err != nil {
		t.Fatalf("vkapi.New() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// TestFullFetchFlow runs probe, partition, parallel fetch and rank against
// the mock API with the cooldown shared through Redis.
func TestFullFetchFlow(t *testing.T) {
	redisClient, cleanup := testutil.StartRedis(t)
	defer cleanup()

	mock := testutil.NewMockVK()
	defer mock.Close()
	mock.SetWall(-1, testutil.DescendingPosts(-1, 250, day0, time.Hour))
	mock.FailWallAt(64, vkapi.CodeTooManyRequests, "Too many requests per second", 1)

	tracker := ratelimit.NewTracker(redisClient, 50*time.Millisecond, quietLogger())
	client := newRedisBackedClient(t, mock, tracker)

	cfg := DefaultConfig()
	cfg.MaxConcurrency = 4
	cfg.Location = time.UTC
	bf := NewBatchFetcher(client, cfg, quietLogger())

	posts, err := bf.FetchAll(context.Background(), -1, wall.DateRange{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(posts) != 250 {
		t.Fatalf("FetchAll() returned %d posts, want 250", len(posts))
	}

	top := wall.RankTop(posts, wall.MetricLikes, 3)
	for i, wantID := range []int64{250, 249, 248} {
		if top[i].ID != wantID {
			t.Errorf("top[%d].ID = %d, want %d", i, top[i].ID, wantID)
		}
	}

	// The rate-limit hit is visible to every process sharing the instance.
	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Hits != 1 {
		t.Errorf("shared hits = %d, want 1", state.Hits)
	}

	// Probe, four segments and one retry.
	if got := len(mock.WallRequests()); got != 6 {
		t.Errorf("wall.get requests = %d, want 6", got)
	}
}

// TestSharedCooldownDelaysFetch seeds a cooldown as another process would
// and checks that the fetch waits for it before touching the API.
func TestSharedCooldownDelaysFetch(t *testing.T) {
	redisClient, cleanup := testutil.StartRedis(t)
	defer cleanup()

	mock := testutil.NewMockVK()
	defer mock.Close()
	mock.SetWall(-1, testutil.DescendingPosts(-1, 30, day0, time.Hour))

	ctx := context.Background()
	until := time.Now().Add(300 * time.Millisecond)
	redisClient.Set(ctx, ratelimit.RedisKeyCooldownUntil, until.UnixMilli(), time.Minute)
	redisClient.Set(ctx, ratelimit.RedisKeyHits, 1, time.Minute)

	tracker := ratelimit.NewTracker(redisClient, time.Second, quietLogger())
	client := newRedisBackedClient(t, mock, tracker)
	bf := NewBatchFetcher(client, Config{MaxConcurrency: 2, Location: time.UTC}, quietLogger())

	start := time.Now()
	posts, err := bf.FetchAll(ctx, -1, wall.DateRange{})
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(posts) != 30 {
		t.Errorf("FetchAll() returned %d posts, want 30", len(posts))
	}
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("fetch finished after %v, expected it to wait for the shared cooldown", elapsed)
	}
}

// TestSharedCooldownHonorsCancellation checks that a long cooldown does not
// outlive the caller's context.
func TestSharedCooldownHonorsCancellation(t *testing.T) {
	redisClient, cleanup := testutil.StartRedis(t)
	defer cleanup()

	mock := testutil.NewMockVK()
	defer mock.Close()
	mock.SetWall(-1, testutil.DescendingPosts(-1, 10, day0, time.Hour))

	bg := context.Background()
	redisClient.Set(bg, ratelimit.RedisKeyCooldownUntil, time.Now().Add(time.Minute).UnixMilli(), time.Minute)

	tracker := ratelimit.NewTracker(redisClient, time.Second, quietLogger())
	client := newRedisBackedClient(t, mock, tracker)
	bf := NewBatchFetcher(client, Config{MaxConcurrency: 2, Location: time.UTC}, quietLogger())

	ctx, cancel := context.WithTimeout(bg, 200*time.Millisecond)
	defer cancel()

	if _, err := bf.FetchAll(ctx, -1, wall.DateRange{}); err == nil {
		t.Fatal("expected FetchAll to fail once the context expired")
	}
	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("requests = %d, want 0 while the cooldown is active", n)
	}
}
