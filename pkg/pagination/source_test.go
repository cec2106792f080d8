package pagination

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/Sternrassler/vktop/pkg/vkapi"
	"github.com/rs/zerolog"
)

func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.Disabled)
}

// day0 is the publication day of the newest synthetic post.
var day0 = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// dailyItems returns n posts, newest first, one per day going back from day0.
// Post i has id n-i and n-i likes.
func dailyItems(ownerID int64, n int) []vkapi.WallItem {
	items := make([]vkapi.WallItem, n)
	for i := range n {
		items[i] = vkapi.WallItem{
			ID:      int64(n - i),
			OwnerID: ownerID,
			Date:    day0.AddDate(0, 0, -i).Unix(),
			Text:    "post",
			Likes:   &vkapi.Counter{Count: n - i},
			Reposts: &vkapi.Counter{Count: i % 5},
		}
	}
	return items
}

type wallCall struct {
	offset int
	count  int
}

// fakeSource is an in-memory WallSource.
type fakeSource struct {
	mu    sync.Mutex
	items []vkapi.WallItem
	calls []wallCall

	// maxPerCall caps each batch below the requested count when > 0.
	maxPerCall int
	// failAt returns an error for requests starting at these offsets.
	failAt map[int]error
	// panicAt panics on a request starting at this offset when >= 0.
	panicAt int
	// block makes every request wait for ctx cancellation.
	block bool
}

func newFakeSource(items []vkapi.WallItem) *fakeSource {
	return &fakeSource{items: items, failAt: map[int]error{}, panicAt: -1}
}

func (f *fakeSource) GetWall(ctx context.Context, ownerID int64, offset, count int) (*vkapi.WallResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, wallCall{offset: offset, count: count})
	err := f.failAt[offset]
	panicking := f.panicAt >= 0 && f.panicAt == offset
	block := f.block
	f.mu.Unlock()

	if panicking {
		panic("decoder exploded")
	}
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}

	if f.maxPerCall > 0 {
		count = min(count, f.maxPerCall)
	}
	end := min(offset+count, len(f.items))
	var batch []vkapi.WallItem
	if offset < end {
		batch = append(batch, f.items[offset:end]...)
	}
	return &vkapi.WallResponse{Count: len(f.items), Items: batch}, nil
}

func (f *fakeSource) Calls() []wallCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wallCall, len(f.calls))
	copy(out, f.calls)
	return out
}
