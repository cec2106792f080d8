package pagination

import (
	"context"
	"time"

	"github.com/Sternrassler/vktop/pkg/vkapi"
	"github.com/Sternrassler/vktop/pkg/wall"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	postsScannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vktop_posts_scanned_total",
		Help: "Total number of post records decoded from wall.get batches",
	})

	earlyAbortsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vktop_early_aborts_total",
		Help: "Total number of segments stopped early by the date window",
	})
)

// SegmentFetcher pages sequentially through one segment of a wall.
type SegmentFetcher struct {
	source    WallSource
	batchSize int
	location  *time.Location
	logger    zerolog.Logger
}

// NewSegmentFetcher creates a segment fetcher. BatchSize and Location of cfg
// are used; zero values fall back to DefaultConfig.
func NewSegmentFetcher(source WallSource, cfg Config, logger zerolog.Logger) *SegmentFetcher {
	cfg = cfg.withDefaults()
	return &SegmentFetcher{
		source:    source,
		batchSize: cfg.BatchSize,
		location:  cfg.Location,
		logger:    logger,
	}
}

// Fetch returns the posts of seg that fall inside dateRange, in source order.
//
// Posts arrive newest first, so the first non-pinned post older than
// dateRange.From ends the segment: everything after it is older still. An
// old pinned post is only skipped.
// Posts newer than dateRange.To are skipped. The offset advances by the
// number of records actually returned, and an empty batch ends the segment.
func (sf *SegmentFetcher) Fetch(ctx context.Context, ownerID int64, seg Segment, dateRange wall.DateRange) ([]wall.Post, error) {
	posts := make([]wall.Post, 0)
	offset := seg.Offset
	remaining := seg.Count
	requests := 0

	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := sf.source.GetWall(ctx, ownerID, offset, min(sf.batchSize, remaining))
		requests++
		if err != nil {
			return nil, err
		}

		items := resp.Items
		if len(items) == 0 {
			sf.logger.Debug().
				Stringer("segment", seg).
				Int("offset", offset).
				Msg("Source returned an empty batch")
			break
		}
		if len(items) > remaining {
			items = items[:remaining]
		}

		for _, item := range items {
			post, err := DecodePost(ownerID, item, sf.location)
			if err != nil {
				return nil, err
			}
			postsScannedTotal.Inc()

			if dateRange.Before(post.Date) {
				if post.Pinned {
					continue
				}
				earlyAbortsTotal.Inc()
				sf.logger.Debug().
					Stringer("segment", seg).
					Int("offset", offset).
					Int("requests", requests).
					Int("posts", len(posts)).
					Msg("Reached posts older than the date window")
				return posts, nil
			}
			if dateRange.After(post.Date) {
				continue
			}
			posts = append(posts, post)
		}

		offset += len(items)
		remaining -= len(items)
	}

	sf.logger.Debug().
		Stringer("segment", seg).
		Int("requests", requests).
		Int("posts", len(posts)).
		Msg("Segment complete")

	return posts, nil
}

// DecodePost normalizes a raw wall.get record. Records with a missing id or
// negative counters are rejected as malformed.
func DecodePost(ownerID int64, item vkapi.WallItem, loc *time.Location) (wall.Post, error) {
	if item.ID <= 0 {
		return wall.Post{}, vkapi.Malformed(vkapi.MethodWallGet, "post without id")
	}
	if item.Date < 0 {
		return wall.Post{}, vkapi.Malformed(vkapi.MethodWallGet, "negative post date")
	}

	var likes, reposts int
	if item.Likes != nil {
		likes = item.Likes.Count
	}
	if item.Reposts != nil {
		reposts = item.Reposts.Count
	}
	if likes < 0 || reposts < 0 {
		return wall.Post{}, vkapi.Malformed(vkapi.MethodWallGet, "negative counter")
	}

	owner := item.OwnerID
	if owner == 0 {
		owner = ownerID
	}
	if loc == nil {
		loc = time.Local
	}

	return wall.Post{
		ID:      item.ID,
		OwnerID: owner,
		Text:    item.Text,
		Likes:   likes,
		Reposts: reposts,
		Date:    time.Unix(item.Date, 0).In(loc),
		Pinned:  item.IsPinned == 1,
	}, nil
}
