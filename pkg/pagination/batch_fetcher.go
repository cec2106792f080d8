package pagination

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/Sternrassler/vktop/pkg/vkapi"
	"github.com/Sternrassler/vktop/pkg/wall"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	segmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vktop_segments_total",
		Help: "Total number of fetched segments by result",
	}, []string{"result"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vktop_fetch_duration_seconds",
		Help:    "Duration of a full wall fetch in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// ErrSegmentPanic marks a segment task that panicked.
var ErrSegmentPanic = errors.New("segment task panicked")

// SegmentError reports the failure of one segment task.
type SegmentError struct {
	Segment Segment
	Err     error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %s: %v", e.Segment, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// Config holds batch fetcher configuration
type Config struct {
	// MaxConcurrency is the number of segments fetched in parallel. The wall
	// is split into at most this many segments.
	MaxConcurrency int

	// BatchSize is the count requested per wall.get call (1..100).
	BatchSize int

	// Location is the time zone post dates are converted to.
	Location *time.Location
}

// DefaultConfig returns the default configuration: one worker per CPU and
// the largest batch VK accepts.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: runtime.NumCPU(),
		BatchSize:      vkapi.MaxBatchSize,
		Location:       time.Local,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = def.MaxConcurrency
	}
	if c.BatchSize <= 0 || c.BatchSize > vkapi.MaxBatchSize {
		c.BatchSize = def.BatchSize
	}
	if c.Location == nil {
		c.Location = def.Location
	}
	return c
}

// BatchFetcher fetches a whole wall by splitting it into segments that are
// paged through concurrently.
type BatchFetcher struct {
	source   WallSource
	segments *SegmentFetcher
	config   Config
	logger   zerolog.Logger
}

// NewBatchFetcher creates a new batch fetcher
func NewBatchFetcher(source WallSource, config Config, logger zerolog.Logger) *BatchFetcher {
	config = config.withDefaults()
	logger = logger.With().Str("component", "pagination").Logger()

	return &BatchFetcher{
		source:   source,
		segments: NewSegmentFetcher(source, config, logger),
		config:   config,
		logger:   logger,
	}
}

// Config returns the effective configuration.
func (bf *BatchFetcher) Config() Config {
	return bf.config
}

// FetchAll probes the post count of ownerID and fetches every post inside
// dateRange. Any failure aborts the whole fetch and no partial result is
// returned.
func (bf *BatchFetcher) FetchAll(ctx context.Context, ownerID int64, dateRange wall.DateRange) ([]wall.Post, error) {
	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
	}()

	total, err := ProbeCount(ctx, bf.source, ownerID)
	if err != nil {
		return nil, err
	}

	bf.logger.Info().
		Int64("owner_id", ownerID).
		Int("total_posts", total).
		Int("workers", bf.config.MaxConcurrency).
		Stringer("date_range", dateRange).
		Msg("Starting parallel wall fetch")

	posts, err := bf.FetchSegments(ctx, ownerID, total, dateRange)
	if err != nil {
		return nil, err
	}

	bf.logger.Info().
		Int64("owner_id", ownerID).
		Int("posts", len(posts)).
		Int("total_posts", total).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	return posts, nil
}

// FetchSegments fetches total posts of ownerID without probing. Results are
// merged in ascending segment order.
func (bf *BatchFetcher) FetchSegments(ctx context.Context, ownerID int64, total int, dateRange wall.DateRange) ([]wall.Post, error) {
	segs := Segments(total, bf.config.MaxConcurrency)
	if len(segs) == 0 {
		return []wall.Post{}, nil
	}

	// Single segment optimization
	if len(segs) == 1 {
		return bf.runSegment(ctx, ownerID, segs[0], dateRange)
	}

	results := make([][]wall.Post, len(segs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bf.config.MaxConcurrency)

	for i, seg := range segs {
		g.Go(func() error {
			posts, err := bf.runSegment(gctx, ownerID, seg, dateRange)
			if err != nil {
				return err
			}
			results[i] = posts
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, r := range results {
		n += len(r)
	}
	merged := make([]wall.Post, 0, n)
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}

// runSegment fetches one segment, wrapping failures and recovering panics
// into *SegmentError.
func (bf *BatchFetcher) runSegment(ctx context.Context, ownerID int64, seg Segment, dateRange wall.DateRange) (posts []wall.Post, err error) {
	defer func() {
		if r := recover(); r != nil {
			posts = nil
			err = &SegmentError{Segment: seg, Err: fmt.Errorf("%w: %v", ErrSegmentPanic, r)}
			segmentsTotal.WithLabelValues("panic").Inc()
			bf.logger.Error().
				Stringer("segment", seg).
				Interface("panic", r).
				Msg("Segment task panicked")
		}
	}()

	posts, err = bf.segments.Fetch(ctx, ownerID, seg, dateRange)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			segmentsTotal.WithLabelValues("cancelled").Inc()
			bf.logger.Debug().Stringer("segment", seg).Msg("Segment stopped (context cancelled)")
		} else {
			segmentsTotal.WithLabelValues("error").Inc()
			bf.logger.Warn().
				Err(err).
				Stringer("segment", seg).
				Str("error_class", string(vkapi.ClassOf(err))).
				Msg("Segment fetch failed")
		}
		return nil, &SegmentError{Segment: seg, Err: err}
	}

	segmentsTotal.WithLabelValues("ok").Inc()
	return posts, nil
}
