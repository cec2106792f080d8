package wall

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Metric selects the counter posts are ranked by.
type Metric string

const (
	// MetricLikes ranks by like count (default).
	MetricLikes Metric = "likes"

	// MetricReposts ranks by repost count.
	MetricReposts Metric = "reposts"
)

// ParseMetric maps a user supplied name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "likes", "like", "l":
		return MetricLikes, nil
	case "reposts", "repost", "r":
		return MetricReposts, nil
	default:
		return "", fmt.Errorf("unknown metric %q (want likes or reposts)", s)
	}
}

// Title returns the column header for the metric.
func (m Metric) Title() string {
	if m == MetricReposts {
		return "Reposts"
	}
	return "Likes"
}

// RankTop returns at most n posts ordered by metric, highest first. Posts
// with equal values keep their relative input order. The input is not
// modified and n <= 0 yields an empty slice.
func RankTop(posts []Post, metric Metric, n int) []Post {
	if n <= 0 || len(posts) == 0 {
		return []Post{}
	}

	ranked := slices.Clone(posts)
	slices.SortStableFunc(ranked, func(a, b Post) int {
		return cmp.Compare(b.Value(metric), a.Value(metric))
	})

	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}
