// Package wall holds the normalized post model of a VK wall together with the
// date window and ranking helpers used to build a top-N list.
package wall

import (
	"fmt"
	"time"
)

// BaseURL is the public VK site prefix used for permanent post links.
const BaseURL = "https://vk.com"

// Post is a single wall post. It is built once per decoded API record and
// never modified afterwards.
type Post struct {
	// ID is unique within one wall.
	ID int64 `json:"id"`

	// OwnerID is the wall the post belongs to. Negative for communities.
	OwnerID int64 `json:"owner_id"`

	Text    string    `json:"text"`
	Likes   int       `json:"likes"`
	Reposts int       `json:"reposts"`
	Date    time.Time `json:"date"`

	// Pinned posts are returned first by the API regardless of their date.
	Pinned bool `json:"pinned,omitempty"`
}

// URL returns the permanent link of the post.
func (p Post) URL() string {
	return fmt.Sprintf("%s/wall%d_%d", BaseURL, p.OwnerID, p.ID)
}

// Day returns the calendar day the post was published on.
func (p Post) Day() time.Time {
	return Day(p.Date)
}

// Value returns the counter selected by metric.
func (p Post) Value(metric Metric) int {
	if metric == MetricReposts {
		return p.Reposts
	}
	return p.Likes
}
