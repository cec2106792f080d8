package vkapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// MethodWallGet is the paginated wall listing method.
const MethodWallGet = "wall.get"

// Counter is VK's {"count": N} object used for likes and reposts.
type Counter struct {
	Count int `json:"count"`
}

// WallItem is one raw post record as returned by wall.get.
type WallItem struct {
	ID       int64    `json:"id"`
	OwnerID  int64    `json:"owner_id"`
	FromID   int64    `json:"from_id"`
	Date     int64    `json:"date"`
	Text     string   `json:"text"`
	IsPinned int      `json:"is_pinned"`
	Likes    *Counter `json:"likes"`
	Reposts  *Counter `json:"reposts"`
}

// WallResponse is the "response" object of wall.get.
type WallResponse struct {
	Count int        `json:"count"`
	Items []WallItem `json:"items"`
}

// GetWall fetches up to count posts of ownerID starting at offset.
func (c *Client) GetWall(ctx context.Context, ownerID int64, offset, count int) (*WallResponse, error) {
	if offset < 0 {
		return nil, fmt.Errorf("offset must be >= 0 (got %d)", offset)
	}
	if count < 0 || count > MaxBatchSize {
		return nil, fmt.Errorf("count must be in [0, %d] (got %d)", MaxBatchSize, count)
	}

	params := url.Values{
		"owner_id": {strconv.FormatInt(ownerID, 10)},
		"offset":   {strconv.Itoa(offset)},
		"count":    {strconv.Itoa(count)},
	}

	var resp WallResponse
	if err := c.Call(ctx, MethodWallGet, params, &resp); err != nil {
		return nil, err
	}
	if resp.Count < 0 {
		return nil, Malformed(MethodWallGet, "negative total count")
	}
	return &resp, nil
}
