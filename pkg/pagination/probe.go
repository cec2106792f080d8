package pagination

import (
	"context"
	"fmt"

	"github.com/Sternrassler/vktop/pkg/vkapi"
)

// WallSource is the paginated post source. *vkapi.Client implements it.
type WallSource interface {
	// GetWall returns up to count posts starting at offset, newest first,
	// together with the total number of posts on the wall.
	GetWall(ctx context.Context, ownerID int64, offset, count int) (*vkapi.WallResponse, error)
}

// ProbeCount asks the source for a single post to learn how many posts the
// wall holds.
func ProbeCount(ctx context.Context, source WallSource, ownerID int64) (int, error) {
	resp, err := source.GetWall(ctx, ownerID, 0, 1)
	if err != nil {
		return 0, fmt.Errorf("probe post count: %w", err)
	}
	if resp == nil {
		return 0, fmt.Errorf("probe post count: %w", vkapi.Malformed(vkapi.MethodWallGet, "empty response"))
	}
	return resp.Count, nil
}
