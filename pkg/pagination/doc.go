// Package pagination fetches every post of a VK wall in parallel.
//
// wall.get is offset-paginated and returns at most 100 posts per call,
// newest first. The fetcher first probes the total post count, splits the
// offsets [0, total) into contiguous segments, one per worker, and pages
// through each segment sequentially. Segment results are merged in offset
// order.
//
// Example usage:
//
//	client, _ := vkapi.New(vkapi.DefaultConfig(token), logger)
//	fetcher := pagination.NewBatchFetcher(client, pagination.DefaultConfig(), logger)
//	posts, err := fetcher.FetchAll(ctx, -1, wall.DateRange{})
//
// The batch fetcher:
//   - Probes the post count with a one-post request
//   - Partitions the offsets into at most MaxConcurrency segments
//   - Stops a segment at the first non-pinned post older than the date window
//   - Fails the whole fetch on the first segment error, cancelling the rest
package pagination
