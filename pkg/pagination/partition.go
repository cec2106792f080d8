package pagination

import (
	"fmt"
	"iter"
	"slices"
)

// Segment is a contiguous range of wall offsets owned by one worker.
type Segment struct {
	Offset int
	Count  int
}

// End returns the exclusive upper offset.
func (s Segment) End() int {
	return s.Offset + s.Count
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d, %d)", s.Offset, s.End())
}

// Partition splits total posts into contiguous segments in ascending offset
// order. Each segment holds total/workers + total%workers posts and the last
// one is clipped to what remains. When workers does not divide total the
// segments are wider than an even split and fewer than workers may be
// produced (10 posts over 4 workers gives [0,4), [4,8) and [8,10)).
func Partition(total, workers int) iter.Seq[Segment] {
	workers = max(workers, 1)
	return func(yield func(Segment) bool) {
		if total <= 0 {
			return
		}
		perWorker := total/workers + total%workers
		for offset := 0; offset < total; offset += perWorker {
			if !yield(Segment{Offset: offset, Count: min(perWorker, total-offset)}) {
				return
			}
		}
	}
}

// Segments collects Partition into a slice.
func Segments(total, workers int) []Segment {
	return slices.Collect(Partition(total, workers))
}
