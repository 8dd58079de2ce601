package analyze

import (
	"iter"

	"github.com/Disservin/WLD-model/internal/pgnscan"
)

// Decoder locates and decodes games in a corpus by offset.
type Decoder interface {
	// SkipGame decodes only the header of the game at off and returns the
	// offset of the following game. ok is false when no header starts at off.
	SkipGame(off int) (next int, ok bool)
	// Game decodes the full game at off. A nil game means the corpus is exhausted.
	Game(off int) (*pgnscan.Game, int, error)
	// Remaining reports how many non-blank bytes follow off.
	Remaining(off int) int
}

// Offsets yields the start offset of every game in the corpus, in order.
// It stops at the first position where no header can be decoded.
func Offsets(dec Decoder) iter.Seq[int] {
	return func(yield func(int) bool) {
		scan(dec, yield)
	}
}

// Index collects every game offset and returns the cursor at which
// indexing stopped. Bytes past end were never indexed.
func Index(dec Decoder) (offsets []int, end int) {
	end = scan(dec, func(off int) bool {
		offsets = append(offsets, off)
		return true
	})
	return offsets, end
}

// IndexOffsets collects Offsets into a slice.
func IndexOffsets(dec Decoder) []int {
	offsets, _ := Index(dec)
	return offsets
}

func scan(dec Decoder, yield func(int) bool) int {
	cursor := 0
	for {
		next, ok := dec.SkipGame(cursor)
		if !ok || !yield(cursor) {
			return cursor
		}
		cursor = next
	}
}

// ShardsPerWorker is the number of shards created per worker so that
// workers finishing early can pick up more work.
const ShardsPerWorker = 4

// Partition splits offsets into contiguous shards of
// max(1, len(offsets)/(ShardsPerWorker*workers)) entries; the last shard
// may be shorter. Shards share the backing array of offsets.
func Partition(offsets []int, workers int) [][]int {
	if len(offsets) == 0 {
		return nil
	}
	workers = max(workers, 1)
	size := max(1, len(offsets)/(ShardsPerWorker*workers))

	shards := make([][]int, 0, (len(offsets)+size-1)/size)
	for start := 0; start < len(offsets); start += size {
		end := min(start+size, len(offsets))
		shards = append(shards, offsets[start:end:end])
	}
	return shards
}
