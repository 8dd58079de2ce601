package analyze

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Disservin/WLD-model/internal/wdl"
)

// Config configures a parallel run.
type Config struct {
	Workers  int            // concurrent shards, default 1
	MaxPlies int            // plies walked per game, default wdl.MaxPlies
	Boards   BoardFactory   // default NewBoard
	Logger   zerolog.Logger // Logger
}

// Result is the merged output of a run.
type Result struct {
	Table     wdl.Table
	Summary   Summary
	Offsets   int
	Shards    int
	Unindexed int // non-blank bytes after the last indexed game
	Elapsed   time.Duration
}

// Run indexes the corpus behind dec, analyzes its shards in parallel and
// merges the per-shard tables once every shard has finished. The first
// fatal shard error cancels the rest of the run.
func Run(ctx context.Context, dec Decoder, cfg Config) (*Result, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	log := cfg.Logger
	start := time.Now()

	offsets, end := Index(dec)
	unindexed := dec.Remaining(end)
	if unindexed > 0 {
		log.Warn().
			Int("offset", end).
			Str("size", humanize.Bytes(uint64(unindexed))).
			Msg("no game header found, data after offset not analyzed")
	}
	shards := Partition(offsets, cfg.Workers)
	log.Info().
		Str("games", humanize.Comma(int64(len(offsets)))).
		Int("shards", len(shards)).
		Int("workers", cfg.Workers).
		Dur("index_time", time.Since(start)).
		Msg("indexed corpus")

	a := NewAnalyzer(dec, cfg.Boards, cfg.MaxPlies, log)
	results := make([]ShardResult, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	var done atomic.Int64
	for i, shard := range shards {
		g.Go(func() error {
			res, err := a.Shard(gctx, i, shard)
			if err != nil {
				return err
			}
			results[i] = res
			n := done.Add(1)
			log.Debug().
				Int("shard", i).
				Int64("done", n).
				Int("total", len(shards)).
				Int64("positions", res.Summary.Positions).
				Msg("shard complete")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{
		Offsets:   len(offsets),
		Shards:    len(shards),
		Unindexed: unindexed,
	}
	tables := make([]wdl.Table, len(results))
	for i, res := range results {
		tables[i] = res.Table
		out.Summary.Add(res.Summary)
	}
	out.Table = wdl.Merge(tables...)
	out.Elapsed = time.Since(start)

	log.Info().
		Int64("games", out.Summary.Games).
		Int64("skipped", out.Summary.Skipped).
		Int64("truncated", out.Summary.Truncated).
		Int64("unsupported", out.Summary.Unsupported).
		Str("positions", humanize.Comma(out.Summary.Positions)).
		Int("keys", len(out.Table)).
		Int("longest_plies", out.Summary.LongestPlies).
		Int("longest_offset", out.Summary.LongestOffset).
		Dur("elapsed", out.Elapsed).
		Msg("analysis complete")

	return out, nil
}
